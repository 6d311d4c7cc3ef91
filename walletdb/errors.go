// Copyright 2024 The full-service Authors
// This file is part of the full-service library.
//
// The full-service library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The full-service library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the full-service library. If not, see <http://www.gnu.org/licenses/>.

package walletdb

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// NotFoundError reports a lookup of an entity that does not exist. Callers
// use it to distinguish missing from broken.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("walletdb: %s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StoreError wraps a store-level failure with its underlying cause.
type StoreError struct {
	Cause error
}

func (e *StoreError) Error() string { return fmt.Sprintf("walletdb: %v", e.Cause) }

func (e *StoreError) Unwrap() error { return e.Cause }

// NoSpendableTxosError reports that the account holds no spendable txos of
// the requested token.
type NoSpendableTxosError struct {
	TokenID types.TokenID
}

func (e *NoSpendableTxosError) Error() string {
	return fmt.Sprintf("walletdb: no spendable txos for token %d", e.TokenID)
}

var (
	// ErrDuplicateEntry is returned on a uniqueness violation, e.g.
	// importing an account whose id already exists.
	ErrDuplicateEntry = errors.New("walletdb: duplicate entry")

	// ErrInsufficientFunds is returned when the selection sweep runs out
	// of candidates before the selected values reach the target.
	ErrInsufficientFunds = errors.New("walletdb: insufficient funds")

	// ErrInsufficientFundsFragmented is returned when the total spendable
	// value suffices but no MAX_INPUTS-sized subset reaches the target; a
	// defrag transaction to self is needed first.
	ErrInsufficientFundsFragmented = errors.New("walletdb: insufficient funds due to fragmented txos")

	// ErrInsufficientFundsUnderMaxSpendable is returned when the target
	// exceeds the wallet's max spendable value plus fee and the total
	// spendable value does not cover the target plus fee.
	ErrInsufficientFundsUnderMaxSpendable = errors.New("walletdb: insufficient funds under max spendable cap")

	// ErrSubaddressesNotSupportedForFog is returned when assigning a
	// subaddress on a fog-enabled account, whose subaddress set is fixed.
	ErrSubaddressesNotSupportedForFog = errors.New("walletdb: subaddresses not supported for fog enabled accounts")
)

// wrapSQL maps driver-level errors onto the package taxonomy.
func wrapSQL(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return ErrDuplicateEntry
	}
	return &StoreError{Cause: err}
}
