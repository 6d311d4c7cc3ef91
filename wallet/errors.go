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

package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountIsViewOnly is returned when an operation needs spend keys
	// the account does not hold.
	ErrAccountIsViewOnly = errors.New("wallet: account is view only")

	// ErrAccountIsNotViewOnly is returned when a sync-protocol operation
	// is attempted on a full account.
	ErrAccountIsNotViewOnly = errors.New("wallet: account is not view only")

	// ErrTombstoneExpired is returned when a proposal's tombstone block is
	// not past the current tip.
	ErrTombstoneExpired = errors.New("wallet: tombstone block already passed")

	// ErrResyncInProgress is returned while a rewound account catches up
	// to the local tip.
	ErrResyncInProgress = errors.New("wallet: resync in progress")

	// ErrSpendSubaddressRequired is returned when an account requires
	// spends to name a subaddress and none was given.
	ErrSpendSubaddressRequired = errors.New("wallet: account requires a spend subaddress")

	// ErrNoRecipients is returned when building a transaction without any
	// outlays.
	ErrNoRecipients = errors.New("wallet: transaction has no recipients")
)

// BuildError wraps a failure inside transaction construction. The
// enclosing store transaction rolls back, so no partial state persists.
type BuildError struct {
	Cause error
}

func (e *BuildError) Error() string { return fmt.Sprintf("wallet: transaction build failed: %v", e.Cause) }

func (e *BuildError) Unwrap() error { return e.Cause }
