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
	"database/sql"
	"errors"
)

// AssignedSubaddress is one receiving identity handed out by an account.
// The spend public key is uniquely indexed; it is the scanner's reverse
// lookup from a recovered target key to (account, subaddress index).
type AssignedSubaddress struct {
	PublicAddressB58 string
	AccountID        string
	SubaddressIndex  uint64
	Comment          string
	SpendPublicKey   []byte
}

const subaddressColumns = `public_address_b58, account_id, subaddress_index, comment, spend_public_key`

func scanSubaddress(row interface{ Scan(...any) error }) (*AssignedSubaddress, error) {
	var s AssignedSubaddress
	err := row.Scan(&s.PublicAddressB58, &s.AccountID, &s.SubaddressIndex, &s.Comment, &s.SpendPublicKey)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubaddress inserts an assigned subaddress row.
func (t *Txn) CreateSubaddress(s *AssignedSubaddress) error {
	_, err := t.tx.Exec(`INSERT INTO assigned_subaddresses (`+subaddressColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		s.PublicAddressB58, s.AccountID, int64(s.SubaddressIndex), s.Comment, s.SpendPublicKey)
	return wrapSQL(err)
}

// GetSubaddress fetches an assigned subaddress by its b58 address.
func (t *Txn) GetSubaddress(publicAddressB58 string) (*AssignedSubaddress, error) {
	row := t.tx.QueryRow(`SELECT `+subaddressColumns+` FROM assigned_subaddresses
		WHERE public_address_b58 = ?`, publicAddressB58)
	s, err := scanSubaddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "assigned subaddress", ID: publicAddressB58}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return s, nil
}

// GetSubaddressByIndex fetches an account's subaddress at a given index.
func (t *Txn) GetSubaddressByIndex(accountID string, index uint64) (*AssignedSubaddress, error) {
	row := t.tx.QueryRow(`SELECT `+subaddressColumns+` FROM assigned_subaddresses
		WHERE account_id = ? AND subaddress_index = ?`, accountID, int64(index))
	s, err := scanSubaddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "assigned subaddress", ID: accountID}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return s, nil
}

// GetSubaddressBySpendPublicKey is the scanner's reverse lookup: given the
// subaddress spend public key recovered from a TxOut, find who owns it.
func (t *Txn) GetSubaddressBySpendPublicKey(spendPublicKey []byte) (*AssignedSubaddress, error) {
	row := t.tx.QueryRow(`SELECT `+subaddressColumns+` FROM assigned_subaddresses
		WHERE spend_public_key = ?`, spendPublicKey)
	s, err := scanSubaddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "assigned subaddress", ID: "by spend public key"}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return s, nil
}

// ListSubaddresses returns all of an account's assigned subaddresses in
// index order.
func (t *Txn) ListSubaddresses(accountID string) ([]*AssignedSubaddress, error) {
	rows, err := t.tx.Query(`SELECT `+subaddressColumns+` FROM assigned_subaddresses
		WHERE account_id = ? ORDER BY subaddress_index`, accountID)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	var subs []*AssignedSubaddress
	for rows.Next() {
		s, err := scanSubaddress(rows)
		if err != nil {
			return nil, wrapSQL(err)
		}
		subs = append(subs, s)
	}
	return subs, wrapSQL(rows.Err())
}

// DeleteSubaddressesForAccount removes all of an account's subaddresses as
// part of the account removal cascade.
func (t *Txn) DeleteSubaddressesForAccount(accountID string) error {
	_, err := t.tx.Exec(`DELETE FROM assigned_subaddresses WHERE account_id = ?`, accountID)
	return wrapSQL(err)
}
