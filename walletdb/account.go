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

// Account is one persisted account row. Key material is stored raw; the
// service layer reconstructs crypto.AccountKey values from it.
type Account struct {
	ID                     string
	ViewPrivateKey         []byte
	SpendPrivateKey        []byte // nil for view-only accounts
	SpendPublicKey         []byte
	Entropy                []byte // mnemonic (v2) or root entropy (v1); nil for view-only
	KeyDerivationVersion   int
	MainSubaddressIndex    uint64
	ChangeSubaddressIndex  uint64
	NextSubaddressIndex    uint64
	FirstBlockIndex        uint64
	NextBlockIndex         uint64
	ImportBlockIndex       *uint64
	Name                   string
	FogReportURL           string
	FogEnabled             bool
	ViewOnly               bool
	RequireSpendSubaddress bool
}

const accountColumns = `account_id, view_private_key, spend_private_key, spend_public_key,
	entropy, key_derivation_version, main_subaddress_index, change_subaddress_index,
	next_subaddress_index, first_block_index, next_block_index, import_block_index,
	name, fog_report_url, fog_enabled, view_only, require_spend_subaddress`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var (
		a           Account
		spendPriv   []byte
		entropy     []byte
		importBlock sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.ViewPrivateKey, &spendPriv, &a.SpendPublicKey,
		&entropy, &a.KeyDerivationVersion, &a.MainSubaddressIndex, &a.ChangeSubaddressIndex,
		&a.NextSubaddressIndex, &a.FirstBlockIndex, &a.NextBlockIndex, &importBlock,
		&a.Name, &a.FogReportURL, &a.FogEnabled, &a.ViewOnly, &a.RequireSpendSubaddress)
	if err != nil {
		return nil, err
	}
	a.SpendPrivateKey = spendPriv
	a.Entropy = entropy
	a.ImportBlockIndex = u64Ptr(importBlock)
	return &a, nil
}

// CreateAccount inserts a new account row. Importing an account whose id
// already exists fails with ErrDuplicateEntry.
func (t *Txn) CreateAccount(a *Account) error {
	_, err := t.tx.Exec(`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ViewPrivateKey, nullBytes(a.SpendPrivateKey), a.SpendPublicKey,
		nullBytes(a.Entropy), a.KeyDerivationVersion, int64(a.MainSubaddressIndex),
		int64(a.ChangeSubaddressIndex), int64(a.NextSubaddressIndex),
		int64(a.FirstBlockIndex), int64(a.NextBlockIndex), nullU64(a.ImportBlockIndex),
		a.Name, a.FogReportURL, a.FogEnabled, a.ViewOnly, a.RequireSpendSubaddress)
	return wrapSQL(err)
}

// GetAccount fetches an account by id.
func (t *Txn) GetAccount(id string) (*Account, error) {
	row := t.tx.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE account_id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "account", ID: id}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by id.
func (t *Txn) ListAccounts() ([]*Account, error) {
	rows, err := t.tx.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrapSQL(err)
		}
		accounts = append(accounts, a)
	}
	return accounts, wrapSQL(rows.Err())
}

// UpdateAccountName renames an account. The name is cosmetic; any other
// change requires importing a new account.
func (t *Txn) UpdateAccountName(id, name string) error {
	return t.updateAccount(id, `UPDATE accounts SET name = ? WHERE account_id = ?`, name, id)
}

// UpdateRequireSpendSubaddress toggles the account policy requiring spends
// to name an assigned subaddress.
func (t *Txn) UpdateRequireSpendSubaddress(id string, require bool) error {
	return t.updateAccount(id, `UPDATE accounts SET require_spend_subaddress = ? WHERE account_id = ?`, require, id)
}

// UpdateNextBlockIndex moves an account's scan cursor. Rewinding it below
// the chain tip causes the scanner to re-examine historical blocks.
func (t *Txn) UpdateNextBlockIndex(id string, nextBlockIndex uint64) error {
	return t.updateAccount(id, `UPDATE accounts SET next_block_index = ? WHERE account_id = ?`, int64(nextBlockIndex), id)
}

// UpdateNextSubaddressIndex advances the subaddress cursor. The cursor is
// monotone; callers never move it backwards.
func (t *Txn) UpdateNextSubaddressIndex(id string, nextSubaddressIndex uint64) error {
	return t.updateAccount(id, `UPDATE accounts SET next_subaddress_index = ? WHERE account_id = ?`, int64(nextSubaddressIndex), id)
}

func (t *Txn) updateAccount(id, query string, args ...any) error {
	res, err := t.tx.Exec(query, args...)
	if err != nil {
		return wrapSQL(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapSQL(err)
	}
	if n == 0 {
		return &NotFoundError{Entity: "account", ID: id}
	}
	return nil
}

// DeleteAccount removes the account row only. Callers are expected to run
// the full removal cascade (logs, subaddresses, txo scrub, GC) in the same
// transaction.
func (t *Txn) DeleteAccount(id string) error {
	return t.updateAccount(id, `DELETE FROM accounts WHERE account_id = ?`, id)
}
