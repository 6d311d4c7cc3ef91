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

// AuthenticatedSenderMemo links a received txo to the address hash its
// sender disclosed in the memo.
type AuthenticatedSenderMemo struct {
	TxoID             string
	SenderAddressHash string
}

// UpsertAuthenticatedSenderMemo records the sender disclosure of a txo.
// Re-scanning the same block makes this a no-op.
func (t *Txn) UpsertAuthenticatedSenderMemo(m *AuthenticatedSenderMemo) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO authenticated_sender_memos
		(txo_id, sender_address_hash) VALUES (?, ?)`, m.TxoID, m.SenderAddressHash)
	return wrapSQL(err)
}

// GetAuthenticatedSenderMemo fetches the sender disclosure of a txo.
func (t *Txn) GetAuthenticatedSenderMemo(txoID string) (*AuthenticatedSenderMemo, error) {
	var m AuthenticatedSenderMemo
	err := t.tx.QueryRow(`SELECT txo_id, sender_address_hash FROM authenticated_sender_memos
		WHERE txo_id = ?`, txoID).Scan(&m.TxoID, &m.SenderAddressHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "memo", ID: txoID}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return &m, nil
}
