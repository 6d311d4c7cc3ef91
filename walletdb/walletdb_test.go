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
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mobilecoinofficial/full-service/core/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testAccountRow(id string) *Account {
	return &Account{
		ID:                    id,
		ViewPrivateKey:        []byte("view-" + id),
		SpendPrivateKey:       []byte("spend-" + id),
		SpendPublicKey:        []byte("spend-pub-" + id),
		Entropy:               []byte("entropy-" + id),
		KeyDerivationVersion:  2,
		MainSubaddressIndex:   0,
		ChangeSubaddressIndex: 1,
		NextSubaddressIndex:   2,
		Name:                  "account " + id,
	}
}

// derived returns stable unique bytes for a txo's keyed columns.
func derived(tag, id string) []byte {
	sum := sha256.Sum256([]byte(tag + ":" + id))
	return sum[:]
}

type txoOpt func(*Txo)

func withSpent(block uint64) txoOpt {
	return func(x *Txo) { x.SpentBlockIndex = &block }
}

func withoutKeyImage() txoOpt {
	return func(x *Txo) { x.KeyImage = nil }
}

func orphaned() txoOpt {
	return func(x *Txo) {
		x.SubaddressIndex = nil
		x.KeyImage = nil
	}
}

func minted() txoOpt {
	return func(x *Txo) {
		x.AccountID = nil
		x.SubaddressIndex = nil
		x.KeyImage = nil
		x.ReceivedBlockIndex = nil
	}
}

func withToken(tokenID types.TokenID) txoOpt {
	return func(x *Txo) { x.TokenID = tokenID }
}

// insertTxo inserts a received, unspent txo owned by account unless opts
// say otherwise.
func insertTxo(t *testing.T, db *DB, id, account string, value uint64, opts ...txoOpt) *Txo {
	t.Helper()
	sub := uint64(0)
	received := uint64(10)
	x := &Txo{
		ID:                 id,
		AccountID:          &account,
		Value:              value,
		TokenID:            types.MOB,
		TargetKey:          derived("target", id),
		PublicKey:          derived("public", id),
		EFogHint:           derived("hint", id),
		Txo:                derived("txo", id),
		SubaddressIndex:    &sub,
		KeyImage:           derived("keyimage", id),
		ReceivedBlockIndex: &received,
	}
	for _, opt := range opts {
		opt(x)
	}
	if err := db.Transaction(func(tx *Txn) error { return tx.CreateTxo(x) }); err != nil {
		t.Fatal(err)
	}
	return x
}

func insertAccount(t *testing.T, db *DB, id string) *Account {
	t.Helper()
	a := testAccountRow(id)
	if err := db.Transaction(func(tx *Txn) error { return tx.CreateAccount(a) }); err != nil {
		t.Fatal(err)
	}
	return a
}

func txoStatus(t *testing.T, db *DB, x *Txo) TxoStatus {
	t.Helper()
	var status TxoStatus
	err := db.View(func(tx *Txn) error {
		fresh, err := tx.GetTxo(x.ID)
		if err != nil {
			return err
		}
		status, err = tx.GetTxoStatus(fresh)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return status
}

// insertLog inserts a bare transaction log row with the given lifecycle
// fields and joins.
type logFixture struct {
	id        string
	account   string
	submitted *uint64
	tombstone *uint64
	finalized *uint64
	failed    bool
	inputs    []string
	outputs   []logOutput
}

type logOutput struct {
	txoID    string
	isChange bool
}

func insertLog(t *testing.T, db *DB, f logFixture) {
	t.Helper()
	err := db.Transaction(func(tx *Txn) error {
		if _, err := tx.tx.Exec(`INSERT INTO transaction_logs
			(transaction_log_id, account_id, fee_value, fee_token_id,
			 submitted_block_index, tombstone_block_index, finalized_block_index, comment, tx, failed)
			VALUES (?, ?, 100, 0, ?, ?, ?, '', ?, ?)`,
			f.id, f.account, nullU64(f.submitted), nullU64(f.tombstone), nullU64(f.finalized),
			[]byte("tx-"+f.id), f.failed); err != nil {
			return err
		}
		for _, txoID := range f.inputs {
			if _, err := tx.tx.Exec(`INSERT INTO transaction_input_txos (transaction_log_id, txo_id)
				VALUES (?, ?)`, f.id, txoID); err != nil {
				return err
			}
		}
		for _, out := range f.outputs {
			if _, err := tx.tx.Exec(`INSERT INTO transaction_output_txos
				(transaction_log_id, txo_id, recipient_public_address_b58, is_change)
				VALUES (?, ?, ?, ?)`, f.id, out.txoID, "recipient", out.isChange); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func u64(v uint64) *uint64 { return &v }

func txoID(i int) string { return fmt.Sprintf("txo-%03d", i) }
