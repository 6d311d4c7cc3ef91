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
	"testing"

	"github.com/holiman/uint256"

	"github.com/mobilecoinofficial/full-service/core/types"
)

func TestTxoStatusDerivation(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")

	unspent := insertTxo(t, db, "t-unspent", "alice", 100)
	spent := insertTxo(t, db, "t-spent", "alice", 100, withSpent(20))
	unverified := insertTxo(t, db, "t-unverified", "alice", 100, withoutKeyImage())
	orphan := insertTxo(t, db, "t-orphan", "alice", 100, orphaned())

	pendingInput := insertTxo(t, db, "t-pending", "alice", 100)
	insertLog(t, db, logFixture{
		id: "log-pending", account: "alice",
		submitted: u64(15), tombstone: u64(30),
		inputs: []string{"t-pending"},
	})

	secretedOut := insertTxo(t, db, "t-secreted", "alice", 100, minted())
	insertLog(t, db, logFixture{
		id: "log-succeeded", account: "alice",
		submitted: u64(15), tombstone: u64(30), finalized: u64(18),
		outputs: []logOutput{{txoID: "t-secreted"}},
	})

	createdOut := insertTxo(t, db, "t-created", "alice", 100, minted())
	insertLog(t, db, logFixture{
		id: "log-built", account: "alice",
		tombstone: u64(30),
		outputs:   []logOutput{{txoID: "t-created"}},
	})

	for _, tc := range []struct {
		txo  *Txo
		want TxoStatus
	}{
		{unspent, TxoStatusUnspent},
		{spent, TxoStatusSpent},
		{unverified, TxoStatusUnverified},
		{orphan, TxoStatusOrphaned},
		{pendingInput, TxoStatusPending},
		{secretedOut, TxoStatusSecreted},
		{createdOut, TxoStatusCreated},
	} {
		if got := txoStatus(t, db, tc.txo); got != tc.want {
			t.Errorf("%s: status = %s, want %s", tc.txo.ID, got, tc.want)
		}
	}
}

// Spent wins over Pending: once the key image lands, a still-open log no
// longer makes the txo pending.
func TestSpentBeatsPending(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	x := insertTxo(t, db, "t-1", "alice", 100, withSpent(22))
	insertLog(t, db, logFixture{
		id: "log-1", account: "alice",
		submitted: u64(15), tombstone: u64(30),
		inputs: []string{"t-1"},
	})
	if got := txoStatus(t, db, x); got != TxoStatusSpent {
		t.Errorf("status = %s, want spent", got)
	}
}

// A change output of a succeeded log that we own is not secreted.
func TestOwnChangeOutputNotSecreted(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	change := insertTxo(t, db, "t-change", "alice", 100)
	insertLog(t, db, logFixture{
		id: "log-1", account: "alice",
		submitted: u64(15), tombstone: u64(30), finalized: u64(18),
		outputs: []logOutput{{txoID: "t-change", isChange: true}},
	})
	if got := txoStatus(t, db, change); got != TxoStatusUnspent {
		t.Errorf("status = %s, want unspent", got)
	}
}

// A payload output received back by the submitting account (a payment to
// self) is not secreted.
func TestSelfPaymentNotSecreted(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	x := insertTxo(t, db, "t-self", "alice", 100)
	insertLog(t, db, logFixture{
		id: "log-1", account: "alice",
		submitted: u64(15), tombstone: u64(30), finalized: u64(18),
		outputs: []logOutput{{txoID: "t-self"}},
	})
	if got := txoStatus(t, db, x); got != TxoStatusUnspent {
		t.Errorf("status = %s, want unspent for self payment", got)
	}
}

// A failed log releases its inputs back to unspent.
func TestFailedLogReleasesInputs(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	x := insertTxo(t, db, "t-1", "alice", 100)
	insertLog(t, db, logFixture{
		id: "log-1", account: "alice",
		submitted: u64(15), tombstone: u64(18),
		inputs: []string{"t-1"},
	})
	if got := txoStatus(t, db, x); got != TxoStatusPending {
		t.Fatalf("status = %s, want pending before expiry", got)
	}
	if err := db.Transaction(func(tx *Txn) error {
		return tx.FailPendingExceedingTombstone("alice", 18)
	}); err != nil {
		t.Fatal(err)
	}
	if got := txoStatus(t, db, x); got != TxoStatusUnspent {
		t.Errorf("status = %s, want unspent after tombstone expiry", got)
	}
}

func TestUpdateTxoAsReceivedConverges(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	// A minted output has no owner; when scanned it converges in place.
	row := insertTxo(t, db, "t-minted", "", 0, minted())

	alice := "alice"
	sub := uint64(1)
	received := uint64(33)
	update := &Txo{
		ID:                 row.ID,
		AccountID:          &alice,
		Value:              500,
		TokenID:            types.MOB,
		TargetKey:          derived("target", row.ID),
		PublicKey:          derived("public", row.ID),
		EFogHint:           derived("hint", row.ID),
		Txo:                derived("txo", row.ID),
		SubaddressIndex:    &sub,
		KeyImage:           derived("keyimage", row.ID),
		ReceivedBlockIndex: &received,
		SharedSecret:       derived("shared", row.ID),
	}
	if err := db.Transaction(func(tx *Txn) error { return tx.UpdateTxoAsReceived(update) }); err != nil {
		t.Fatal(err)
	}

	err := db.View(func(tx *Txn) error {
		fresh, err := tx.GetTxo(row.ID)
		if err != nil {
			return err
		}
		if fresh.AccountID == nil || *fresh.AccountID != "alice" {
			t.Error("ownership not set")
		}
		if fresh.Value != 500 || fresh.ReceivedBlockIndex == nil || *fresh.ReceivedBlockIndex != 33 {
			t.Errorf("row did not converge: %+v", fresh)
		}
		// Still exactly one row under this id.
		txos, err := tx.ListTxosForAccount("alice", nil)
		if err != nil {
			return err
		}
		if len(txos) != 1 {
			t.Errorf("got %d rows, want 1", len(txos))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// Created and secreted txos are reachable only through the minting log's
// account: their rows carry no account_id, or another account's.
func TestListCreatedAndSecretedTxos(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertAccount(t, db, "bob")

	// Output of a built-but-unsubmitted log: created.
	insertTxo(t, db, "t-created", "", 100, minted())
	insertLog(t, db, logFixture{
		id: "log-built", account: "alice", tombstone: u64(30),
		outputs: []logOutput{{txoID: "t-created"}},
	})
	// Non-change output of a succeeded log, not owned: secreted.
	insertTxo(t, db, "t-secreted", "", 200, minted())
	// Change output of the same log, received back by alice: neither.
	change := insertTxo(t, db, "t-change", "alice", 300)
	insertLog(t, db, logFixture{
		id: "log-succeeded", account: "alice",
		submitted: u64(15), tombstone: u64(30), finalized: u64(18),
		outputs: []logOutput{{txoID: "t-secreted"}, {txoID: "t-change", isChange: true}},
	})
	// Non-change output of a still-pending log: neither yet.
	insertTxo(t, db, "t-pending-out", "", 400, minted())
	insertLog(t, db, logFixture{
		id: "log-pending", account: "alice",
		submitted: u64(16), tombstone: u64(30),
		outputs: []logOutput{{txoID: "t-pending-out"}},
	})

	err := db.View(func(tx *Txn) error {
		created, err := tx.ListCreatedTxos("alice", nil)
		if err != nil {
			return err
		}
		if len(created) != 1 || created[0].ID != "t-created" {
			t.Errorf("created = %+v, want exactly t-created", created)
		}
		secreted, err := tx.ListSecretedTxos("alice", nil)
		if err != nil {
			return err
		}
		if len(secreted) != 1 || secreted[0].ID != "t-secreted" {
			t.Errorf("secreted = %+v, want exactly t-secreted", secreted)
		}
		// The sets are scoped to the submitting account.
		for name, list := range map[string]func(string, *types.TokenID) ([]*Txo, error){
			"created": tx.ListCreatedTxos, "secreted": tx.ListSecretedTxos,
		} {
			txos, err := list("bob", nil)
			if err != nil {
				return err
			}
			if len(txos) != 0 {
				t.Errorf("bob sees %d %s txos of alice's logs", len(txos), name)
			}
		}
		// The token filter applies.
		other := types.TokenID(5)
		none, err := tx.ListSecretedTxos("alice", &other)
		if err != nil {
			return err
		}
		if len(none) != 0 {
			t.Errorf("token filter ignored: %+v", none)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := txoStatus(t, db, change); got != TxoStatusUnspent {
		t.Errorf("change status = %s, want unspent", got)
	}
}

func TestListSpendableExcludesLockedAndCapped(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-1", "alice", 100)
	insertTxo(t, db, "t-2", "alice", 200)
	insertTxo(t, db, "t-3", "alice", 5000)
	insertTxo(t, db, "t-spent", "alice", 400, withSpent(9))
	insertTxo(t, db, "t-unverified", "alice", 500, withoutKeyImage())
	insertTxo(t, db, "t-orphan", "alice", 600, orphaned())
	// Locked as the input of a live built log.
	insertTxo(t, db, "t-locked", "alice", 700)
	insertLog(t, db, logFixture{id: "log-built", account: "alice", tombstone: u64(99), inputs: []string{"t-locked"}})
	// Inputs of failed logs are spendable again.
	insertTxo(t, db, "t-released", "alice", 800)
	insertLog(t, db, logFixture{id: "log-failed", account: "alice", tombstone: u64(5), failed: true, inputs: []string{"t-released"}})

	err := db.View(func(tx *Txn) error {
		result, err := tx.ListSpendableTxos("alice", nil, "", types.MOB, 10)
		if err != nil {
			return err
		}
		got := make(map[string]bool)
		for _, x := range result.SpendableTxos {
			got[x.ID] = true
		}
		for _, want := range []string{"t-1", "t-2", "t-3", "t-released"} {
			if !got[want] {
				t.Errorf("%s missing from spendable set", want)
			}
		}
		for _, unwanted := range []string{"t-spent", "t-unverified", "t-orphan", "t-locked"} {
			if got[unwanted] {
				t.Errorf("%s should not be spendable", unwanted)
			}
		}
		// Sorted descending: 5000 first.
		if result.SpendableTxos[0].Value != 5000 {
			t.Errorf("first value = %d, want 5000", result.SpendableTxos[0].Value)
		}
		// max spendable = 100+200+5000+800 - fee.
		if want := uint256.NewInt(6090); !result.MaxSpendableInWallet.Eq(want) {
			t.Errorf("max spendable = %s, want %s", result.MaxSpendableInWallet, want)
		}

		// Value cap excludes the big txo.
		cap := uint64(300)
		capped, err := tx.ListSpendableTxos("alice", &cap, "", types.MOB, 10)
		if err != nil {
			return err
		}
		for _, x := range capped.SpendableTxos {
			if x.Value > cap {
				t.Errorf("txo %s value %d exceeds cap", x.ID, x.Value)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// The dust sweep picks the smallest txos first.
func TestSelectTakesDustFirst(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	for i, value := range []uint64{100, 200, 300, 400, 500} {
		insertTxo(t, db, txoID(i), "alice", value)
	}
	err := db.View(func(tx *Txn) error {
		selected, err := tx.SelectSpendableTxosForValue("alice", uint256.NewInt(300), nil, types.MOB, 0)
		if err != nil {
			return err
		}
		// 100 + 200 = 300 meets the target.
		if len(selected) != 2 {
			t.Fatalf("selected %d txos, want 2", len(selected))
		}
		if selected[0].Value != 100 || selected[1].Value != 200 {
			t.Errorf("selected values %d, %d; want 100, 200", selected[0].Value, selected[1].Value)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// 19 txos of 100 with a target of 1800: the top 16 sum to 1600, the wallet
// holds 1900, so the failure is fragmentation, not insufficiency.
func TestSelectFragmentedFunds(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	for i := 0; i < 19; i++ {
		insertTxo(t, db, txoID(i), "alice", 100)
	}
	err := db.View(func(tx *Txn) error {
		_, err := tx.SelectSpendableTxosForValue("alice", uint256.NewInt(1800), nil, types.MOB, 0)
		return err
	})
	if !errors.Is(err, ErrInsufficientFundsFragmented) {
		t.Errorf("got %v, want ErrInsufficientFundsFragmented", err)
	}
}

func TestSelectInsufficientFunds(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-1", "alice", 100)
	err := db.View(func(tx *Txn) error {
		_, err := tx.SelectSpendableTxosForValue("alice", uint256.NewInt(1000), nil, types.MOB, 10)
		return err
	})
	if !errors.Is(err, ErrInsufficientFundsUnderMaxSpendable) {
		t.Errorf("got %v, want ErrInsufficientFundsUnderMaxSpendable", err)
	}
}

func TestSelectNoSpendableTxos(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-1", "alice", 100)
	err := db.View(func(tx *Txn) error {
		_, err := tx.SelectSpendableTxosForValue("alice", uint256.NewInt(10), nil, types.TokenID(5), 0)
		return err
	})
	var nst *NoSpendableTxosError
	if !errors.As(err, &nst) {
		t.Fatalf("got %v, want NoSpendableTxosError", err)
	}
	if nst.TokenID != types.TokenID(5) {
		t.Errorf("token = %d, want 5", nst.TokenID)
	}
}

// Values above 2^63 survive the signed storage column and 256-bit math.
func TestLargeValuesSurviveStorage(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	huge := uint64(1) << 63
	insertTxo(t, db, "t-huge", "alice", huge)
	insertTxo(t, db, "t-huge2", "alice", huge+5)

	err := db.View(func(tx *Txn) error {
		x, err := tx.GetTxo("t-huge")
		if err != nil {
			return err
		}
		if x.Value != huge {
			t.Errorf("value = %d, want %d", x.Value, huge)
		}
		result, err := tx.ListSpendableTxos("alice", nil, "", types.MOB, 0)
		if err != nil {
			return err
		}
		// The sum exceeds a uint64; the accumulator must not wrap.
		want := new(uint256.Int).Add(uint256.NewInt(huge), uint256.NewInt(huge+5))
		if !result.MaxSpendableInWallet.Eq(want) {
			t.Errorf("max spendable = %s, want %s", result.MaxSpendableInWallet, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScrubAndDeleteUnreferenced(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-free", "alice", 100)
	insertTxo(t, db, "t-held", "alice", 200)
	insertLog(t, db, logFixture{id: "log-1", account: "alice", tombstone: u64(30), inputs: []string{"t-held"}})

	err := db.Transaction(func(tx *Txn) error {
		if err := tx.ScrubTxosForAccount("alice"); err != nil {
			return err
		}
		return tx.DeleteUnreferencedTxos()
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *Txn) error {
		// t-free had no log references and is gone.
		if _, err := tx.GetTxo("t-free"); !IsNotFound(err) {
			t.Errorf("got %v, want not found for unreferenced txo", err)
		}
		// t-held survives but is ownerless.
		held, err := tx.GetTxo("t-held")
		if err != nil {
			return err
		}
		if held.AccountID != nil {
			t.Error("scrubbed txo still has an owner")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListTxosNeedingSync(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-verified", "alice", 100)
	insertTxo(t, db, "t-unverified1", "alice", 200, withoutKeyImage())
	insertTxo(t, db, "t-unverified2", "alice", 300, withoutKeyImage())

	err := db.View(func(tx *Txn) error {
		txos, err := tx.ListTxosNeedingSync("alice", nil, 0)
		if err != nil {
			return err
		}
		if len(txos) != 2 {
			t.Fatalf("got %d txos needing sync, want 2", len(txos))
		}
		limited, err := tx.ListTxosNeedingSync("alice", nil, 1)
		if err != nil {
			return err
		}
		if len(limited) != 1 {
			t.Errorf("limit ignored: got %d", len(limited))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateKeyImage(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "alice")
	insertTxo(t, db, "t-1", "alice", 100, withoutKeyImage())

	spent := uint64(44)
	if err := db.Transaction(func(tx *Txn) error {
		return tx.UpdateTxoKeyImage("t-1", derived("ki", "t-1"), &spent)
	}); err != nil {
		t.Fatal(err)
	}
	err := db.View(func(tx *Txn) error {
		x, err := tx.GetTxo("t-1")
		if err != nil {
			return err
		}
		if x.KeyImage == nil {
			t.Error("key image not recorded")
		}
		if x.SpentBlockIndex == nil || *x.SpentBlockIndex != 44 {
			t.Error("spent block not recorded alongside key image")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
