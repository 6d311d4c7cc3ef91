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
	"bytes"
	"errors"
	"testing"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

func TestCreateAccountStartsAtNetworkHeight(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.AppendEmptyBlocks(5)

	account, err := env.service.CreateAccount("new account", nil)
	if err != nil {
		t.Fatal(err)
	}
	// New accounts cannot have prior history.
	if account.FirstBlockIndex != 5 {
		t.Errorf("first block = %d, want 5", account.FirstBlockIndex)
	}
	if account.NextBlockIndex != 5 {
		t.Errorf("next block = %d, want 5", account.NextBlockIndex)
	}
	if account.ImportBlockIndex == nil || *account.ImportBlockIndex != 5 {
		t.Error("import block should be the local height")
	}
	// Main and change subaddresses are materialized.
	subs, err := env.service.ListAddressesForAccount(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Errorf("got %d subaddresses, want 2", len(subs))
	}
}

func TestCreateAccountOffline(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.service.CreateAccount("offline", nil)
	if err != nil {
		t.Fatal(err)
	}
	if account.FirstBlockIndex != 0 || account.NextBlockIndex != 0 {
		t.Error("offline account with empty ledger should start at zero")
	}
}

func TestImportAccountDeterministic(t *testing.T) {
	env := newTestEnv(t)
	account, key := env.importAccount("alice", 1)
	if account.ID != key.AccountID().Hex() {
		t.Error("account id does not match key derivation")
	}
	if account.KeyDerivationVersion != crypto.KeyDerivationV2 {
		t.Errorf("derivation version = %d, want 2", account.KeyDerivationVersion)
	}
	if account.FirstBlockIndex != 0 {
		t.Errorf("first block = %d, want 0 by default", account.FirstBlockIndex)
	}
	// Importing again is a duplicate.
	_, err := env.service.ImportAccount(testMnemonic(t, 1), "again", nil, nil, nil)
	if !errors.Is(err, walletdb.ErrDuplicateEntry) {
		t.Errorf("got %v, want ErrDuplicateEntry", err)
	}
}

func TestImportMaterializesSubaddresses(t *testing.T) {
	env := newTestEnv(t)
	next := uint64(5)
	account, err := env.service.ImportAccount(testMnemonic(t, 2), "alice", nil, &next, nil)
	if err != nil {
		t.Fatal(err)
	}
	subs, err := env.service.ListAddressesForAccount(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 5 {
		t.Fatalf("got %d subaddresses, want 5", len(subs))
	}
	for i, sub := range subs {
		if sub.SubaddressIndex != uint64(i) {
			t.Errorf("subaddress %d has index %d", i, sub.SubaddressIndex)
		}
	}
}

func TestImportLegacyRootEntropy(t *testing.T) {
	env := newTestEnv(t)
	entropy := bytes.Repeat([]byte{9}, 32)
	account, err := env.service.ImportAccountFromLegacyRootEntropy(entropy, "legacy", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if account.KeyDerivationVersion != crypto.KeyDerivationV1 {
		t.Errorf("derivation version = %d, want 1", account.KeyDerivationVersion)
	}
	secrets, err := env.service.ExportAccountSecrets(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secrets.RootEntropy, entropy) {
		t.Error("exported entropy differs")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	account, _ := env.importAccount("alice", 3)

	secrets, err := env.service.ExportAccountSecrets(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if secrets.Mnemonic != testMnemonic(t, 3) {
		t.Error("exported mnemonic differs")
	}

	if err := env.service.RemoveAccount(account.ID); err != nil {
		t.Fatal(err)
	}
	reimported, err := env.service.ImportAccount(secrets.Mnemonic, "alice again", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reimported.ID != account.ID {
		t.Error("re-import produced a different account id")
	}
	if !bytes.Equal(reimported.ViewPrivateKey, account.ViewPrivateKey) {
		t.Error("re-import produced a different view private key")
	}
	if !bytes.Equal(reimported.SpendPrivateKey, account.SpendPrivateKey) {
		t.Error("re-import produced a different spend private key")
	}
}

func TestAssignSubaddressRewindsScanCursor(t *testing.T) {
	env := newTestEnv(t)
	account, _ := env.importAccount("alice", 4)
	env.ledger.AppendEmptyBlocks(10)
	env.sync()

	fresh, err := env.service.GetAccount(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.NextBlockIndex != 10 {
		t.Fatalf("next block = %d, want 10 after sync", fresh.NextBlockIndex)
	}

	sub, err := env.service.AssignNextSubaddress(account.ID, "for bob")
	if err != nil {
		t.Fatal(err)
	}
	if sub.SubaddressIndex != 2 {
		t.Errorf("assigned index = %d, want 2", sub.SubaddressIndex)
	}
	fresh, err = env.service.GetAccount(account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.NextBlockIndex != fresh.FirstBlockIndex {
		t.Error("scan cursor was not rewound to the first block")
	}
	if fresh.NextSubaddressIndex != 3 {
		t.Errorf("next subaddress = %d, want 3", fresh.NextSubaddressIndex)
	}
	if !env.service.ResyncInProgress() {
		t.Error("resync gate should be raised after the rewind")
	}
	// State-changing operations are refused until the catch-up completes.
	if _, err := env.service.CreateAccount("blocked", nil); !errors.Is(err, ErrResyncInProgress) {
		t.Errorf("got %v, want ErrResyncInProgress", err)
	}
	env.sync()
	if env.service.ResyncInProgress() {
		t.Error("resync gate should clear once caught up")
	}
}

func TestFogAccountSubaddressesForbidden(t *testing.T) {
	env := newTestEnv(t)
	fog := &crypto.FogInfo{ReportURL: "fog://fog.example.com"}
	account, err := env.service.CreateAccount("fog account", fog)
	if err != nil {
		t.Fatal(err)
	}
	if !account.FogEnabled {
		t.Fatal("account should be fog enabled")
	}
	// Change goes back to the main subaddress.
	if account.ChangeSubaddressIndex != account.MainSubaddressIndex {
		t.Error("fog account change subaddress should equal main")
	}
	_, err = env.service.AssignNextSubaddress(account.ID, "")
	if !errors.Is(err, walletdb.ErrSubaddressesNotSupportedForFog) {
		t.Errorf("got %v, want ErrSubaddressesNotSupportedForFog", err)
	}
}

func TestRemoveAccountLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t)
	account, key := env.importAccount("alice", 5)
	env.fund(key, 1000, 2000)

	// Build a transaction so logs, joins and minted txos exist.
	recipientB58 := env.recipientAddress(t, 6)
	_, _, err := env.service.NewTransactionBuilder(account.ID).
		AddRecipient(recipientB58, mobAmount(500)).
		SetFee(mobAmount(10)).
		BuildAndLog()
	if err != nil {
		t.Fatal(err)
	}

	if err := env.service.RemoveAccount(account.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := env.service.GetAccount(account.ID); !walletdb.IsNotFound(err) {
		t.Errorf("got %v, want not found", err)
	}
	err = env.db.View(func(tx *walletdb.Txn) error {
		subs, err := tx.ListSubaddresses(account.ID)
		if err != nil {
			return err
		}
		if len(subs) != 0 {
			t.Errorf("%d subaddresses survive removal", len(subs))
		}
		logs, err := tx.ListTransactionLogs(account.ID)
		if err != nil {
			return err
		}
		if len(logs) != 0 {
			t.Errorf("%d transaction logs survive removal", len(logs))
		}
		txos, err := tx.ListTxosForAccount(account.ID, nil)
		if err != nil {
			return err
		}
		if len(txos) != 0 {
			t.Errorf("%d txos still reference the account", len(txos))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestViewOnlyImportAndSync(t *testing.T) {
	env := newTestEnv(t)
	// The spend keys live elsewhere; the wallet gets only view material.
	fullKey, err := crypto.NewAccountKeyFromMnemonic(testMnemonic(t, 7), nil)
	if err != nil {
		t.Fatal(err)
	}
	account, err := env.service.ImportViewOnlyAccount(fullKey.ViewPrivateBytes(), fullKey.SpendPublic(), "watcher", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !account.ViewOnly {
		t.Fatal("account should be view only")
	}

	// Receipt lands as unverified: no key image without the spend key.
	out := env.pay(fullKey.Subaddress(0), 750)
	env.mintBlock([]*types.TxOut{out}, nil)
	env.sync()

	statuses := env.accountTxos(account.ID)
	if len(statuses) != 1 {
		t.Fatalf("got %d txos, want 1", len(statuses))
	}
	var txoID string
	for id, status := range statuses {
		txoID = id
		if status != walletdb.TxoStatusUnverified {
			t.Errorf("status = %s, want unverified", status)
		}
	}

	// Building transactions is refused.
	_, _, err = env.service.NewTransactionBuilder(account.ID).
		AddRecipient(env.recipientAddress(t, 8), mobAmount(100)).
		BuildAndLog()
	if !errors.Is(err, ErrAccountIsViewOnly) {
		t.Errorf("got %v, want ErrAccountIsViewOnly", err)
	}

	// The signer computes the key image offline and syncs it back.
	needSync, err := env.service.GetTxosNeedingSync(account.ID, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(needSync) != 1 {
		t.Fatalf("got %d txos needing sync, want 1", len(needSync))
	}
	onetime, err := crypto.RecoverOnetimePrivate(fullKey, out, 0)
	if err != nil {
		t.Fatal(err)
	}
	err = env.service.SyncAccount(account.ID, []TxOutSyncPair{{
		TxOutPublicKey: out.PublicKey,
		KeyImage:       crypto.KeyImageFor(onetime),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, status, err := env.service.GetTxo(txoID); err != nil || status != walletdb.TxoStatusUnspent {
		t.Errorf("status = %s (err %v), want unspent after sync", status, err)
	}

	// Sync on a full account is refused.
	full, _ := env.importAccount("full", 9)
	err = env.service.SyncAccount(full.ID, nil)
	if !errors.Is(err, ErrAccountIsNotViewOnly) {
		t.Errorf("got %v, want ErrAccountIsNotViewOnly", err)
	}
}
