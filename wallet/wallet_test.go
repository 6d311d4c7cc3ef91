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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tyler-smith/go-bip39"

	"github.com/mobilecoinofficial/full-service/common/b58"
	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/ledger/memledger"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// recordingSubmitter collects submitted transactions; tests decide whether
// they land on the ledger or expire.
type recordingSubmitter struct {
	submitted []*types.Tx
}

func (s *recordingSubmitter) SubmitTx(_ context.Context, tx *types.Tx) error {
	s.submitted = append(s.submitted, tx)
	return nil
}

type testEnv struct {
	t         *testing.T
	db        *walletdb.DB
	ledger    *memledger.Ledger
	service   *Service
	worker    *SyncWorker
	submitter *recordingSubmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ldg := memledger.New()
	submitter := &recordingSubmitter{}
	service := NewService(db, ldg, ldg, submitter)
	return &testEnv{
		t:         t,
		db:        db,
		ledger:    ldg,
		service:   service,
		worker:    NewSyncWorker(service, time.Hour),
		submitter: submitter,
	}
}

func testMnemonic(t *testing.T, seed byte) string {
	t.Helper()
	mnemonic, err := bip39.NewMnemonic(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		t.Fatal(err)
	}
	return mnemonic
}

// importAccount imports a deterministic account scanning from block zero.
func (env *testEnv) importAccount(name string, seed byte) (*walletdb.Account, *crypto.AccountKey) {
	env.t.Helper()
	mnemonic := testMnemonic(env.t, seed)
	account, err := env.service.ImportAccount(mnemonic, name, nil, nil, nil)
	if err != nil {
		env.t.Fatal(err)
	}
	key, err := crypto.NewAccountKeyFromMnemonic(mnemonic, nil)
	if err != nil {
		env.t.Fatal(err)
	}
	return account, key
}

// pay mints an output to the given address.
func (env *testEnv) pay(addr *types.PublicAddress, value uint64) *types.TxOut {
	env.t.Helper()
	out, _, err := crypto.CreateTxOut(types.Amount{Value: value, TokenID: types.MOB}, addr, nil)
	if err != nil {
		env.t.Fatal(err)
	}
	return out
}

// mintBlock appends a block with the given outputs and key images.
func (env *testEnv) mintBlock(outs []*types.TxOut, images []types.KeyImage) uint64 {
	env.t.Helper()
	return env.ledger.AppendBlock(&types.BlockContents{TxOuts: outs, KeyImages: images})
}

// sync runs one scan tick.
func (env *testEnv) sync() {
	env.t.Helper()
	env.worker.Tick()
}

// land appends a block carrying a submitted proposal's outputs and key
// images, as consensus would.
func (env *testEnv) land(proposal *types.TxProposal) uint64 {
	env.t.Helper()
	images := make([]types.KeyImage, 0, len(proposal.InputTxos))
	for _, input := range proposal.InputTxos {
		images = append(images, input.KeyImage)
	}
	return env.mintBlock(proposal.Tx.Prefix.Outputs, images)
}

func (env *testEnv) accountTxos(accountID string) map[string]walletdb.TxoStatus {
	env.t.Helper()
	statuses := make(map[string]walletdb.TxoStatus)
	txos, err := env.service.ListTxosForAccount(accountID, nil, nil)
	if err != nil {
		env.t.Fatal(err)
	}
	for _, x := range txos {
		_, status, err := env.service.GetTxo(x.ID)
		if err != nil {
			env.t.Fatal(err)
		}
		statuses[x.ID] = status
	}
	return statuses
}

// recipientAddress returns the b58 main address of an unrelated party.
func (env *testEnv) recipientAddress(t *testing.T, seed byte) string {
	t.Helper()
	key, err := crypto.NewAccountKeyFromMnemonic(testMnemonic(t, seed), nil)
	if err != nil {
		t.Fatal(err)
	}
	addrB58, err := b58.EncodePublicAddress(key.Subaddress(0))
	if err != nil {
		t.Fatal(err)
	}
	return addrB58
}

func mobAmount(value uint64) types.Amount {
	return types.Amount{Value: value, TokenID: types.MOB}
}

// fund gives the account n txos of the given values in one block and
// scans it.
func (env *testEnv) fund(key *crypto.AccountKey, values ...uint64) {
	env.t.Helper()
	var outs []*types.TxOut
	for _, v := range values {
		outs = append(outs, env.pay(key.Subaddress(0), v))
	}
	env.mintBlock(outs, nil)
	env.sync()
}
