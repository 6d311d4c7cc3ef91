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

package walletapi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/ledger/memledger"
	"github.com/mobilecoinofficial/full-service/wallet"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

func newTestAPI(t *testing.T) (*API, *memledger.Ledger) {
	t.Helper()
	db, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ldg := memledger.New()
	service := wallet.NewService(db, ldg, ldg, nil)
	return NewAPI(service), ldg
}

func TestServerRegistersWalletNamespace(t *testing.T) {
	db, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ldg := memledger.New()
	server, err := NewServer(wallet.NewService(db, ldg, ldg, nil))
	require.NoError(t, err)
	defer server.Stop()
}

func TestAccountLifecycleOverAPI(t *testing.T) {
	api, _ := newTestAPI(t)

	created, err := api.CreateAccount("alice", nil)
	require.NoError(t, err)
	require.Equal(t, "alice", created.Name)
	require.NotEmpty(t, created.MainAddress)
	require.True(t, api.VerifyAddress(created.MainAddress))
	require.False(t, api.VerifyAddress("not an address"))

	accounts, err := api.ListAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, api.UpdateAccountName(created.AccountID, "renamed"))
	fetched, err := api.GetAccount(created.AccountID)
	require.NoError(t, err)
	require.Equal(t, "renamed", fetched.Name)

	secrets, err := api.ExportAccountSecrets(created.AccountID)
	require.NoError(t, err)
	require.NotEmpty(t, secrets.Mnemonic)
	require.Equal(t, crypto.KeyDerivationV2, secrets.KeyDerivationVersion)

	require.NoError(t, api.RemoveAccount(created.AccountID))
	_, err = api.GetAccount(created.AccountID)
	require.True(t, walletdb.IsNotFound(err))
}

func TestBalanceAndTxosOverAPI(t *testing.T) {
	api, ldg := newTestAPI(t)

	created, err := api.CreateAccount("alice", nil)
	require.NoError(t, err)
	secrets, err := api.ExportAccountSecrets(created.AccountID)
	require.NoError(t, err)
	key, err := crypto.NewAccountKeyFromMnemonic(secrets.Mnemonic, nil)
	require.NoError(t, err)

	out, _, err := crypto.CreateTxOut(types.Amount{Value: 1234, TokenID: types.MOB}, key.Subaddress(0), nil)
	require.NoError(t, err)
	ldg.AppendBlock(&types.BlockContents{TxOuts: []*types.TxOut{out}})

	// Drive the scanner synchronously.
	worker := wallet.NewSyncWorker(api.service, time.Hour)
	worker.Tick()

	balances, err := api.GetBalance(created.AccountID)
	require.NoError(t, err)
	require.Equal(t, "1234", balances[0].Unspent)

	status := "unspent"
	txos, err := api.ListTxos(created.AccountID, &status, nil)
	require.NoError(t, err)
	require.Len(t, txos, 1)
	require.Equal(t, "unspent", txos[0].Status)

	spent := "spent"
	none, err := api.ListTxos(created.AccountID, &spent, nil)
	require.NoError(t, err)
	require.Empty(t, none)

	walletStatus, err := api.GetWalletStatus()
	require.NoError(t, err)
	require.EqualValues(t, 1, walletStatus.LocalBlockHeight)
	require.False(t, walletStatus.ResyncInProgress)
}

func TestListTxosRejectsUnknownStatus(t *testing.T) {
	api, _ := newTestAPI(t)
	created, err := api.CreateAccount("alice", nil)
	require.NoError(t, err)

	bogus := "mislaid"
	_, err = api.ListTxos(created.AccountID, &bogus, nil)
	require.Error(t, err)
}
