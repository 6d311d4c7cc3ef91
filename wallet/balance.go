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
	"github.com/holiman/uint256"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// Balance sums an account's txos of one token by derived status. Values
// are 256-bit: a wallet's total holdings can exceed the 64-bit range of a
// single txo.
type Balance struct {
	Unspent    *uint256.Int
	Pending    *uint256.Int
	Spent      *uint256.Int
	Secreted   *uint256.Int
	Orphaned   *uint256.Int
	Unverified *uint256.Int
}

func newBalance() *Balance {
	return &Balance{
		Unspent:    uint256.NewInt(0),
		Pending:    uint256.NewInt(0),
		Spent:      uint256.NewInt(0),
		Secreted:   uint256.NewInt(0),
		Orphaned:   uint256.NewInt(0),
		Unverified: uint256.NewInt(0),
	}
}

// GetBalanceForAccount derives per-token balances from the account's txo
// set. Nothing is cached; the balance is always a pure function of the
// store. Secreted txos are not owned by the account, so they come in
// through the log-joined query rather than the ownership scan.
func (s *Service) GetBalanceForAccount(accountID string) (map[types.TokenID]*Balance, error) {
	balances := make(map[types.TokenID]*Balance)
	balanceFor := func(tokenID types.TokenID) *Balance {
		balance, ok := balances[tokenID]
		if !ok {
			balance = newBalance()
			balances[tokenID] = balance
		}
		return balance
	}
	err := s.db.View(func(t *walletdb.Txn) error {
		if _, err := t.GetAccount(accountID); err != nil {
			return err
		}
		txos, err := t.ListTxosForAccount(accountID, nil)
		if err != nil {
			return err
		}
		counted := make(map[string]bool, len(txos))
		for _, x := range txos {
			status, err := t.GetTxoStatus(x)
			if err != nil {
				return err
			}
			counted[x.ID] = true
			balance := balanceFor(x.TokenID)
			value := uint256.NewInt(x.Value)
			switch status {
			case walletdb.TxoStatusUnspent:
				balance.Unspent.Add(balance.Unspent, value)
			case walletdb.TxoStatusPending:
				balance.Pending.Add(balance.Pending, value)
			case walletdb.TxoStatusSpent:
				balance.Spent.Add(balance.Spent, value)
			case walletdb.TxoStatusSecreted:
				balance.Secreted.Add(balance.Secreted, value)
			case walletdb.TxoStatusOrphaned:
				balance.Orphaned.Add(balance.Orphaned, value)
			case walletdb.TxoStatusUnverified:
				balance.Unverified.Add(balance.Unverified, value)
			}
		}
		secreted, err := t.ListSecretedTxos(accountID, nil)
		if err != nil {
			return err
		}
		for _, x := range secreted {
			if counted[x.ID] {
				continue
			}
			balance := balanceFor(x.TokenID)
			balance.Secreted.Add(balance.Secreted, uint256.NewInt(x.Value))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// ListTxosForAccount returns an account's txos, optionally filtered by
// derived status. Created and secreted txos are not owned by the account
// (their rows carry no account_id, or another account's), so those two
// filters dispatch to the log-joined queries.
func (s *Service) ListTxosForAccount(accountID string, status *walletdb.TxoStatus, tokenID *types.TokenID) ([]*walletdb.Txo, error) {
	var out []*walletdb.Txo
	err := s.db.View(func(t *walletdb.Txn) error {
		if _, err := t.GetAccount(accountID); err != nil {
			return err
		}
		txos, err := t.ListTxosForAccount(accountID, tokenID)
		if err != nil {
			return err
		}
		if status == nil {
			out = txos
			return nil
		}
		seen := make(map[string]bool)
		for _, x := range txos {
			st, err := t.GetTxoStatus(x)
			if err != nil {
				return err
			}
			if st == *status {
				out = append(out, x)
				seen[x.ID] = true
			}
		}
		var unowned []*walletdb.Txo
		switch *status {
		case walletdb.TxoStatusCreated:
			unowned, err = t.ListCreatedTxos(accountID, tokenID)
		case walletdb.TxoStatusSecreted:
			unowned, err = t.ListSecretedTxos(accountID, tokenID)
		}
		if err != nil {
			return err
		}
		for _, x := range unowned {
			if !seen[x.ID] {
				out = append(out, x)
			}
		}
		return nil
	})
	return out, err
}

// GetTxo fetches a txo row together with its derived status.
func (s *Service) GetTxo(txoID string) (*walletdb.Txo, walletdb.TxoStatus, error) {
	var (
		txo    *walletdb.Txo
		status walletdb.TxoStatus
	)
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		if txo, err = t.GetTxo(txoID); err != nil {
			return err
		}
		status, err = t.GetTxoStatus(txo)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return txo, status, nil
}

// MaxSpendable reports the largest value the account could move in one
// transaction, after the default fee.
func (s *Service) MaxSpendable(accountID string, tokenID types.TokenID, maxSpendableValue *uint64) (*uint256.Int, error) {
	var max *uint256.Int
	err := s.db.View(func(t *walletdb.Txn) error {
		result, err := t.ListSpendableTxos(accountID, maxSpendableValue, "", tokenID, DefaultFee)
		if err != nil {
			return err
		}
		max = result.MaxSpendableInWallet
		return nil
	})
	return max, err
}
