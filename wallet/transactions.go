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
	"context"
	"errors"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// SubmitTransaction hands a built proposal to consensus and records the
// submission at the current ledger height. Proposals submitted without a
// prior build step get their log created here.
func (s *Service) SubmitTransaction(ctx context.Context, proposal *types.TxProposal, comment, accountID string) (*walletdb.TransactionLog, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if s.submitter == nil {
		return nil, errors.New("wallet: no consensus connection configured")
	}
	if err := s.submitter.SubmitTx(ctx, proposal.Tx); err != nil {
		return nil, err
	}
	height, err := s.ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	var txLog *walletdb.TransactionLog
	err = s.db.Transaction(func(t *walletdb.Txn) error {
		txLog, err = t.LogSubmitted(proposal, height, comment, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Submitted transaction", "account", accountID, "log", txLog.ID, "block", height)
	return txLog, nil
}

// BuildAndSubmitTransaction is the common one-shot path: build, log and
// submit in sequence.
func (s *Service) BuildAndSubmitTransaction(ctx context.Context, b *TransactionBuilder) (*types.TxProposal, *walletdb.TransactionLog, error) {
	proposal, _, err := b.BuildAndLog()
	if err != nil {
		return nil, nil, err
	}
	txLog, err := s.SubmitTransaction(ctx, proposal, b.comment, b.accountID)
	if err != nil {
		return nil, nil, err
	}
	return proposal, txLog, nil
}

// GetTransactionLog fetches a log with its derived status.
func (s *Service) GetTransactionLog(logID string) (*walletdb.TransactionLog, error) {
	var txLog *walletdb.TransactionLog
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		txLog, err = t.GetTransactionLog(logID)
		return err
	})
	return txLog, err
}

// ListTransactionLogs returns an account's logs.
func (s *Service) ListTransactionLogs(accountID string) ([]*walletdb.TransactionLog, error) {
	var logs []*walletdb.TransactionLog
	err := s.db.View(func(t *walletdb.Txn) error {
		if _, err := t.GetAccount(accountID); err != nil {
			return err
		}
		var err error
		logs, err = t.ListTransactionLogs(accountID)
		return err
	})
	return logs, err
}

// GetAssociatedTxos returns the txos a log consumes and mints.
func (s *Service) GetAssociatedTxos(logID string) (*walletdb.AssociatedTxos, error) {
	var assoc *walletdb.AssociatedTxos
	err := s.db.View(func(t *walletdb.Txn) error {
		if _, err := t.GetTransactionLog(logID); err != nil {
			return err
		}
		var err error
		assoc, err = t.GetAssociatedTxos(logID)
		return err
	})
	return assoc, err
}

// ValidateConfirmation checks a sender-supplied confirmation number
// against a txo the account received.
func (s *Service) ValidateConfirmation(accountID, txoID string, confirmation [32]byte) (bool, error) {
	var (
		account *walletdb.Account
		txo     *walletdb.Txo
	)
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		if account, err = t.GetAccount(accountID); err != nil {
			return err
		}
		txo, err = t.GetTxo(txoID)
		return err
	})
	if err != nil {
		return false, err
	}
	key, err := s.accountKey(account)
	if err != nil {
		return false, err
	}
	publicKey, err := types.KeyFromBytes(txo.PublicKey)
	if err != nil {
		return false, err
	}
	return crypto.ValidateConfirmation(key, publicKey, confirmation)
}
