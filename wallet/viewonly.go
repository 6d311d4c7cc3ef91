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
	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// TxOutSyncPair is one key image computed offline by the external signer
// for a view-only account's output.
type TxOutSyncPair struct {
	TxOutPublicKey types.Key
	KeyImage       types.KeyImage
}

// ViewOnlySyncRequest is the batch a view-only account exports to its
// signer: serialized outputs whose key images are unknown.
type ViewOnlySyncRequest struct {
	AccountID         string
	IncompleteTxOuts  [][]byte
	SubaddressIndices []uint64
}

// GetTxosNeedingSync returns the view-only account's outputs with no key
// image, optionally restricted to a memo type and batch size.
func (s *Service) GetTxosNeedingSync(accountID string, memoType *uint64, limit int) ([]*walletdb.Txo, error) {
	var txos []*walletdb.Txo
	err := s.db.View(func(t *walletdb.Txn) error {
		account, err := t.GetAccount(accountID)
		if err != nil {
			return err
		}
		if !account.ViewOnly {
			return ErrAccountIsNotViewOnly
		}
		txos, err = t.ListTxosNeedingSync(accountID, memoType, limit)
		return err
	})
	return txos, err
}

// CreateViewOnlySyncRequest packages the unverified outputs for the
// offline signer.
func (s *Service) CreateViewOnlySyncRequest(accountID string, limit int) (*ViewOnlySyncRequest, error) {
	txos, err := s.GetTxosNeedingSync(accountID, nil, limit)
	if err != nil {
		return nil, err
	}
	req := &ViewOnlySyncRequest{AccountID: accountID}
	for _, x := range txos {
		req.IncompleteTxOuts = append(req.IncompleteTxOuts, x.Txo)
		if x.SubaddressIndex != nil {
			req.SubaddressIndices = append(req.SubaddressIndices, *x.SubaddressIndex)
		}
	}
	return req, nil
}

// SyncAccount stores key images computed by the external signer. Each
// image is checked against the ledger; ones that already appeared on chain
// mark their txo spent at the block the ledger reports.
func (s *Service) SyncAccount(accountID string, pairs []TxOutSyncPair) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Transaction(func(t *walletdb.Txn) error {
		account, err := t.GetAccount(accountID)
		if err != nil {
			return err
		}
		if !account.ViewOnly {
			return ErrAccountIsNotViewOnly
		}
		for _, pair := range pairs {
			txo, err := t.GetTxoByPublicKey(pair.TxOutPublicKey.Bytes())
			if err != nil {
				return err
			}
			spentIndex, err := s.ledger.CheckKeyImage(pair.KeyImage)
			if err != nil {
				return err
			}
			if err := t.UpdateTxoKeyImage(txo.ID, pair.KeyImage.Bytes(), spentIndex); err != nil {
				return err
			}
			if spentIndex != nil {
				if err := t.FinalizePendingForSpentTxo(txo.ID, *spentIndex); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
