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
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// ReceiptStatus is the recipient-side view of a payment in flight.
type ReceiptStatus string

const (
	// ReceiptStatusUnavailable: the output has not appeared in the
	// recipient's wallet yet.
	ReceiptStatusUnavailable ReceiptStatus = "unavailable"
	// ReceiptStatusPending: the output exists but has no received block.
	ReceiptStatusPending ReceiptStatus = "pending"
	// ReceiptStatusSuccess: the output landed and the confirmation number
	// checks out.
	ReceiptStatusSuccess ReceiptStatus = "success"
	// ReceiptStatusFailed: the confirmation number does not validate; the
	// sender's receipt does not match the received output.
	ReceiptStatusFailed ReceiptStatus = "failed"
)

// CreateReceiverReceipts packages one receipt per payload output of a
// built proposal, for out-of-band delivery to the recipients.
func (s *Service) CreateReceiverReceipts(proposal *types.TxProposal) []*types.ReceiverReceipt {
	receipts := make([]*types.ReceiverReceipt, 0, len(proposal.PayloadTxos))
	for _, out := range proposal.PayloadTxos {
		receipts = append(receipts, &types.ReceiverReceipt{
			PublicKey:      out.TxOut.PublicKey,
			Confirmation:   out.Confirmation,
			TombstoneBlock: proposal.TombstoneBlockIndex,
			MaskedValue:    out.TxOut.MaskedValue,
			MaskedTokenID:  out.TxOut.MaskedTokenID,
		})
	}
	return receipts
}

// CheckReceiverReceiptStatus resolves a receipt against the recipient
// account's txos and validates its confirmation number.
func (s *Service) CheckReceiverReceiptStatus(accountID string, receipt *types.ReceiverReceipt) (ReceiptStatus, *walletdb.Txo, error) {
	var (
		account *walletdb.Account
		txo     *walletdb.Txo
	)
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		if account, err = t.GetAccount(accountID); err != nil {
			return err
		}
		txo, err = t.GetTxoByPublicKey(receipt.PublicKey.Bytes())
		if walletdb.IsNotFound(err) {
			txo = nil
			return nil
		}
		if err == nil && (txo.AccountID == nil || *txo.AccountID != accountID) {
			// The row exists but is not (yet) in the recipient's wallet.
			txo = nil
		}
		return err
	})
	if err != nil {
		return "", nil, err
	}
	if txo == nil {
		return ReceiptStatusUnavailable, nil, nil
	}
	if txo.ReceivedBlockIndex == nil {
		return ReceiptStatusPending, txo, nil
	}
	key, err := s.accountKey(account)
	if err != nil {
		return "", nil, err
	}
	ok, err := crypto.ValidateConfirmation(key, receipt.PublicKey, receipt.Confirmation)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return ReceiptStatusFailed, txo, nil
	}
	return ReceiptStatusSuccess, txo, nil
}
