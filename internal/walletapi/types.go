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
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// ImportAccountArgs are the parameters of wallet_importAccount.
type ImportAccountArgs struct {
	Mnemonic             string         `json:"mnemonic"`
	Entropy              hexutil.Bytes  `json:"entropy"`
	KeyDerivationVersion int            `json:"keyDerivationVersion"`
	Name                 string         `json:"name"`
	FirstBlockIndex      *uint64        `json:"firstBlockIndex"`
	NextSubaddressIndex  *uint64        `json:"nextSubaddressIndex"`
	FogReportURL         string         `json:"fogReportUrl"`
}

// ImportViewOnlyAccountArgs are the parameters of
// wallet_importViewOnlyAccount.
type ImportViewOnlyAccountArgs struct {
	ViewPrivateKey      hexutil.Bytes `json:"viewPrivateKey"`
	SpendPublicKey      string        `json:"spendPublicKey"`
	Name                string        `json:"name"`
	FirstBlockIndex     *uint64       `json:"firstBlockIndex"`
	NextSubaddressIndex *uint64       `json:"nextSubaddressIndex"`
}

// AccountResult is the RPC shape of an account.
type AccountResult struct {
	AccountID              string         `json:"accountId"`
	Name                   string         `json:"name"`
	MainAddress            string         `json:"mainAddress"`
	NextSubaddressIndex    hexutil.Uint64 `json:"nextSubaddressIndex"`
	FirstBlockIndex        hexutil.Uint64 `json:"firstBlockIndex"`
	NextBlockIndex         hexutil.Uint64 `json:"nextBlockIndex"`
	ImportBlockIndex       *hexutil.Uint64 `json:"importBlockIndex,omitempty"`
	KeyDerivationVersion   int            `json:"keyDerivationVersion"`
	FogEnabled             bool           `json:"fogEnabled"`
	ViewOnly               bool           `json:"viewOnly"`
	RequireSpendSubaddress bool           `json:"requireSpendSubaddress"`
}

// AccountSecretsResult is the RPC shape of exported account secrets.
type AccountSecretsResult struct {
	AccountID            string        `json:"accountId"`
	Name                 string        `json:"name"`
	KeyDerivationVersion int           `json:"keyDerivationVersion"`
	Mnemonic             string        `json:"mnemonic,omitempty"`
	RootEntropy          hexutil.Bytes `json:"rootEntropy,omitempty"`
	ViewPrivateKey       hexutil.Bytes `json:"viewPrivateKey"`
	SpendPrivateKey      hexutil.Bytes `json:"spendPrivateKey,omitempty"`
}

// AddressResult is the RPC shape of an assigned subaddress.
type AddressResult struct {
	PublicAddressB58 string         `json:"publicAddressB58"`
	AccountID        string         `json:"accountId"`
	SubaddressIndex  hexutil.Uint64 `json:"subaddressIndex"`
	Comment          string         `json:"comment,omitempty"`
}

func addressResult(sub *walletdb.AssignedSubaddress) *AddressResult {
	return &AddressResult{
		PublicAddressB58: sub.PublicAddressB58,
		AccountID:        sub.AccountID,
		SubaddressIndex:  hexutil.Uint64(sub.SubaddressIndex),
		Comment:          sub.Comment,
	}
}

// BalanceResult carries decimal strings: balances can exceed the 64-bit
// range JSON numbers survive.
type BalanceResult struct {
	Unspent    string `json:"unspent"`
	Pending    string `json:"pending"`
	Spent      string `json:"spent"`
	Secreted   string `json:"secreted"`
	Orphaned   string `json:"orphaned"`
	Unverified string `json:"unverified"`
}

// WalletStatusResult is the RPC shape of wallet_getWalletStatus.
type WalletStatusResult struct {
	LocalBlockHeight   hexutil.Uint64 `json:"localBlockHeight"`
	NetworkBlockHeight hexutil.Uint64 `json:"networkBlockHeight"`
	ResyncInProgress   bool           `json:"resyncInProgress"`
}

// TxoResult is the RPC shape of a txo with its derived status.
type TxoResult struct {
	TxoID              string          `json:"txoId"`
	AccountID          string          `json:"accountId,omitempty"`
	Value              hexutil.Uint64  `json:"value"`
	TokenID            hexutil.Uint64  `json:"tokenId"`
	PublicKey          hexutil.Bytes   `json:"publicKey"`
	SubaddressIndex    *hexutil.Uint64 `json:"subaddressIndex,omitempty"`
	ReceivedBlockIndex *hexutil.Uint64 `json:"receivedBlockIndex,omitempty"`
	SpentBlockIndex    *hexutil.Uint64 `json:"spentBlockIndex,omitempty"`
	Status             string          `json:"status"`
}

func txoResult(x *walletdb.Txo, status walletdb.TxoStatus) *TxoResult {
	r := &TxoResult{
		TxoID:              x.ID,
		Value:              hexutil.Uint64(x.Value),
		TokenID:            hexutil.Uint64(uint64(x.TokenID)),
		PublicKey:          hexutil.Bytes(x.PublicKey),
		SubaddressIndex:    optUint64(x.SubaddressIndex),
		ReceivedBlockIndex: optUint64(x.ReceivedBlockIndex),
		SpentBlockIndex:    optUint64(x.SpentBlockIndex),
		Status:             string(status),
	}
	if x.AccountID != nil {
		r.AccountID = *x.AccountID
	}
	return r
}

// AmountArgs is a value/token pair in RPC arguments.
type AmountArgs struct {
	Value   hexutil.Uint64 `json:"value"`
	TokenID hexutil.Uint64 `json:"tokenId"`
}

// RecipientArgs is one outlay in wallet_buildTransaction.
type RecipientArgs struct {
	RecipientB58 string         `json:"recipientB58"`
	Value        hexutil.Uint64 `json:"value"`
	TokenID      hexutil.Uint64 `json:"tokenId"`
}

// BuildTransactionArgs are the parameters of wallet_buildTransaction.
type BuildTransactionArgs struct {
	AccountID       string          `json:"accountId"`
	Recipients      []RecipientArgs `json:"recipients"`
	Fee             *AmountArgs     `json:"fee"`
	TombstoneBlock  *hexutil.Uint64 `json:"tombstoneBlock"`
	MaxSpendable    *hexutil.Uint64 `json:"maxSpendable"`
	SpendSubaddress string          `json:"spendSubaddress"`
	InputTxoIDs     []string        `json:"inputTxoIds"`
	Comment         string          `json:"comment"`
}

// TxProposalResult returns a built proposal: its log id, the receipts for
// its recipients, and the RLP proposal for wallet_submitTransaction.
type TxProposalResult struct {
	TransactionLogID string         `json:"transactionLogId"`
	Fee              hexutil.Uint64 `json:"fee"`
	FeeTokenID       hexutil.Uint64 `json:"feeTokenId"`
	TombstoneBlock   hexutil.Uint64 `json:"tombstoneBlock"`
	InputTxoIDs      []string       `json:"inputTxoIds"`
	ProposalRLP      hexutil.Bytes  `json:"proposalRlp"`
}

func txProposalResult(proposal *types.TxProposal, txLog *walletdb.TransactionLog) (*TxProposalResult, error) {
	encoded, err := rlp.EncodeToBytes(proposal)
	if err != nil {
		return nil, err
	}
	result := &TxProposalResult{
		TransactionLogID: txLog.ID,
		Fee:              hexutil.Uint64(proposal.Fee),
		FeeTokenID:       hexutil.Uint64(uint64(proposal.FeeTokenID)),
		TombstoneBlock:   hexutil.Uint64(proposal.TombstoneBlockIndex),
		ProposalRLP:      encoded,
	}
	for _, input := range proposal.InputTxos {
		result.InputTxoIDs = append(result.InputTxoIDs, input.TxoID.Hex())
	}
	return result, nil
}

// TransactionLogResult is the RPC shape of a transaction log.
type TransactionLogResult struct {
	TransactionLogID    string          `json:"transactionLogId"`
	AccountID           string          `json:"accountId"`
	FeeValue            hexutil.Uint64  `json:"feeValue"`
	FeeTokenID          hexutil.Uint64  `json:"feeTokenId"`
	SubmittedBlockIndex *hexutil.Uint64 `json:"submittedBlockIndex,omitempty"`
	TombstoneBlockIndex *hexutil.Uint64 `json:"tombstoneBlockIndex,omitempty"`
	FinalizedBlockIndex *hexutil.Uint64 `json:"finalizedBlockIndex,omitempty"`
	Comment             string          `json:"comment,omitempty"`
	Status              string          `json:"status"`
}

func logResult(l *walletdb.TransactionLog) *TransactionLogResult {
	return &TransactionLogResult{
		TransactionLogID:    l.ID,
		AccountID:           l.AccountID,
		FeeValue:            hexutil.Uint64(l.FeeValue),
		FeeTokenID:          hexutil.Uint64(uint64(l.FeeTokenID)),
		SubmittedBlockIndex: optUint64(l.SubmittedBlockIndex),
		TombstoneBlockIndex: optUint64(l.TombstoneBlockIndex),
		FinalizedBlockIndex: optUint64(l.FinalizedBlockIndex),
		Comment:             l.Comment,
		Status:              string(l.Status()),
	}
}

// ReceiptStatusResult is the RPC shape of a receipt check.
type ReceiptStatusResult struct {
	Status string `json:"status"`
	TxoID  string `json:"txoId,omitempty"`
}

// SyncPairArgs is one externally computed key image in wallet_syncAccount.
type SyncPairArgs struct {
	TxOutPublicKey string        `json:"txOutPublicKey"`
	KeyImage       hexutil.Bytes `json:"keyImage"`
}

func optUint64(v *uint64) *hexutil.Uint64 {
	if v == nil {
		return nil
	}
	u := hexutil.Uint64(*v)
	return &u
}
