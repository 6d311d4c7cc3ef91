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

// Package walletapi exposes the wallet service over JSON-RPC under the
// "wallet" namespace.
package walletapi

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mobilecoinofficial/full-service/common/b58"
	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/wallet"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// API is the RPC receiver. While a resync is in progress, the methods that
// create, import, update or remove accounts, assign addresses, build or
// submit transactions, or sync view-only key images are refused; the other
// methods, including all read-only queries and account resync, are served.
type API struct {
	service *wallet.Service
}

// NewAPI wraps a wallet service for RPC exposure.
func NewAPI(service *wallet.Service) *API {
	return &API{service: service}
}

// NewServer builds a JSON-RPC server with the wallet namespace registered.
func NewServer(service *wallet.Service) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("wallet", NewAPI(service)); err != nil {
		return nil, err
	}
	return server, nil
}

// CreateAccount creates a new account from a fresh mnemonic.
func (api *API) CreateAccount(name string, fogReportURL *string) (*AccountResult, error) {
	var fog *crypto.FogInfo
	if fogReportURL != nil && *fogReportURL != "" {
		fog = &crypto.FogInfo{ReportURL: *fogReportURL}
	}
	account, err := api.service.CreateAccount(name, fog)
	if err != nil {
		return nil, err
	}
	return api.accountResult(account)
}

// ImportAccount imports an account from a mnemonic or, for key derivation
// version 1, from hex root entropy.
func (api *API) ImportAccount(args ImportAccountArgs) (*AccountResult, error) {
	var fog *crypto.FogInfo
	if args.FogReportURL != "" {
		fog = &crypto.FogInfo{ReportURL: args.FogReportURL}
	}
	version := args.KeyDerivationVersion
	if version == 0 {
		version = crypto.KeyDerivationV2
	}
	var (
		account *walletdb.Account
		err     error
	)
	switch version {
	case crypto.KeyDerivationV2:
		account, err = api.service.ImportAccount(args.Mnemonic, args.Name, args.FirstBlockIndex, args.NextSubaddressIndex, fog)
	case crypto.KeyDerivationV1:
		account, err = api.service.ImportAccountFromLegacyRootEntropy(args.Entropy, args.Name, args.FirstBlockIndex, args.NextSubaddressIndex, fog)
	default:
		return nil, fmt.Errorf("%w: %d", crypto.ErrUnknownKeyDerivationVersion, version)
	}
	if err != nil {
		return nil, err
	}
	return api.accountResult(account)
}

// ImportViewOnlyAccount imports an account from its view private key and
// spend public key.
func (api *API) ImportViewOnlyAccount(args ImportViewOnlyAccountArgs) (*AccountResult, error) {
	var spendPublic types.Key
	if err := spendPublic.UnmarshalText([]byte(args.SpendPublicKey)); err != nil {
		return nil, err
	}
	account, err := api.service.ImportViewOnlyAccount(args.ViewPrivateKey, spendPublic, args.Name, args.FirstBlockIndex, args.NextSubaddressIndex)
	if err != nil {
		return nil, err
	}
	return api.accountResult(account)
}

// GetAccount fetches one account.
func (api *API) GetAccount(accountID string) (*AccountResult, error) {
	account, err := api.service.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	return api.accountResult(account)
}

// ListAccounts lists all accounts.
func (api *API) ListAccounts() ([]*AccountResult, error) {
	accounts, err := api.service.ListAccounts()
	if err != nil {
		return nil, err
	}
	results := make([]*AccountResult, 0, len(accounts))
	for _, account := range accounts {
		r, err := api.accountResult(account)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// UpdateAccountName renames an account.
func (api *API) UpdateAccountName(accountID, name string) error {
	return api.service.UpdateAccountName(accountID, name)
}

// RemoveAccount deletes an account and its scoped records.
func (api *API) RemoveAccount(accountID string) error {
	return api.service.RemoveAccount(accountID)
}

// ExportAccountSecrets exports an account's key material.
func (api *API) ExportAccountSecrets(accountID string) (*AccountSecretsResult, error) {
	secrets, err := api.service.ExportAccountSecrets(accountID)
	if err != nil {
		return nil, err
	}
	result := &AccountSecretsResult{
		AccountID:            secrets.AccountID,
		Name:                 secrets.Name,
		KeyDerivationVersion: secrets.KeyDerivationVersion,
		Mnemonic:             secrets.Mnemonic,
		ViewPrivateKey:       hexutil.Bytes(secrets.ViewPrivateKey),
		SpendPrivateKey:      hexutil.Bytes(secrets.SpendPrivateKey),
	}
	if secrets.RootEntropy != nil {
		result.RootEntropy = hexutil.Bytes(secrets.RootEntropy)
	}
	return result, nil
}

// AssignAddress allocates the next subaddress of an account.
func (api *API) AssignAddress(accountID, comment string) (*AddressResult, error) {
	sub, err := api.service.AssignNextSubaddress(accountID, comment)
	if err != nil {
		return nil, err
	}
	return addressResult(sub), nil
}

// GetAddresses lists an account's assigned subaddresses.
func (api *API) GetAddresses(accountID string) ([]*AddressResult, error) {
	subs, err := api.service.ListAddressesForAccount(accountID)
	if err != nil {
		return nil, err
	}
	results := make([]*AddressResult, 0, len(subs))
	for _, sub := range subs {
		results = append(results, addressResult(sub))
	}
	return results, nil
}

// VerifyAddress reports whether a string is a well-formed b58 address.
func (api *API) VerifyAddress(address string) bool {
	return api.service.VerifyAddress(address)
}

// GetBalance derives an account's per-token balance.
func (api *API) GetBalance(accountID string) (map[uint64]*BalanceResult, error) {
	balances, err := api.service.GetBalanceForAccount(accountID)
	if err != nil {
		return nil, err
	}
	results := make(map[uint64]*BalanceResult, len(balances))
	for tokenID, balance := range balances {
		results[uint64(tokenID)] = &BalanceResult{
			Unspent:    balance.Unspent.Dec(),
			Pending:    balance.Pending.Dec(),
			Spent:      balance.Spent.Dec(),
			Secreted:   balance.Secreted.Dec(),
			Orphaned:   balance.Orphaned.Dec(),
			Unverified: balance.Unverified.Dec(),
		}
	}
	return results, nil
}

// GetWalletStatus reports ledger heights and the resync gate.
func (api *API) GetWalletStatus() (*WalletStatusResult, error) {
	status, err := api.service.NetworkStatus()
	if err != nil {
		return nil, err
	}
	return &WalletStatusResult{
		LocalBlockHeight:   hexutil.Uint64(status.LocalBlockHeight),
		NetworkBlockHeight: hexutil.Uint64(status.NetworkBlockHeight),
		ResyncInProgress:   api.service.ResyncInProgress(),
	}, nil
}

// ListTxos lists an account's txos with an optional status filter.
func (api *API) ListTxos(accountID string, status *string, tokenID *uint64) ([]*TxoResult, error) {
	var statusFilter *walletdb.TxoStatus
	if status != nil {
		parsed, err := walletdb.ParseTxoStatus(*status)
		if err != nil {
			return nil, err
		}
		statusFilter = &parsed
	}
	var tokenFilter *types.TokenID
	if tokenID != nil {
		token := types.TokenID(*tokenID)
		tokenFilter = &token
	}
	txos, err := api.service.ListTxosForAccount(accountID, statusFilter, tokenFilter)
	if err != nil {
		return nil, err
	}
	results := make([]*TxoResult, 0, len(txos))
	for _, x := range txos {
		_, st, err := api.service.GetTxo(x.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, txoResult(x, st))
	}
	return results, nil
}

// GetTxo fetches one txo with its derived status.
func (api *API) GetTxo(txoID string) (*TxoResult, error) {
	txo, status, err := api.service.GetTxo(txoID)
	if err != nil {
		return nil, err
	}
	return txoResult(txo, status), nil
}

// BuildTransaction builds and logs a transaction, returning the proposal
// for later submission.
func (api *API) BuildTransaction(args BuildTransactionArgs) (*TxProposalResult, error) {
	builder := api.service.NewTransactionBuilder(args.AccountID)
	for _, r := range args.Recipients {
		builder.AddRecipient(r.RecipientB58, types.Amount{Value: uint64(r.Value), TokenID: types.TokenID(r.TokenID)})
	}
	if args.Fee != nil {
		builder.SetFee(types.Amount{Value: uint64(args.Fee.Value), TokenID: types.TokenID(args.Fee.TokenID)})
	}
	if args.TombstoneBlock != nil {
		builder.SetTombstone(uint64(*args.TombstoneBlock))
	}
	if args.MaxSpendable != nil {
		builder.SetMaxSpendable(uint64(*args.MaxSpendable))
	}
	if args.SpendSubaddress != "" {
		builder.SetSpendSubaddress(args.SpendSubaddress)
	}
	if args.Comment != "" {
		builder.SetComment(args.Comment)
	}
	if len(args.InputTxoIDs) > 0 {
		builder.SetInputs(args.InputTxoIDs)
	}
	proposal, txLog, err := builder.BuildAndLog()
	if err != nil {
		return nil, err
	}
	return txProposalResult(proposal, txLog)
}

// SubmitTransaction submits a previously built proposal.
func (api *API) SubmitTransaction(ctx context.Context, proposalRLP hexutil.Bytes, comment, accountID string) (*TransactionLogResult, error) {
	proposal := new(types.TxProposal)
	if err := rlp.DecodeBytes(proposalRLP, proposal); err != nil {
		return nil, err
	}
	txLog, err := api.service.SubmitTransaction(ctx, proposal, comment, accountID)
	if err != nil {
		return nil, err
	}
	return logResult(txLog), nil
}

// GetTransactionLog fetches a transaction log.
func (api *API) GetTransactionLog(logID string) (*TransactionLogResult, error) {
	txLog, err := api.service.GetTransactionLog(logID)
	if err != nil {
		return nil, err
	}
	return logResult(txLog), nil
}

// ListTransactionLogs lists an account's transaction logs.
func (api *API) ListTransactionLogs(accountID string) ([]*TransactionLogResult, error) {
	logs, err := api.service.ListTransactionLogs(accountID)
	if err != nil {
		return nil, err
	}
	results := make([]*TransactionLogResult, 0, len(logs))
	for _, l := range logs {
		results = append(results, logResult(l))
	}
	return results, nil
}

// ValidateConfirmation checks a sender's confirmation number against a
// received txo.
func (api *API) ValidateConfirmation(accountID, txoID string, confirmation hexutil.Bytes) (bool, error) {
	if len(confirmation) != 32 {
		return false, fmt.Errorf("confirmation must be 32 bytes, got %d", len(confirmation))
	}
	var c [32]byte
	copy(c[:], confirmation)
	return api.service.ValidateConfirmation(accountID, txoID, c)
}

// CheckReceiverReceiptStatus resolves a b58 receipt against an account.
func (api *API) CheckReceiverReceiptStatus(accountID, receiptB58 string) (*ReceiptStatusResult, error) {
	receipt, err := b58.DecodeReceipt(receiptB58)
	if err != nil {
		return nil, err
	}
	status, txo, err := api.service.CheckReceiverReceiptStatus(accountID, receipt)
	if err != nil {
		return nil, err
	}
	result := &ReceiptStatusResult{Status: string(status)}
	if txo != nil {
		result.TxoID = txo.ID
	}
	return result, nil
}

// GetTxosNeedingSync returns the unverified txos of a view-only account.
func (api *API) GetTxosNeedingSync(accountID string, limit *int) ([]*TxoResult, error) {
	n := 0
	if limit != nil {
		n = *limit
	}
	txos, err := api.service.GetTxosNeedingSync(accountID, nil, n)
	if err != nil {
		return nil, err
	}
	results := make([]*TxoResult, 0, len(txos))
	for _, x := range txos {
		results = append(results, txoResult(x, walletdb.TxoStatusUnverified))
	}
	return results, nil
}

// SyncAccount stores externally computed key images for a view-only
// account.
func (api *API) SyncAccount(accountID string, pairs []SyncPairArgs) error {
	syncPairs := make([]wallet.TxOutSyncPair, 0, len(pairs))
	for _, p := range pairs {
		var pair wallet.TxOutSyncPair
		if err := pair.TxOutPublicKey.UnmarshalText([]byte(p.TxOutPublicKey)); err != nil {
			return err
		}
		ki, err := types.KeyImageFromBytes(p.KeyImage)
		if err != nil {
			return err
		}
		pair.KeyImage = ki
		syncPairs = append(syncPairs, pair)
	}
	return api.service.SyncAccount(accountID, syncPairs)
}

func (api *API) accountResult(account *walletdb.Account) (*AccountResult, error) {
	main, err := api.service.GetAddressForAccount(account.ID, account.MainSubaddressIndex)
	if err != nil {
		return nil, err
	}
	return &AccountResult{
		AccountID:              account.ID,
		Name:                   account.Name,
		MainAddress:            main.PublicAddressB58,
		NextSubaddressIndex:    hexutil.Uint64(account.NextSubaddressIndex),
		FirstBlockIndex:        hexutil.Uint64(account.FirstBlockIndex),
		NextBlockIndex:         hexutil.Uint64(account.NextBlockIndex),
		ImportBlockIndex:       optUint64(account.ImportBlockIndex),
		KeyDerivationVersion:   account.KeyDerivationVersion,
		FogEnabled:             account.FogEnabled,
		ViewOnly:               account.ViewOnly,
		RequireSpendSubaddress: account.RequireSpendSubaddress,
	}, nil
}
