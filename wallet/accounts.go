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
	"fmt"

	"github.com/mobilecoinofficial/full-service/common/b58"
	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// defaultNextSubaddressIndex is the cursor for a fresh account: main and
// change are materialized, index 2 is the first assignable.
const defaultNextSubaddressIndex = 2

// AccountSecrets is the exportable key material of an account.
type AccountSecrets struct {
	AccountID            string
	Name                 string
	KeyDerivationVersion int
	Mnemonic             string // v2 accounts
	RootEntropy          []byte // v1 accounts
	ViewPrivateKey       []byte
	SpendPrivateKey      []byte // nil for view-only
}

// CreateAccount creates a brand-new account from a fresh mnemonic. A new
// account cannot have history, so scanning starts at the network tip; if
// the wallet is offline with an empty local ledger, it starts at zero.
func (s *Service) CreateAccount(name string, fog *crypto.FogInfo) (*walletdb.Account, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	mnemonic, err := crypto.NewRandomMnemonic()
	if err != nil {
		return nil, err
	}
	key, err := crypto.NewAccountKeyFromMnemonic(mnemonic, fog)
	if err != nil {
		return nil, err
	}
	networkHeight, err := s.networkBlockHeight()
	if err != nil {
		return nil, err
	}
	localHeight, err := s.ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	importBlock := localHeight
	return s.insertAccount(key, &newAccountParams{
		name:                name,
		entropy:             []byte(mnemonic),
		derivationVersion:   crypto.KeyDerivationV2,
		firstBlockIndex:     networkHeight,
		importBlockIndex:    &importBlock,
		nextSubaddressIndex: defaultNextSubaddressIndex,
	})
}

// ImportAccount imports an account from a 24-word mnemonic (key derivation
// v2). firstBlockIndex defaults to 0 so the full ledger is scanned;
// nextSubaddressIndex materializes every subaddress the account was using
// so the scanner can detect txos received at any of them.
func (s *Service) ImportAccount(mnemonic, name string, firstBlockIndex *uint64, nextSubaddressIndex *uint64, fog *crypto.FogInfo) (*walletdb.Account, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	key, err := crypto.NewAccountKeyFromMnemonic(mnemonic, fog)
	if err != nil {
		return nil, err
	}
	params, err := s.importParams(name, []byte(mnemonic), crypto.KeyDerivationV2, firstBlockIndex, nextSubaddressIndex)
	if err != nil {
		return nil, err
	}
	return s.insertAccount(key, params)
}

// ImportAccountFromLegacyRootEntropy imports a v1 account from 32 bytes of
// root entropy.
func (s *Service) ImportAccountFromLegacyRootEntropy(entropy []byte, name string, firstBlockIndex *uint64, nextSubaddressIndex *uint64, fog *crypto.FogInfo) (*walletdb.Account, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	key, err := crypto.NewAccountKeyFromRootEntropy(entropy, fog)
	if err != nil {
		return nil, err
	}
	params, err := s.importParams(name, entropy, crypto.KeyDerivationV1, firstBlockIndex, nextSubaddressIndex)
	if err != nil {
		return nil, err
	}
	return s.insertAccount(key, params)
}

// ImportViewOnlyAccount imports an account from its view private key and
// root spend public key. Spend signing is deferred to an external signer
// through the view-only sync protocol.
func (s *Service) ImportViewOnlyAccount(viewPrivateKey []byte, spendPublicKey types.Key, name string, firstBlockIndex *uint64, nextSubaddressIndex *uint64) (*walletdb.Account, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	key, err := crypto.NewViewAccountKey(viewPrivateKey, spendPublicKey, nil)
	if err != nil {
		return nil, err
	}
	params, err := s.importParams(name, nil, crypto.KeyDerivationV2, firstBlockIndex, nextSubaddressIndex)
	if err != nil {
		return nil, err
	}
	params.viewOnly = true
	return s.insertAccount(key, params)
}

func (s *Service) importParams(name string, entropy []byte, version int, firstBlockIndex, nextSubaddressIndex *uint64) (*newAccountParams, error) {
	localHeight, err := s.ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	var importBlock *uint64
	if localHeight > 0 {
		ib := localHeight - 1
		importBlock = &ib
	}
	first := uint64(0)
	if firstBlockIndex != nil {
		first = *firstBlockIndex
	}
	next := uint64(defaultNextSubaddressIndex)
	if nextSubaddressIndex != nil && *nextSubaddressIndex > next {
		next = *nextSubaddressIndex
	}
	return &newAccountParams{
		name:                name,
		entropy:             entropy,
		derivationVersion:   version,
		firstBlockIndex:     first,
		importBlockIndex:    importBlock,
		nextSubaddressIndex: next,
	}, nil
}

type newAccountParams struct {
	name                string
	entropy             []byte
	derivationVersion   int
	firstBlockIndex     uint64
	importBlockIndex    *uint64
	nextSubaddressIndex uint64
	viewOnly            bool
}

func (s *Service) insertAccount(key *crypto.AccountKey, p *newAccountParams) (*walletdb.Account, error) {
	accountID := key.AccountID().Hex()
	fogEnabled := key.FogReportURL() != ""

	mainIndex := crypto.DefaultSubaddressIndex
	changeIndex := crypto.ChangeSubaddressIndex
	nextIndex := p.nextSubaddressIndex
	if fogEnabled {
		// Fog accounts cannot use additional subaddresses; change is
		// returned to the main subaddress.
		changeIndex = mainIndex
		nextIndex = mainIndex + 1
	}

	row := &walletdb.Account{
		ID:                    accountID,
		ViewPrivateKey:        key.ViewPrivateBytes(),
		SpendPublicKey:        key.SpendPublic().Bytes(),
		Entropy:               p.entropy,
		KeyDerivationVersion:  p.derivationVersion,
		MainSubaddressIndex:   mainIndex,
		ChangeSubaddressIndex: changeIndex,
		NextSubaddressIndex:   nextIndex,
		FirstBlockIndex:       p.firstBlockIndex,
		NextBlockIndex:        p.firstBlockIndex,
		ImportBlockIndex:      p.importBlockIndex,
		Name:                  p.name,
		FogReportURL:          key.FogReportURL(),
		FogEnabled:            fogEnabled,
		ViewOnly:              p.viewOnly,
	}
	if !p.viewOnly {
		spendPriv, err := key.SpendPrivateBytes()
		if err != nil {
			return nil, err
		}
		row.SpendPrivateKey = spendPriv
	}

	err := s.db.Transaction(func(t *walletdb.Txn) error {
		if err := t.CreateAccount(row); err != nil {
			return err
		}
		for index := uint64(0); index < nextIndex; index++ {
			if err := s.createSubaddressRow(t, key, accountID, index, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Created account", "account", accountID, "firstBlock", p.firstBlockIndex, "viewOnly", p.viewOnly, "fog", fogEnabled)
	return row, nil
}

func (s *Service) createSubaddressRow(t *walletdb.Txn, key *crypto.AccountKey, accountID string, index uint64, comment string) error {
	addrB58, err := b58.EncodePublicAddress(key.Subaddress(index))
	if err != nil {
		return err
	}
	spendPub := key.SubaddressSpendPublic(index)
	return t.CreateSubaddress(&walletdb.AssignedSubaddress{
		PublicAddressB58: addrB58,
		AccountID:        accountID,
		SubaddressIndex:  index,
		Comment:          comment,
		SpendPublicKey:   spendPub.Bytes(),
	})
}

// GetAccount fetches an account by id.
func (s *Service) GetAccount(accountID string) (*walletdb.Account, error) {
	var account *walletdb.Account
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		account, err = t.GetAccount(accountID)
		return err
	})
	return account, err
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts() ([]*walletdb.Account, error) {
	var accounts []*walletdb.Account
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		accounts, err = t.ListAccounts()
		return err
	})
	return accounts, err
}

// UpdateAccountName renames an account.
func (s *Service) UpdateAccountName(accountID, name string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Transaction(func(t *walletdb.Txn) error {
		return t.UpdateAccountName(accountID, name)
	})
}

// UpdateRequireSpendSubaddress toggles the spend-subaddress policy.
func (s *Service) UpdateRequireSpendSubaddress(accountID string, require bool) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Transaction(func(t *walletdb.Txn) error {
		return t.UpdateRequireSpendSubaddress(accountID, require)
	})
}

// GetNextSubaddressIndexForAccount returns the next unassigned subaddress
// index.
func (s *Service) GetNextSubaddressIndexForAccount(accountID string) (uint64, error) {
	account, err := s.GetAccount(accountID)
	if err != nil {
		return 0, err
	}
	return account.NextSubaddressIndex, nil
}

// AssignNextSubaddress allocates the next subaddress of an account and
// rewinds the scan cursor to the account's first block, so txos received
// at the new index in already-scanned history are picked up on rescan.
// Fails for fog-enabled accounts, whose subaddress set is fixed.
func (s *Service) AssignNextSubaddress(accountID, comment string) (*walletdb.AssignedSubaddress, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var assigned *walletdb.AssignedSubaddress
	err := s.db.Transaction(func(t *walletdb.Txn) error {
		account, err := t.GetAccount(accountID)
		if err != nil {
			return err
		}
		if account.FogEnabled {
			return walletdb.ErrSubaddressesNotSupportedForFog
		}
		key, err := s.accountKey(account)
		if err != nil {
			return err
		}
		index := account.NextSubaddressIndex
		if err := s.createSubaddressRow(t, key, accountID, index, comment); err != nil {
			return err
		}
		if err := t.UpdateNextSubaddressIndex(accountID, index+1); err != nil {
			return err
		}
		if err := t.UpdateNextBlockIndex(accountID, account.FirstBlockIndex); err != nil {
			return err
		}
		assigned, err = t.GetSubaddressByIndex(accountID, index)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.flagResync()
	s.log.Info("Assigned subaddress", "account", accountID, "index", assigned.SubaddressIndex)
	return assigned, nil
}

// ResyncAccount rewinds an account's scan cursor to its first block.
func (s *Service) ResyncAccount(accountID string) error {
	err := s.db.Transaction(func(t *walletdb.Txn) error {
		account, err := t.GetAccount(accountID)
		if err != nil {
			return err
		}
		return t.UpdateNextBlockIndex(accountID, account.FirstBlockIndex)
	})
	if err != nil {
		return err
	}
	s.flagResync()
	return nil
}

// flagResync raises the process-wide gate if any account now scans below
// the local tip. The sync worker clears it once every account catches up.
func (s *Service) flagResync() {
	tip, err := s.ledger.NumBlocks()
	if err != nil || tip == 0 {
		return
	}
	accounts, err := s.ListAccounts()
	if err != nil {
		return
	}
	for _, a := range accounts {
		if a.NextBlockIndex < tip {
			s.resync.Store(true)
			return
		}
	}
}

// RemoveAccount deletes an account and everything scoped to it: logs with
// their join rows, assigned subaddresses, ownership of its txos, and
// finally any txo left referenced by nothing.
func (s *Service) RemoveAccount(accountID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	err := s.db.Transaction(func(t *walletdb.Txn) error {
		if _, err := t.GetAccount(accountID); err != nil {
			return err
		}
		if err := t.DeleteTransactionLogsForAccount(accountID); err != nil {
			return err
		}
		if err := t.DeleteSubaddressesForAccount(accountID); err != nil {
			return err
		}
		if err := t.ScrubTxosForAccount(accountID); err != nil {
			return err
		}
		if err := t.DeleteAccount(accountID); err != nil {
			return err
		}
		return t.DeleteUnreferencedTxos()
	})
	if err != nil {
		return err
	}
	s.keyCache.Remove(accountID)
	s.log.Info("Removed account", "account", accountID)
	return nil
}

// ExportAccountSecrets exports an account's key material. Import of the
// result reproduces the same account id and keys.
func (s *Service) ExportAccountSecrets(accountID string) (*AccountSecrets, error) {
	account, err := s.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	secrets := &AccountSecrets{
		AccountID:            account.ID,
		Name:                 account.Name,
		KeyDerivationVersion: account.KeyDerivationVersion,
		ViewPrivateKey:       account.ViewPrivateKey,
		SpendPrivateKey:      account.SpendPrivateKey,
	}
	switch account.KeyDerivationVersion {
	case crypto.KeyDerivationV1:
		secrets.RootEntropy = account.Entropy
	case crypto.KeyDerivationV2:
		secrets.Mnemonic = string(account.Entropy)
	default:
		return nil, fmt.Errorf("%w: %d", crypto.ErrUnknownKeyDerivationVersion, account.KeyDerivationVersion)
	}
	return secrets, nil
}

// GetAddressForAccount returns the b58 address at a subaddress index,
// which must already be assigned.
func (s *Service) GetAddressForAccount(accountID string, index uint64) (*walletdb.AssignedSubaddress, error) {
	var sub *walletdb.AssignedSubaddress
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		sub, err = t.GetSubaddressByIndex(accountID, index)
		return err
	})
	return sub, err
}

// ListAddressesForAccount returns all assigned subaddresses of an account.
func (s *Service) ListAddressesForAccount(accountID string) ([]*walletdb.AssignedSubaddress, error) {
	var subs []*walletdb.AssignedSubaddress
	err := s.db.View(func(t *walletdb.Txn) error {
		var err error
		subs, err = t.ListSubaddresses(accountID)
		return err
	})
	return subs, err
}

// VerifyAddress checks that a string parses as a valid b58 public address.
func (s *Service) VerifyAddress(address string) bool {
	_, err := b58.DecodePublicAddress(address)
	return err == nil
}
