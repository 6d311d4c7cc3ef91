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

// Package wallet implements the wallet service: account management, block
// scanning, transaction construction and the reconciliation of submitted
// transactions against the ledger.
package wallet

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/ledger"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// accountKeyCacheSize bounds the decoded-key cache. Keys are re-read on
// every scanned block, and decoding scalars off the hot path is wasted
// work.
const accountKeyCacheSize = 128

// Submitter hands a signed transaction to the consensus network.
type Submitter interface {
	SubmitTx(ctx context.Context, tx *types.Tx) error
}

// SyncedBlockEvent is published after an account finishes scanning a
// block.
type SyncedBlockEvent struct {
	AccountID  string
	BlockIndex uint64
}

// Service ties the store, the ledger and the crypto primitives together.
// All request handlers and the sync worker share one Service.
type Service struct {
	db        *walletdb.DB
	ledger    ledger.Ledger
	heights   ledger.HeightReporter
	submitter Submitter

	keyCache *lru.Cache
	resync   atomic.Bool
	syncFeed event.Feed
	log      log.Logger
}

// NewService builds a Service. heights may be nil for offline operation,
// in which case the local ledger height stands in for the network's.
func NewService(db *walletdb.DB, ldg ledger.Ledger, heights ledger.HeightReporter, submitter Submitter) *Service {
	cache, _ := lru.New(accountKeyCacheSize)
	return &Service{
		db:        db,
		ledger:    ldg,
		heights:   heights,
		submitter: submitter,
		keyCache:  cache,
		log:       log.New("module", "wallet"),
	}
}

// DB exposes the underlying store, mainly for tests.
func (s *Service) DB() *walletdb.DB { return s.db }

// Ledger exposes the ledger connector.
func (s *Service) Ledger() ledger.Ledger { return s.ledger }

// SubscribeSync delivers a SyncedBlockEvent per scanned block.
func (s *Service) SubscribeSync(ch chan<- SyncedBlockEvent) event.Subscription {
	return s.syncFeed.Subscribe(ch)
}

// ResyncInProgress reports whether a rewound account is still catching up
// to the local tip. While set, the operations that call guard (account
// creation, import, update and removal, subaddress assignment, transaction
// build and submit, view-only key image sync) are refused; queries and
// ResyncAccount are not.
func (s *Service) ResyncInProgress() bool { return s.resync.Load() }

// guard refuses API work during a resync.
func (s *Service) guard() error {
	if s.resync.Load() {
		return ErrResyncInProgress
	}
	return nil
}

func (s *Service) networkBlockHeight() (uint64, error) {
	if s.heights != nil {
		return s.heights.NetworkBlockHeight()
	}
	return s.ledger.NumBlocks()
}

// NetworkStatus reports the local and network ledger heights.
func (s *Service) NetworkStatus() (*ledger.NetworkStatus, error) {
	local, err := s.ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	network, err := s.networkBlockHeight()
	if err != nil {
		return nil, err
	}
	return &ledger.NetworkStatus{LocalBlockHeight: local, NetworkBlockHeight: network}, nil
}

// accountKey reconstructs (and caches) the crypto key material of an
// account row.
func (s *Service) accountKey(a *walletdb.Account) (*crypto.AccountKey, error) {
	if cached, ok := s.keyCache.Get(a.ID); ok {
		return cached.(*crypto.AccountKey), nil
	}
	var fog *crypto.FogInfo
	if a.FogEnabled {
		fog = &crypto.FogInfo{ReportURL: a.FogReportURL}
	}
	var (
		key *crypto.AccountKey
		err error
	)
	if a.ViewOnly {
		spendPub, kerr := types.KeyFromBytes(a.SpendPublicKey)
		if kerr != nil {
			return nil, kerr
		}
		key, err = crypto.NewViewAccountKey(a.ViewPrivateKey, spendPub, fog)
	} else {
		key, err = crypto.NewAccountKeyFromPrivates(a.ViewPrivateKey, a.SpendPrivateKey, fog)
	}
	if err != nil {
		return nil, err
	}
	s.keyCache.Add(a.ID, key)
	return key, nil
}
