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
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

// maxConcurrentAccountScans bounds the per-tick fan-out. Accounts scan
// independently; blocks within one account stay strictly ordered.
const maxConcurrentAccountScans = 4

var (
	blocksScannedMeter = metrics.NewRegisteredMeter("wallet/sync/blocks", nil)
	txosReceivedMeter  = metrics.NewRegisteredMeter("wallet/sync/txos/received", nil)
	spendsMeter        = metrics.NewRegisteredMeter("wallet/sync/txos/spent", nil)
)

// SyncWorker owns the scanning loop. One worker runs per wallet process;
// request handlers never scan.
type SyncWorker struct {
	service  *Service
	interval time.Duration
	log      log.Logger

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewSyncWorker builds a worker polling the ledger at the given interval.
func NewSyncWorker(service *Service, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		service:  service,
		interval: interval,
		log:      log.New("module", "sync"),
		quit:     make(chan struct{}),
	}
}

// Start launches the scanning loop.
func (w *SyncWorker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels the loop. The worker is cooperatively cancellable between
// blocks; an in-flight block finishes its transaction first.
func (w *SyncWorker) Stop() {
	close(w.quit)
	w.wg.Wait()
}

func (w *SyncWorker) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.Tick()
		select {
		case <-w.quit:
			return
		case <-ticker.C:
		}
	}
}

// Tick scans every account up to the current local tip. Exported so tests
// and the offline CLI can drive the worker synchronously.
func (w *SyncWorker) Tick() {
	tip, err := w.service.ledger.NumBlocks()
	if err != nil {
		w.log.Error("Failed to read ledger height", "err", err)
		return
	}
	accounts, err := w.service.ListAccounts()
	if err != nil {
		w.log.Error("Failed to list accounts", "err", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentAccountScans)
	for _, account := range accounts {
		accountID := account.ID
		g.Go(func() error {
			w.syncAccount(accountID, tip)
			return nil
		})
	}
	g.Wait()

	w.maybeClearResync(tip)
}

// maybeClearResync drops the process-wide gate once every account has
// caught up to the tip observed this tick.
func (w *SyncWorker) maybeClearResync(tip uint64) {
	if !w.service.resync.Load() {
		return
	}
	accounts, err := w.service.ListAccounts()
	if err != nil {
		return
	}
	for _, a := range accounts {
		if a.NextBlockIndex < tip {
			return
		}
	}
	w.service.resync.Store(false)
	w.log.Info("Resync complete", "tip", tip)
}

// syncAccount processes blocks strictly in index order. A scan error
// leaves next_block_index untouched so the next tick retries the same
// block.
func (w *SyncWorker) syncAccount(accountID string, tip uint64) {
	for {
		select {
		case <-w.quit:
			return
		default:
		}
		scanned, index, err := w.service.scanNextBlock(accountID, tip)
		if err != nil {
			w.log.Error("Account sync halted", "account", accountID, "block", index, "err", err)
			return
		}
		if !scanned {
			return
		}
		blocksScannedMeter.Mark(1)
		w.service.syncFeed.Send(SyncedBlockEvent{AccountID: accountID, BlockIndex: index})
	}
}

// scanNextBlock scans one block for one account inside a single store
// transaction: receive detection, then spend detection, then tombstone
// reconciliation, then the cursor advance. Returns false when the account
// has reached tip.
func (s *Service) scanNextBlock(accountID string, tip uint64) (bool, uint64, error) {
	var (
		scanned bool
		index   uint64
	)
	err := s.db.Transaction(func(t *walletdb.Txn) error {
		account, err := t.GetAccount(accountID)
		if err != nil {
			return err
		}
		index = account.NextBlockIndex
		if index >= tip {
			return nil
		}
		contents, err := s.ledger.GetBlockContents(index)
		if err != nil {
			return err
		}
		key, err := s.accountKey(account)
		if err != nil {
			return err
		}

		received, err := s.scanReceived(t, account, key, contents, index)
		if err != nil {
			return err
		}
		txosReceivedMeter.Mark(int64(received))

		spent, err := s.scanSpent(t, account, contents, index)
		if err != nil {
			return err
		}
		spendsMeter.Mark(int64(spent))

		// Tombstone expiry is best-effort within the tick; a failure here
		// must not hold the block back.
		if err := t.FailPendingExceedingTombstone(accountID, index); err != nil {
			s.log.Warn("Tombstone reconciliation failed", "account", accountID, "block", index, "err", err)
		}

		if err := t.UpdateNextBlockIndex(accountID, index+1); err != nil {
			return err
		}
		scanned = true
		return nil
	})
	return scanned, index, err
}

// scanReceived runs receive detection over a block's outputs.
func (s *Service) scanReceived(t *walletdb.Txn, account *walletdb.Account, key *crypto.AccountKey, contents *types.BlockContents, index uint64) (int, error) {
	received := 0
	for _, out := range contents.TxOuts {
		match, amount, sharedSecret, err := crypto.ViewKeyMatch(key, out)
		if err != nil {
			return received, err
		}
		if !match {
			continue
		}

		// Ours. Resolve the subaddress; an index we do not track leaves
		// the txo orphaned until the user assigns up to it.
		spendPub, err := crypto.RecoverSubaddressSpendPublic(key, out)
		if err != nil {
			return received, err
		}
		var subaddressIndex *uint64
		sub, err := t.GetSubaddressBySpendPublicKey(spendPub.Bytes())
		switch {
		case err == nil && sub.AccountID == account.ID:
			subaddressIndex = &sub.SubaddressIndex
		case err == nil:
			// Another account's subaddress decodes the same spend key;
			// treat as not ours.
			continue
		case !walletdb.IsNotFound(err):
			return received, err
		}

		var keyImage []byte
		if subaddressIndex != nil && !account.ViewOnly {
			onetime, err := crypto.RecoverOnetimePrivate(key, out, *subaddressIndex)
			if err != nil {
				return received, err
			}
			ki := crypto.KeyImageFor(onetime)
			keyImage = ki.Bytes()
		}

		serialized, err := out.Serialize()
		if err != nil {
			return received, err
		}
		var memoType *uint64
		if subaddressIndex != nil {
			decoded, err := crypto.DecodeTxOut(key, out, *subaddressIndex)
			if err == nil && decoded.Memo != nil {
				mt := uint64(decoded.Memo.Type)
				memoType = &mt
				if decoded.Memo.Type == crypto.MemoTypeAuthenticatedSender {
					hash, err := decoded.Memo.SenderAddressHash()
					if err == nil {
						if err := t.UpsertAuthenticatedSenderMemo(&walletdb.AuthenticatedSenderMemo{
							TxoID:             out.ID().Hex(),
							SenderAddressHash: hash.Hex(),
						}); err != nil {
							return received, err
						}
					}
				}
			}
		}

		blockIndex := index
		row := &walletdb.Txo{
			ID:                 out.ID().Hex(),
			AccountID:          &account.ID,
			Value:              amount.Value,
			TokenID:            amount.TokenID,
			TargetKey:          out.TargetKey.Bytes(),
			PublicKey:          out.PublicKey.Bytes(),
			EFogHint:           out.EFogHint,
			Txo:                serialized,
			SubaddressIndex:    subaddressIndex,
			KeyImage:           keyImage,
			ReceivedBlockIndex: &blockIndex,
			SharedSecret:       sharedSecret.Bytes(),
			MemoType:           memoType,
		}

		_, err = t.GetTxo(row.ID)
		switch {
		case err == nil:
			// The txo was minted by a local transaction; converge the
			// existing row with its on-chain appearance.
			if err := t.UpdateTxoAsReceived(row); err != nil {
				return received, err
			}
		case walletdb.IsNotFound(err):
			if err := t.CreateTxo(row); err != nil {
				return received, err
			}
		default:
			return received, err
		}
		received++
	}
	return received, nil
}

// scanSpent matches the block's key images against the account's unspent
// txos and finalizes the logs consuming them.
func (s *Service) scanSpent(t *walletdb.Txn, account *walletdb.Account, contents *types.BlockContents, index uint64) (int, error) {
	if len(contents.KeyImages) == 0 {
		return 0, nil
	}
	images, err := t.ListUnspentKeyImages(account.ID)
	if err != nil {
		return 0, err
	}
	spent := 0
	for _, ki := range contents.KeyImages {
		txoID, ok := images[ki]
		if !ok {
			continue
		}
		if err := t.UpdateTxoSpentBlockIndex(txoID, index); err != nil {
			return spent, err
		}
		if err := t.FinalizePendingForSpentTxo(txoID, index); err != nil {
			return spent, err
		}
		spent++
	}
	return spent, nil
}
