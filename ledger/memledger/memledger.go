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

// Package memledger is an in-memory ledger.Ledger used by tests and by the
// wallet's offline mode.
package memledger

import (
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/ledger"
)

// Ledger is an append-only in-memory block store. It implements both
// ledger.Ledger and ledger.HeightReporter (the network height is simply the
// local height).
type Ledger struct {
	mu        sync.RWMutex
	blocks    []*types.BlockContents
	txOuts    []*types.TxOut
	outIndex  map[types.Key]uint64
	keyImages map[types.KeyImage]uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		outIndex:  make(map[types.Key]uint64),
		keyImages: make(map[types.KeyImage]uint64),
	}
}

// AppendBlock appends a block with the given contents and returns its
// index.
func (l *Ledger) AppendBlock(contents *types.BlockContents) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	index := uint64(len(l.blocks))
	l.blocks = append(l.blocks, contents)
	for _, out := range contents.TxOuts {
		l.outIndex[out.PublicKey] = uint64(len(l.txOuts))
		l.txOuts = append(l.txOuts, out)
	}
	for _, ki := range contents.KeyImages {
		if _, ok := l.keyImages[ki]; !ok {
			l.keyImages[ki] = index
		}
	}
	return index
}

// AppendEmptyBlocks appends n blocks with no contents, advancing the tip.
func (l *Ledger) AppendEmptyBlocks(n int) {
	for i := 0; i < n; i++ {
		l.AppendBlock(&types.BlockContents{})
	}
}

// NumBlocks implements ledger.Ledger.
func (l *Ledger) NumBlocks() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.blocks)), nil
}

// NetworkBlockHeight implements ledger.HeightReporter.
func (l *Ledger) NetworkBlockHeight() (uint64, error) {
	return l.NumBlocks()
}

// GetBlockContents implements ledger.Ledger.
func (l *Ledger) GetBlockContents(index uint64) (*types.BlockContents, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.blocks)) {
		return nil, ledger.ErrBlockNotFound
	}
	return l.blocks[index], nil
}

// GetTxOutIndexByPublicKey implements ledger.Ledger.
func (l *Ledger) GetTxOutIndexByPublicKey(publicKey types.Key) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	index, ok := l.outIndex[publicKey]
	if !ok {
		return 0, ledger.ErrTxOutNotFound
	}
	return index, nil
}

// GetTxOutByIndex implements ledger.Ledger.
func (l *Ledger) GetTxOutByIndex(index uint64) (*types.TxOut, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.txOuts)) {
		return nil, ledger.ErrTxOutNotFound
	}
	return l.txOuts[index], nil
}

// NumTxOuts implements ledger.Ledger.
func (l *Ledger) NumTxOuts() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.txOuts)), nil
}

// GetTxOutProofOfMemberships implements ledger.Ledger. The in-memory
// ledger has no Merkle tree; proofs commit to the output bytes so they are
// stable across calls.
func (l *Ledger) GetTxOutProofOfMemberships(indices []uint64) ([]types.TxOutMembershipProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	proofs := make([]types.TxOutMembershipProof, 0, len(indices))
	highest := uint64(len(l.txOuts))
	if highest > 0 {
		highest--
	}
	for _, index := range indices {
		if index >= uint64(len(l.txOuts)) {
			return nil, ledger.ErrTxOutNotFound
		}
		b, err := l.txOuts[index].Serialize()
		if err != nil {
			return nil, err
		}
		sum := blake2b.Sum256(b)
		proofs = append(proofs, types.TxOutMembershipProof{
			Index:        index,
			HighestIndex: highest,
			Elements:     sum[:],
		})
	}
	return proofs, nil
}

// CheckKeyImage implements ledger.Ledger.
func (l *Ledger) CheckKeyImage(keyImage types.KeyImage) (*uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	index, ok := l.keyImages[keyImage]
	if !ok {
		return nil, nil
	}
	return &index, nil
}
