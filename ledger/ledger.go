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

// Package ledger defines the wallet's view of the blockchain: an append-only
// sequence of blocks it reads but never validates. Consensus, ordering and
// signature checks belong to whatever implementation sits behind the
// interface.
package ledger

import (
	"errors"

	"github.com/mobilecoinofficial/full-service/core/types"
)

var (
	// ErrBlockNotFound is returned for a block index past the tip.
	ErrBlockNotFound = errors.New("ledger: block not found")
	// ErrTxOutNotFound is returned when no output matches the queried
	// public key or index.
	ErrTxOutNotFound = errors.New("ledger: tx out not found")
)

// Ledger is the read interface onto the local copy of the blockchain.
type Ledger interface {
	// NumBlocks returns the number of blocks in the local ledger.
	NumBlocks() (uint64, error)

	// GetBlockContents returns the outputs minted and key images consumed
	// by the block at the given index.
	GetBlockContents(index uint64) (*types.BlockContents, error)

	// GetTxOutIndexByPublicKey resolves an output's global flat index
	// from its public key.
	GetTxOutIndexByPublicKey(publicKey types.Key) (uint64, error)

	// GetTxOutByIndex returns the output at a global flat index.
	GetTxOutByIndex(index uint64) (*types.TxOut, error)

	// NumTxOuts returns the total number of outputs in the ledger.
	NumTxOuts() (uint64, error)

	// GetTxOutProofOfMemberships returns Merkle membership proofs for the
	// outputs at the given global indices.
	GetTxOutProofOfMemberships(indices []uint64) ([]types.TxOutMembershipProof, error)

	// CheckKeyImage reports the block index a key image appeared in, or
	// nil if it has not been spent.
	CheckKeyImage(keyImage types.KeyImage) (*uint64, error)
}

// NetworkStatus describes the ledger heights the wallet reports to its
// clients: the locally synced height and the consensus network's height.
type NetworkStatus struct {
	LocalBlockHeight   uint64
	NetworkBlockHeight uint64
}

// HeightReporter supplies the consensus network's block height. The local
// ledger may lag it while syncing.
type HeightReporter interface {
	NetworkBlockHeight() (uint64, error)
}
