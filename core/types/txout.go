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

package types

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// TxOut is a single transaction output as it appears on the ledger. The
// amount and memo are only readable by the holder of the matching view key.
type TxOut struct {
	TargetKey     Key
	PublicKey     Key
	MaskedValue   uint64
	MaskedTokenID uint64
	Commitment    [32]byte
	EFogHint      []byte
	EMemo         []byte
}

// Serialize returns the canonical RLP encoding of the TxOut. This is the
// byte string digested into the TxoID and stored alongside the row.
func (t *TxOut) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// DeserializeTxOut decodes a TxOut from its canonical encoding.
func DeserializeTxOut(b []byte) (*TxOut, error) {
	out := new(TxOut)
	if err := rlp.DecodeBytes(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ID computes the content-addressed identity of the TxOut.
func (t *TxOut) ID() TxoID {
	b, err := t.Serialize()
	if err != nil {
		// A TxOut is a fixed shape of byte strings and integers; its RLP
		// encoding cannot fail.
		panic(err)
	}
	return TxoID(digest32("txo_data", b))
}

// IDForAddress computes the content-addressed identity of an account from
// its default public subaddress.
func IDForAddress(addr *PublicAddress) AccountID {
	b, err := rlp.EncodeToBytes(addr)
	if err != nil {
		panic(err)
	}
	return AccountID(digest32("account_data", b))
}

// BlockContents is what the wallet reads out of one ledger block: the
// outputs minted in the block and the key images consumed by it.
type BlockContents struct {
	TxOuts    []*TxOut
	KeyImages []KeyImage
}

// TxOutMembershipProof proves that a TxOut is included in the ledger's
// Merkle tree at a given index. The wallet treats the proof as opaque; it
// is fetched from the ledger and attached to ring members when building.
type TxOutMembershipProof struct {
	Index        uint64
	HighestIndex uint64
	Elements     []byte
}
