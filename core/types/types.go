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

// Package types contains the wallet's primitive data types: content-addressed
// identifiers, amounts, keys, ledger entities and transaction structures.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

// TokenID identifies a token on the ledger. Token 0 is MOB.
type TokenID uint64

// MOB is the native token of the ledger.
const MOB TokenID = 0

// PicoMOB is the smallest representable unit of MOB.
// One MOB is 10^12 picoMOB.
const PicoMOB uint64 = 1

// Amount is a quantity of a particular token.
type Amount struct {
	Value   uint64  `json:"value"`
	TokenID TokenID `json:"token_id"`
}

// Key is a 32-byte compressed curve point. Target keys, transaction public
// keys and subaddress keys are all carried in this form.
type Key [32]byte

// Bytes returns the key as a byte slice.
func (k Key) Bytes() []byte { return k[:] }

// Hex returns the hex encoding of the key.
func (k Key) Hex() string { return hex.EncodeToString(k[:]) }

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return hexutil.Bytes(k[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(input); err != nil {
		return err
	}
	if len(b) != len(k) {
		return fmt.Errorf("invalid key length %d", len(b))
	}
	copy(k[:], b)
	return nil
}

// KeyFromBytes converts a byte slice into a Key.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != len(k) {
		return k, fmt.Errorf("invalid key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyImage is the spend fingerprint of a TxOut. Its appearance in a block
// marks the corresponding output as spent.
type KeyImage [32]byte

// Bytes returns the key image as a byte slice.
func (ki KeyImage) Bytes() []byte { return ki[:] }

// Hex returns the hex encoding of the key image.
func (ki KeyImage) Hex() string { return hex.EncodeToString(ki[:]) }

// KeyImageFromBytes converts a byte slice into a KeyImage.
func KeyImageFromBytes(b []byte) (KeyImage, error) {
	var ki KeyImage
	if len(b) != len(ki) {
		return ki, fmt.Errorf("invalid key image length %d", len(b))
	}
	copy(ki[:], b)
	return ki, nil
}

// digest32 hashes data under a domain-separation tag to a 32-byte id.
func digest32(tag string, data []byte) [32]byte {
	h, _ := blake2b.New256([]byte(tag))
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// AccountID is the content-addressed identity of an account, derived from
// its default public subaddress.
type AccountID [32]byte

// Hex returns the hex encoding of the account id.
func (id AccountID) Hex() string { return hex.EncodeToString(id[:]) }

func (id AccountID) String() string { return id.Hex() }

// AccountIDFromHex parses a hex-encoded account id.
func AccountIDFromHex(s string) (AccountID, error) {
	var id AccountID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid account id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// TxoID is the content-addressed identity of a TxOut, derived from the
// on-chain payload. A TxOut minted locally and the same TxOut scanned from
// the ledger digest to the same id; the collision is the join key that lets
// the scanner update minted rows in place.
type TxoID [32]byte

// Hex returns the hex encoding of the txo id.
func (id TxoID) Hex() string { return hex.EncodeToString(id[:]) }

func (id TxoID) String() string { return id.Hex() }

// TxoIDFromHex parses a hex-encoded txo id.
func TxoIDFromHex(s string) (TxoID, error) {
	var id TxoID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid txo id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// TransactionLogID is the content-addressed identity of a transaction log,
// derived from the serialized transaction.
type TransactionLogID [32]byte

// Hex returns the hex encoding of the transaction log id.
func (id TransactionLogID) Hex() string { return hex.EncodeToString(id[:]) }

func (id TransactionLogID) String() string { return id.Hex() }

// TransactionLogIDFromHex parses a hex-encoded transaction log id.
func TransactionLogIDFromHex(s string) (TransactionLogID, error) {
	var id TransactionLogID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid transaction log id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// PublicAddress is a single receiving identity of an account: the public
// view and spend keys of one subaddress, plus the fog routing hints for
// accounts enrolled with a fog operator.
type PublicAddress struct {
	ViewPublicKey   Key
	SpendPublicKey  Key
	FogReportURL    string
	FogReportID     string
	FogAuthoritySig []byte
}

// IsFog reports whether the address routes incoming mail through a fog
// operator.
func (a *PublicAddress) IsFog() bool { return a.FogReportURL != "" }
