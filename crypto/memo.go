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

package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// Memo type codes, carried in the first two bytes of the plaintext.
const (
	MemoTypeUnused              uint16 = 0x0000
	MemoTypeAuthenticatedSender uint16 = 0x0100
)

// memoSize is the fixed plaintext width: 2 type bytes plus 64 data bytes.
const memoSize = 66

// Memo is the decrypted 66-byte memo of an output.
type Memo struct {
	Type uint16
	Data [64]byte
}

// encrypt XORs the memo plaintext with a keystream bound to the output's
// shared secret.
func (m *Memo) encrypt(shared *edwards25519.Point) []byte {
	plain := make([]byte, memoSize)
	binary.BigEndian.PutUint16(plain[:2], m.Type)
	copy(plain[2:], m.Data[:])
	stream := memoKeystream(shared)
	for i := range plain {
		plain[i] ^= stream[i]
	}
	return plain
}

func decryptMemo(eMemo []byte, shared *edwards25519.Point) (*Memo, error) {
	if len(eMemo) != memoSize {
		return nil, fmt.Errorf("crypto: memo must be %d bytes, got %d", memoSize, len(eMemo))
	}
	stream := memoKeystream(shared)
	plain := make([]byte, memoSize)
	for i := range eMemo {
		plain[i] = eMemo[i] ^ stream[i]
	}
	m := &Memo{Type: binary.BigEndian.Uint16(plain[:2])}
	copy(m.Data[:], plain[2:])
	return m, nil
}

func memoKeystream(shared *edwards25519.Point) []byte {
	xof, _ := blake2b.NewXOF(memoSize, shared.Bytes())
	xof.Write([]byte("mc_memo"))
	stream := make([]byte, memoSize)
	xof.Read(stream)
	return stream
}

// AddressHash is the truncated digest of a public address carried inside
// authenticated sender memos.
type AddressHash [16]byte

// Hex returns the hex encoding of the address hash.
func (h AddressHash) Hex() string { return fmt.Sprintf("%x", h[:]) }

// HashAddress computes the short hash of a public address.
func HashAddress(addr *types.PublicAddress) AddressHash {
	b, err := rlp.EncodeToBytes(addr)
	if err != nil {
		panic(err)
	}
	sum, _ := blake2b.New256([]byte("mc_address_hash"))
	sum.Write(b)
	var out AddressHash
	copy(out[:], sum.Sum(nil))
	return out
}

// NewAuthenticatedSenderMemo builds a memo identifying the sender address,
// authenticated under the output's shared secret so only the counterparties
// can verify it.
func NewAuthenticatedSenderMemo(sender *types.PublicAddress, sharedSecret types.Key, txPublic types.Key) *Memo {
	hash := HashAddress(sender)
	m := &Memo{Type: MemoTypeAuthenticatedSender}
	copy(m.Data[:16], hash[:])
	mac := memoMAC(hash, sharedSecret, txPublic)
	copy(m.Data[16:32], mac[:])
	return m
}

// SenderAddressHash extracts the claimed sender hash from an authenticated
// sender memo.
func (m *Memo) SenderAddressHash() (AddressHash, error) {
	if m.Type != MemoTypeAuthenticatedSender {
		return AddressHash{}, fmt.Errorf("crypto: memo type %#04x carries no sender", m.Type)
	}
	var h AddressHash
	copy(h[:], m.Data[:16])
	return h, nil
}

// ValidateAuthenticatedSender checks the memo's MAC for the claimed sender.
func (m *Memo) ValidateAuthenticatedSender(sender *types.PublicAddress, sharedSecret types.Key, txPublic types.Key) bool {
	if m.Type != MemoTypeAuthenticatedSender {
		return false
	}
	hash := HashAddress(sender)
	if subtle.ConstantTimeCompare(hash[:], m.Data[:16]) != 1 {
		return false
	}
	mac := memoMAC(hash, sharedSecret, txPublic)
	return subtle.ConstantTimeCompare(mac[:], m.Data[16:32]) == 1
}

func memoMAC(hash AddressHash, sharedSecret types.Key, txPublic types.Key) [16]byte {
	h, _ := blake2b.New256(sharedSecret[:])
	h.Write([]byte("mc_memo_mac"))
	h.Write(hash[:])
	h.Write(txPublic[:])
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}
