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

// Package b58 implements the checksummed base58 wire format used to pass
// public addresses and receiver receipts between wallets.
package b58

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// Payload type tags. The tag is the first byte of the checksummed payload
// so a decoder can reject a receipt where an address is expected.
const (
	payloadPublicAddress byte = 0x01
	payloadReceipt       byte = 0x02
)

var (
	// ErrChecksum is returned when the trailing checksum does not match
	// the payload.
	ErrChecksum = errors.New("b58: invalid checksum")
	// ErrPayloadType is returned when the payload carries an unexpected
	// type tag.
	ErrPayloadType = errors.New("b58: unexpected payload type")
)

func checksum(data []byte) []byte {
	h, _ := blake2b.New256([]byte("b58_checksum"))
	h.Write(data)
	return h.Sum(nil)[:4]
}

func encode(tag byte, body []byte) string {
	payload := make([]byte, 0, len(body)+5)
	payload = append(payload, tag)
	payload = append(payload, body...)
	payload = append(payload, checksum(payload)...)
	return base58.Encode(payload)
}

func decode(tag byte, s string) ([]byte, error) {
	payload := base58.Decode(s)
	if len(payload) < 5 {
		return nil, ErrChecksum
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, ErrChecksum
	}
	if body[0] != tag {
		return nil, ErrPayloadType
	}
	return body[1:], nil
}

// EncodePublicAddress renders a public address in b58 wire format.
func EncodePublicAddress(addr *types.PublicAddress) (string, error) {
	body, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return "", err
	}
	return encode(payloadPublicAddress, body), nil
}

// DecodePublicAddress parses a b58 wire format public address.
func DecodePublicAddress(s string) (*types.PublicAddress, error) {
	body, err := decode(payloadPublicAddress, s)
	if err != nil {
		return nil, err
	}
	addr := new(types.PublicAddress)
	if err := rlp.DecodeBytes(body, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

// EncodeReceipt renders a receiver receipt in b58 wire format.
func EncodeReceipt(r *types.ReceiverReceipt) (string, error) {
	body, err := rlp.EncodeToBytes(r)
	if err != nil {
		return "", err
	}
	return encode(payloadReceipt, body), nil
}

// DecodeReceipt parses a b58 wire format receiver receipt.
func DecodeReceipt(s string) (*types.ReceiverReceipt, error) {
	body, err := decode(payloadReceipt, s)
	if err != nil {
		return nil, err
	}
	r := new(types.ReceiverReceipt)
	if err := rlp.DecodeBytes(body, r); err != nil {
		return nil, err
	}
	return r, nil
}
