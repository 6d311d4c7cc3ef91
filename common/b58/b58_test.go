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

package b58

import (
	"testing"

	"github.com/mobilecoinofficial/full-service/core/types"
)

func testAddress() *types.PublicAddress {
	addr := &types.PublicAddress{}
	for i := range addr.ViewPublicKey {
		addr.ViewPublicKey[i] = byte(i)
		addr.SpendPublicKey[i] = byte(i * 2)
	}
	return addr
}

func TestPublicAddressRoundTrip(t *testing.T) {
	addr := testAddress()
	encoded, err := EncodePublicAddress(addr)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodePublicAddress(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.ViewPublicKey != addr.ViewPublicKey || decoded.SpendPublicKey != addr.SpendPublicKey {
		t.Error("keys do not round-trip")
	}
}

func TestFogAddressRoundTrip(t *testing.T) {
	addr := testAddress()
	addr.FogReportURL = "fog://fog.example.com"
	addr.FogReportID = "1"
	addr.FogAuthoritySig = []byte{1, 2, 3}

	encoded, err := EncodePublicAddress(addr)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodePublicAddress(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.FogReportURL != addr.FogReportURL {
		t.Errorf("fog url = %q, want %q", decoded.FogReportURL, addr.FogReportURL)
	}
	if !decoded.IsFog() {
		t.Error("decoded address should be fog enabled")
	}
}

func TestChecksumCorruption(t *testing.T) {
	encoded, err := EncodePublicAddress(testAddress())
	if err != nil {
		t.Fatal(err)
	}
	// Flip one character; any change must fail the checksum (or at worst
	// the base58 alphabet).
	corrupted := []byte(encoded)
	if corrupted[4] == 'a' {
		corrupted[4] = 'b'
	} else {
		corrupted[4] = 'a'
	}
	if _, err := DecodePublicAddress(string(corrupted)); err == nil {
		t.Error("corrupted address decoded successfully")
	}
	if _, err := DecodePublicAddress("tooshort"); err == nil {
		t.Error("short input decoded successfully")
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	receipt := &types.ReceiverReceipt{
		TombstoneBlock: 77,
		MaskedValue:    123456,
	}
	for i := range receipt.PublicKey {
		receipt.PublicKey[i] = byte(i + 1)
		receipt.Confirmation[i] = byte(i + 2)
	}
	encoded, err := EncodeReceipt(receipt)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeReceipt(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PublicKey != receipt.PublicKey || decoded.Confirmation != receipt.Confirmation {
		t.Error("receipt keys do not round-trip")
	}
	if decoded.TombstoneBlock != 77 || decoded.MaskedValue != 123456 {
		t.Error("receipt fields do not round-trip")
	}
}

func TestPayloadTypeMismatch(t *testing.T) {
	encoded, err := EncodePublicAddress(testAddress())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeReceipt(encoded); err != ErrPayloadType {
		t.Errorf("got %v, want ErrPayloadType decoding an address as a receipt", err)
	}
}
