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

// Package crypto implements the account-key, one-time-key and ring-signature
// primitives the wallet consumes. Account keys are pairs of curve scalars;
// every receiving identity of an account is a derived subaddress.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// Key derivation scheme versions. The version is stored on the account so
// exported secrets can be re-imported byte for byte.
const (
	// KeyDerivationV1 derives account keys from 32 bytes of root entropy.
	KeyDerivationV1 = 1
	// KeyDerivationV2 derives account keys from a 24-word BIP-39 mnemonic.
	KeyDerivationV2 = 2
)

// Reserved subaddress indices.
const (
	// DefaultSubaddressIndex receives ordinary payments.
	DefaultSubaddressIndex uint64 = 0
	// ChangeSubaddressIndex receives transaction change.
	ChangeSubaddressIndex uint64 = 1
)

var (
	// ErrInvalidMnemonic is returned when a mnemonic fails BIP-39
	// validation or has the wrong word count.
	ErrInvalidMnemonic = errors.New("crypto: invalid mnemonic")
	// ErrUnknownKeyDerivationVersion is returned for a version other than
	// v1 or v2.
	ErrUnknownKeyDerivationVersion = errors.New("crypto: unknown key derivation version")
	// ErrViewOnly is returned when an operation needs the spend private
	// key of a view-only account.
	ErrViewOnly = errors.New("crypto: account is view only")
)

// hashToScalar maps tagged input bytes onto a curve scalar.
func hashToScalar(tag string, parts ...[]byte) *edwards25519.Scalar {
	h, _ := blake2b.New512([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		panic(err)
	}
	return s
}

// hashToPoint maps tagged input bytes onto a curve point with unknown
// discrete log relative to the input.
func hashToPoint(tag string, parts ...[]byte) *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(hashToScalar(tag, parts...))
}

func compress(p *edwards25519.Point) types.Key {
	var k types.Key
	copy(k[:], p.Bytes())
	return k
}

func decompress(k types.Key) (*edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(k[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: malformed curve point: %w", err)
	}
	return p, nil
}

func le8(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// AccountKey holds the private keys of an account. For view-only accounts
// the spend private key is absent and only the root spend public key is
// known; such keys can detect receipt but cannot derive key images or sign.
type AccountKey struct {
	viewPrivate  *edwards25519.Scalar
	spendPrivate *edwards25519.Scalar
	spendPublic  *edwards25519.Point

	fogReportURL    string
	fogReportID     string
	fogAuthoritySig []byte
}

// FogInfo carries the fog enrollment of an account, if any.
type FogInfo struct {
	ReportURL    string
	ReportID     string
	AuthoritySig []byte
}

func newAccountKey(view, spend *edwards25519.Scalar, fog *FogInfo) *AccountKey {
	k := &AccountKey{
		viewPrivate:  view,
		spendPrivate: spend,
		spendPublic:  new(edwards25519.Point).ScalarBaseMult(spend),
	}
	k.setFog(fog)
	return k
}

func (k *AccountKey) setFog(fog *FogInfo) {
	if fog == nil {
		return
	}
	k.fogReportURL = fog.ReportURL
	k.fogReportID = fog.ReportID
	k.fogAuthoritySig = fog.AuthoritySig
}

// slip10 derives a hardened ed25519 node from a BIP-39 seed along the
// wallet's fixed path m/44'/866'/0'.
func slip10(seed []byte) []byte {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]
	for _, index := range []uint32{44, 866, 0} {
		var data [37]byte
		copy(data[1:33], key)
		binary.BigEndian.PutUint32(data[33:], index|0x80000000)
		mac = hmac.New(sha512.New, chain)
		mac.Write(data[:])
		sum = mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}
	return key
}

// NewAccountKeyFromMnemonic derives a v2 account key from a 24-word BIP-39
// mnemonic.
func NewAccountKeyFromMnemonic(mnemonic string, fog *FogInfo) (*AccountKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil || len(entropy) != 32 {
		return nil, ErrInvalidMnemonic
	}
	node := slip10(bip39.NewSeed(mnemonic, ""))
	view := hashToScalar("mc_slip10_view", node)
	spend := hashToScalar("mc_slip10_spend", node)
	return newAccountKey(view, spend, fog), nil
}

// NewAccountKeyFromRootEntropy derives a v1 account key from 32 bytes of
// legacy root entropy.
func NewAccountKeyFromRootEntropy(entropy []byte, fog *FogInfo) (*AccountKey, error) {
	if len(entropy) != 32 {
		return nil, fmt.Errorf("crypto: root entropy must be 32 bytes, got %d", len(entropy))
	}
	view := hashToScalar("mc_root_entropy_view", entropy)
	spend := hashToScalar("mc_root_entropy_spend", entropy)
	return newAccountKey(view, spend, fog), nil
}

// NewRandomMnemonic samples a fresh 24-word mnemonic.
func NewRandomMnemonic() (string, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NewAccountKeyFromPrivates reconstructs an account key from raw scalar
// bytes, as stored by the wallet database.
func NewAccountKeyFromPrivates(viewPrivate, spendPrivate []byte, fog *FogInfo) (*AccountKey, error) {
	view, err := edwards25519.NewScalar().SetCanonicalBytes(viewPrivate)
	if err != nil {
		return nil, fmt.Errorf("crypto: malformed view private key: %w", err)
	}
	spend, err := edwards25519.NewScalar().SetCanonicalBytes(spendPrivate)
	if err != nil {
		return nil, fmt.Errorf("crypto: malformed spend private key: %w", err)
	}
	return newAccountKey(view, spend, fog), nil
}

// NewViewAccountKey builds a view-only account key from the view private
// key and the root spend public key.
func NewViewAccountKey(viewPrivate []byte, spendPublic types.Key, fog *FogInfo) (*AccountKey, error) {
	view, err := edwards25519.NewScalar().SetCanonicalBytes(viewPrivate)
	if err != nil {
		return nil, fmt.Errorf("crypto: malformed view private key: %w", err)
	}
	pub, err := decompress(spendPublic)
	if err != nil {
		return nil, err
	}
	k := &AccountKey{viewPrivate: view, spendPublic: pub}
	k.setFog(fog)
	return k, nil
}

// IsViewOnly reports whether the key lacks the spend private key.
func (k *AccountKey) IsViewOnly() bool { return k.spendPrivate == nil }

// FogReportURL returns the fog report url, empty for non-fog accounts.
func (k *AccountKey) FogReportURL() string { return k.fogReportURL }

// ViewPrivateBytes returns the canonical bytes of the view private key.
func (k *AccountKey) ViewPrivateBytes() []byte { return k.viewPrivate.Bytes() }

// SpendPrivateBytes returns the canonical bytes of the spend private key.
// It fails for view-only keys.
func (k *AccountKey) SpendPrivateBytes() ([]byte, error) {
	if k.spendPrivate == nil {
		return nil, ErrViewOnly
	}
	return k.spendPrivate.Bytes(), nil
}

// SpendPublic returns the compressed root spend public key.
func (k *AccountKey) SpendPublic() types.Key { return compress(k.spendPublic) }

// subaddressScalar is the per-index tweak mixed into the root spend key.
func (k *AccountKey) subaddressScalar(index uint64) *edwards25519.Scalar {
	return hashToScalar("mc_subaddress", k.viewPrivate.Bytes(), le8(index))
}

// SubaddressSpendPublic returns the spend public key of one subaddress.
// This is the value the scanner indexes for its reverse lookup.
func (k *AccountKey) SubaddressSpendPublic(index uint64) types.Key {
	d := new(edwards25519.Point).ScalarBaseMult(k.subaddressScalar(index))
	return compress(d.Add(d, k.spendPublic))
}

// SubaddressViewPublic returns the view public key of one subaddress.
func (k *AccountKey) SubaddressViewPublic(index uint64) types.Key {
	spendPub, err := decompress(k.SubaddressSpendPublic(index))
	if err != nil {
		panic(err)
	}
	return compress(new(edwards25519.Point).ScalarMult(k.viewPrivate, spendPub))
}

// SubaddressSpendPrivate returns the spend private key of one subaddress.
// It fails for view-only keys.
func (k *AccountKey) SubaddressSpendPrivate(index uint64) (*edwards25519.Scalar, error) {
	if k.spendPrivate == nil {
		return nil, ErrViewOnly
	}
	return edwards25519.NewScalar().Add(k.spendPrivate, k.subaddressScalar(index)), nil
}

// Subaddress returns the full public address of one subaddress, carrying
// the account's fog enrollment.
func (k *AccountKey) Subaddress(index uint64) *types.PublicAddress {
	return &types.PublicAddress{
		ViewPublicKey:   k.SubaddressViewPublic(index),
		SpendPublicKey:  k.SubaddressSpendPublic(index),
		FogReportURL:    k.fogReportURL,
		FogReportID:     k.fogReportID,
		FogAuthoritySig: k.fogAuthoritySig,
	}
}

// DefaultSubaddress returns the account's main public address, whose digest
// is the account id.
func (k *AccountKey) DefaultSubaddress() *types.PublicAddress {
	return k.Subaddress(DefaultSubaddressIndex)
}

// AccountID returns the content-addressed identity of the account.
func (k *AccountKey) AccountID() types.AccountID {
	return types.IDForAddress(k.DefaultSubaddress())
}
