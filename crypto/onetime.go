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
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// EncryptedFogHintSize is the fixed width of the fog hint field. Outputs to
// non-fog recipients carry an unrecoverable random hint of the same width.
const EncryptedFogHintSize = 84

func randomScalar() (*edwards25519.Scalar, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().SetUniformBytes(seed[:])
}

// onetimeScalar is the shared-secret-derived tweak that hides the recipient
// subaddress spend key inside the target key.
func onetimeScalar(shared *edwards25519.Point, txPublic types.Key) *edwards25519.Scalar {
	return hashToScalar("mc_onetime", shared.Bytes(), txPublic.Bytes())
}

func maskU64(shared *edwards25519.Point, tag string) uint64 {
	h, _ := blake2b.New(8, []byte(tag))
	h.Write(shared.Bytes())
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// commitmentFor binds the masked amount to the shared secret. A scanner
// that recomputes a matching commitment from its own view key knows the
// output is addressed to one of the account's subaddresses, even one it
// does not currently track.
func commitmentFor(shared *edwards25519.Point, value uint64, tokenID uint64) [32]byte {
	h, _ := blake2b.New256([]byte("mc_amount_commitment"))
	h.Write(shared.Bytes())
	h.Write(le8(value))
	h.Write(le8(tokenID))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func confirmationFor(shared *edwards25519.Point, txPublic types.Key) [32]byte {
	h, _ := blake2b.New256([]byte("mc_confirmation"))
	h.Write(shared.Bytes())
	h.Write(txPublic.Bytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func encryptFogHint(recipient *types.PublicAddress, shared *edwards25519.Point) []byte {
	hint := make([]byte, EncryptedFogHintSize)
	if !recipient.IsFog() {
		rand.Read(hint)
		return hint
	}
	plain, err := rlp.EncodeToBytes(recipient)
	if err != nil {
		panic(err)
	}
	xof, _ := blake2b.NewXOF(EncryptedFogHintSize, shared.Bytes())
	xof.Write([]byte("mc_fog_hint"))
	xof.Read(hint)
	for i := range hint {
		if i < len(plain) {
			hint[i] ^= plain[i]
		}
	}
	return hint
}

// TxOutSecrets is everything the sender learns while minting an output:
// the shared secret it can later use to decode the output, and the
// confirmation number handed to the recipient out of band.
type TxOutSecrets struct {
	SharedSecret types.Key
	Confirmation [32]byte
}

// MemoBuilder constructs an output's memo once the output's shared secret
// and public key are fixed. A nil MemoBuilder yields an unused memo.
type MemoBuilder func(sharedSecret types.Key, txPublic types.Key) *Memo

// CreateTxOut mints an output paying value to the recipient address. The
// returned secrets belong to the sender side of the transfer.
func CreateTxOut(amount types.Amount, recipient *types.PublicAddress, memoFn MemoBuilder) (*types.TxOut, *TxOutSecrets, error) {
	r, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}
	spendPub, err := decompress(recipient.SpendPublicKey)
	if err != nil {
		return nil, nil, err
	}
	viewPub, err := decompress(recipient.ViewPublicKey)
	if err != nil {
		return nil, nil, err
	}
	// Tx public key is published against the recipient spend key, so the
	// recipient's view private key alone recovers the shared secret.
	txPublic := compress(new(edwards25519.Point).ScalarMult(r, spendPub))
	shared := new(edwards25519.Point).ScalarMult(r, viewPub)

	target := new(edwards25519.Point).ScalarBaseMult(onetimeScalar(shared, txPublic))
	target.Add(target, spendPub)

	memo := &Memo{}
	if memoFn != nil {
		memo = memoFn(compress(shared), txPublic)
	}
	out := &types.TxOut{
		TargetKey:     compress(target),
		PublicKey:     txPublic,
		MaskedValue:   amount.Value ^ maskU64(shared, "mc_amount_mask"),
		MaskedTokenID: uint64(amount.TokenID) ^ maskU64(shared, "mc_token_mask"),
		Commitment:    commitmentFor(shared, amount.Value, uint64(amount.TokenID)),
		EFogHint:      encryptFogHint(recipient, shared),
		EMemo:         memo.encrypt(shared),
	}
	secrets := &TxOutSecrets{
		SharedSecret: compress(shared),
		Confirmation: confirmationFor(shared, txPublic),
	}
	return out, secrets, nil
}

// SharedSecret recovers the Diffie-Hellman secret of an output from the
// recipient side.
func SharedSecret(k *AccountKey, txPublic types.Key) (*edwards25519.Point, error) {
	pub, err := decompress(txPublic)
	if err != nil {
		return nil, err
	}
	return new(edwards25519.Point).ScalarMult(k.viewPrivate, pub), nil
}

// ViewKeyMatch tests whether an output is addressed to any subaddress of
// the account by recomputing the amount commitment from the view-key
// shared secret. On a match it returns the unmasked amount and the shared
// secret.
func ViewKeyMatch(k *AccountKey, out *types.TxOut) (bool, types.Amount, types.Key, error) {
	shared, err := SharedSecret(k, out.PublicKey)
	if err != nil {
		return false, types.Amount{}, types.Key{}, err
	}
	value := out.MaskedValue ^ maskU64(shared, "mc_amount_mask")
	tokenID := out.MaskedTokenID ^ maskU64(shared, "mc_token_mask")
	want := commitmentFor(shared, value, tokenID)
	if subtle.ConstantTimeCompare(want[:], out.Commitment[:]) != 1 {
		return false, types.Amount{}, types.Key{}, nil
	}
	return true, types.Amount{Value: value, TokenID: types.TokenID(tokenID)}, compress(shared), nil
}

// RecoverSubaddressSpendPublic strips the one-time tweak off a target key,
// leaving the subaddress spend public key the output was addressed to. The
// scanner matches the result against its assigned-subaddress index.
func RecoverSubaddressSpendPublic(k *AccountKey, out *types.TxOut) (types.Key, error) {
	shared, err := SharedSecret(k, out.PublicKey)
	if err != nil {
		return types.Key{}, err
	}
	target, err := decompress(out.TargetKey)
	if err != nil {
		return types.Key{}, err
	}
	tweak := new(edwards25519.Point).ScalarBaseMult(onetimeScalar(shared, out.PublicKey))
	return compress(new(edwards25519.Point).Subtract(target, tweak)), nil
}

// DecodedTxOut is an output successfully matched to one of the account's
// subaddresses.
type DecodedTxOut struct {
	SubaddressIndex uint64
	Amount          types.Amount
	SharedSecret    types.Key
	Memo            *Memo
}

// DecodeTxOut unmasks an output addressed to a known subaddress index.
func DecodeTxOut(k *AccountKey, out *types.TxOut, subaddressIndex uint64) (*DecodedTxOut, error) {
	shared, err := SharedSecret(k, out.PublicKey)
	if err != nil {
		return nil, err
	}
	memo, err := decryptMemo(out.EMemo, shared)
	if err != nil {
		return nil, err
	}
	return &DecodedTxOut{
		SubaddressIndex: subaddressIndex,
		Amount: types.Amount{
			Value:   out.MaskedValue ^ maskU64(shared, "mc_amount_mask"),
			TokenID: types.TokenID(out.MaskedTokenID ^ maskU64(shared, "mc_token_mask")),
		},
		SharedSecret: compress(shared),
		Memo:         memo,
	}, nil
}

// RecoverOnetimePrivate derives the one-time private key of an owned
// output. This requires the spend private key and is the value key images
// are computed from.
func RecoverOnetimePrivate(k *AccountKey, out *types.TxOut, subaddressIndex uint64) (*edwards25519.Scalar, error) {
	shared, err := SharedSecret(k, out.PublicKey)
	if err != nil {
		return nil, err
	}
	subSpend, err := k.SubaddressSpendPrivate(subaddressIndex)
	if err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().Add(onetimeScalar(shared, out.PublicKey), subSpend), nil
}

// KeyImageFor computes the key image of a one-time private key.
func KeyImageFor(onetimePrivate *edwards25519.Scalar) types.KeyImage {
	public := new(edwards25519.Point).ScalarBaseMult(onetimePrivate)
	base := hashToPoint("mc_key_image", public.Bytes())
	img := new(edwards25519.Point).ScalarMult(onetimePrivate, base)
	var ki types.KeyImage
	copy(ki[:], img.Bytes())
	return ki
}

// ValidateConfirmation checks a confirmation number against an output's
// public key using the recipient's view private key.
func ValidateConfirmation(k *AccountKey, txPublic types.Key, confirmation [32]byte) (bool, error) {
	shared, err := SharedSecret(k, txPublic)
	if err != nil {
		return false, err
	}
	want := confirmationFor(shared, txPublic)
	return subtle.ConstantTimeCompare(want[:], confirmation[:]) == 1, nil
}

// ConfirmationForSharedSecret recomputes a confirmation number from a
// stored shared secret, used when minting receipts for built outputs.
func ConfirmationForSharedSecret(sharedSecret types.Key, txPublic types.Key) ([32]byte, error) {
	shared, err := decompress(sharedSecret)
	if err != nil {
		return [32]byte{}, fmt.Errorf("crypto: malformed shared secret: %w", err)
	}
	return confirmationFor(shared, txPublic), nil
}
