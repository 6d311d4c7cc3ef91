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
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// RingSize is the number of outputs mixed into each transaction input.
const RingSize = 11

var (
	// ErrRingSignature is returned when a ring signature fails to verify.
	ErrRingSignature = errors.New("crypto: invalid ring signature")
	// ErrRealIndex is returned when the real input is not a ring member.
	ErrRealIndex = errors.New("crypto: real input index outside ring")
)

// ringSignature is the linkable ring signature attached to one input. The
// key image links two signatures made with the same one-time key.
type ringSignature struct {
	Challenge []byte
	Responses [][]byte
	KeyImage  types.KeyImage
}

func ringChallenge(message []byte, l, r *edwards25519.Point) *edwards25519.Scalar {
	return hashToScalar("mc_ring_challenge", message, l.Bytes(), r.Bytes())
}

// SignRing produces a linkable ring signature over message for the output
// at realIndex, whose one-time private key is x.
func SignRing(message []byte, ring []*types.TxOut, realIndex int, x *edwards25519.Scalar) ([]byte, error) {
	n := len(ring)
	if realIndex < 0 || realIndex >= n {
		return nil, ErrRealIndex
	}
	pubs := make([]*edwards25519.Point, n)
	for i, member := range ring {
		p, err := decompress(member.TargetKey)
		if err != nil {
			return nil, err
		}
		pubs[i] = p
	}
	image := KeyImageFor(x)
	imagePoint, err := new(edwards25519.Point).SetBytes(image[:])
	if err != nil {
		return nil, err
	}

	alpha, err := randomScalar()
	if err != nil {
		return nil, err
	}
	challenges := make([]*edwards25519.Scalar, n)
	responses := make([]*edwards25519.Scalar, n)

	// Close the challenge chain starting just after the real member.
	base := hashToPoint("mc_key_image", pubs[realIndex].Bytes())
	l := new(edwards25519.Point).ScalarBaseMult(alpha)
	r := new(edwards25519.Point).ScalarMult(alpha, base)
	challenges[(realIndex+1)%n] = ringChallenge(message, l, r)

	for step := 1; step < n; step++ {
		i := (realIndex + step) % n
		responses[i], err = randomScalar()
		if err != nil {
			return nil, err
		}
		hp := hashToPoint("mc_key_image", pubs[i].Bytes())
		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(challenges[i], pubs[i], responses[i])
		r := new(edwards25519.Point).ScalarMult(responses[i], hp)
		r.Add(r, new(edwards25519.Point).ScalarMult(challenges[i], imagePoint))
		challenges[(i+1)%n] = ringChallenge(message, l, r)
	}

	// s = alpha - c*x closes the ring at the real member.
	cx := edwards25519.NewScalar().Multiply(challenges[realIndex], x)
	responses[realIndex] = edwards25519.NewScalar().Subtract(alpha, cx)

	sig := ringSignature{
		Challenge: challenges[0].Bytes(),
		Responses: make([][]byte, n),
		KeyImage:  image,
	}
	for i := range responses {
		sig.Responses[i] = responses[i].Bytes()
	}
	return rlp.EncodeToBytes(&sig)
}

// VerifyRing checks a ring signature over message and returns the key image
// it commits to.
func VerifyRing(message []byte, ring []*types.TxOut, sigBytes []byte) (types.KeyImage, error) {
	var sig ringSignature
	if err := rlp.DecodeBytes(sigBytes, &sig); err != nil {
		return types.KeyImage{}, fmt.Errorf("crypto: malformed ring signature: %w", err)
	}
	n := len(ring)
	if len(sig.Responses) != n {
		return types.KeyImage{}, ErrRingSignature
	}
	imagePoint, err := new(edwards25519.Point).SetBytes(sig.KeyImage[:])
	if err != nil {
		return types.KeyImage{}, ErrRingSignature
	}
	c, err := edwards25519.NewScalar().SetCanonicalBytes(sig.Challenge)
	if err != nil {
		return types.KeyImage{}, ErrRingSignature
	}
	c0 := edwards25519.NewScalar().Set(c)

	for i := 0; i < n; i++ {
		s, err := edwards25519.NewScalar().SetCanonicalBytes(sig.Responses[i])
		if err != nil {
			return types.KeyImage{}, ErrRingSignature
		}
		pub, err := decompress(ring[i].TargetKey)
		if err != nil {
			return types.KeyImage{}, err
		}
		hp := hashToPoint("mc_key_image", pub.Bytes())
		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(c, pub, s)
		r := new(edwards25519.Point).ScalarMult(s, hp)
		r.Add(r, new(edwards25519.Point).ScalarMult(c, imagePoint))
		c = ringChallenge(message, l, r)
	}
	if c.Equal(c0) != 1 {
		return types.KeyImage{}, ErrRingSignature
	}
	return sig.KeyImage, nil
}

// TxSigningDigest is the message ring signatures commit to: the digest of
// the serialized transaction prefix.
func TxSigningDigest(prefix *types.TxPrefix) ([]byte, error) {
	b, err := rlp.EncodeToBytes(prefix)
	if err != nil {
		return nil, err
	}
	h, _ := blake2b.New256([]byte("mc_tx_signing"))
	h.Write(b)
	return h.Sum(nil), nil
}
