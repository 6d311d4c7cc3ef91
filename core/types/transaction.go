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

// TxIn is one input of a transaction: a ring of decoy outputs hiding the
// real spend, with a membership proof per ring member.
type TxIn struct {
	Ring   []*TxOut
	Proofs []TxOutMembershipProof
}

// TxPrefix is the unsigned portion of a transaction.
type TxPrefix struct {
	Inputs         []*TxIn
	Outputs        []*TxOut
	Fee            uint64
	FeeTokenID     uint64
	TombstoneBlock uint64
}

// Tx is a complete transaction: the prefix plus one ring signature per
// input.
type Tx struct {
	Prefix     TxPrefix
	Signatures [][]byte
}

// Serialize returns the canonical RLP encoding of the transaction.
func (tx *Tx) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DeserializeTx decodes a transaction from its canonical encoding.
func DeserializeTx(b []byte) (*Tx, error) {
	tx := new(Tx)
	if err := rlp.DecodeBytes(b, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// ID computes the content-addressed identity of the transaction. Building a
// proposal and re-deriving the id from its serialized transaction gives the
// same value.
func (tx *Tx) ID() TransactionLogID {
	b, err := tx.Serialize()
	if err != nil {
		panic(err)
	}
	return TransactionLogID(digest32("transaction_data", b))
}

// InputTxo describes one input consumed by a transaction proposal.
type InputTxo struct {
	TxoID    TxoID
	KeyImage KeyImage
	Value    uint64
	TokenID  TokenID
}

// OutputTxo describes one output minted by a transaction proposal, before
// it appears on chain. The confirmation number lets the recipient prove
// receipt out of band; the shared secret lets the sender decode the output
// if it ever returns to one of its own accounts.
type OutputTxo struct {
	TxOut        *TxOut
	RecipientB58 string
	Value        uint64
	TokenID      TokenID
	Confirmation [32]byte
	SharedSecret Key
}

// TxProposal is a fully built, signed transaction together with the wallet
// bookkeeping needed to log it: which txos it consumes and which it mints.
type TxProposal struct {
	InputTxos           []InputTxo
	PayloadTxos         []OutputTxo
	ChangeTxos          []OutputTxo
	Fee                 uint64
	FeeTokenID          TokenID
	TombstoneBlockIndex uint64
	Tx                  *Tx
}

// ID returns the transaction log id the proposal will be recorded under.
func (p *TxProposal) ID() TransactionLogID { return p.Tx.ID() }

// ReceiverReceipt accompanies a payment out of band: the recipient can look
// the output up by public key and validate the confirmation number against
// it.
type ReceiverReceipt struct {
	PublicKey      Key
	Confirmation   [32]byte
	TombstoneBlock uint64
	MaskedValue    uint64
	MaskedTokenID  uint64
}
