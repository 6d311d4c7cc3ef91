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

package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"filippo.io/edwards25519"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/mobilecoinofficial/full-service/common/b58"
	"github.com/mobilecoinofficial/full-service/core/types"
	"github.com/mobilecoinofficial/full-service/crypto"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

const (
	// DefaultFee is the network minimum fee for MOB, in picoMOB.
	DefaultFee uint64 = 400_000_000

	// DefaultTombstoneBlocks bounds a proposal's mempool lifetime when the
	// caller does not pick a tombstone.
	DefaultTombstoneBlocks uint64 = 10
)

// Outlay is one recipient of a transaction.
type Outlay struct {
	RecipientB58 string
	Amount       types.Amount
}

// TransactionBuilder accumulates the parameters of one outbound
// transaction. Zero values mean defaults: the network fee, a tombstone of
// tip + DefaultTombstoneBlocks, selector-chosen inputs.
type TransactionBuilder struct {
	service *Service

	accountID          string
	outlays            []Outlay
	inputTxoIDs        []string
	fee                *types.Amount
	tombstone          uint64
	maxSpendable       *uint64
	spendSubaddressB58 string
	comment            string
}

// NewTransactionBuilder starts a builder for the given account.
func (s *Service) NewTransactionBuilder(accountID string) *TransactionBuilder {
	return &TransactionBuilder{service: s, accountID: accountID}
}

// AddRecipient appends an outlay.
func (b *TransactionBuilder) AddRecipient(recipientB58 string, amount types.Amount) *TransactionBuilder {
	b.outlays = append(b.outlays, Outlay{RecipientB58: recipientB58, Amount: amount})
	return b
}

// SetFee overrides the default fee.
func (b *TransactionBuilder) SetFee(amount types.Amount) *TransactionBuilder {
	b.fee = &amount
	return b
}

// SetTombstone pins the tombstone block. Zero keeps the default.
func (b *TransactionBuilder) SetTombstone(block uint64) *TransactionBuilder {
	b.tombstone = block
	return b
}

// SetInputs pins the inputs instead of running the selector.
func (b *TransactionBuilder) SetInputs(txoIDs []string) *TransactionBuilder {
	b.inputTxoIDs = txoIDs
	return b
}

// SetMaxSpendable caps the value of any single selected txo.
func (b *TransactionBuilder) SetMaxSpendable(v uint64) *TransactionBuilder {
	b.maxSpendable = &v
	return b
}

// SetSpendSubaddress restricts selection to txos received at one assigned
// subaddress.
func (b *TransactionBuilder) SetSpendSubaddress(addressB58 string) *TransactionBuilder {
	b.spendSubaddressB58 = addressB58
	return b
}

// SetComment attaches a comment to the resulting transaction log.
func (b *TransactionBuilder) SetComment(comment string) *TransactionBuilder {
	b.comment = comment
	return b
}

// BuildAndLog selects inputs, constructs and signs the transaction, and
// records the built log — all inside one store transaction, so a competing
// builder observing the inserted input joins excludes these txos from its
// own spendable set. Nothing persists if any step fails.
func (b *TransactionBuilder) BuildAndLog() (*types.TxProposal, *walletdb.TransactionLog, error) {
	if err := b.service.guard(); err != nil {
		return nil, nil, err
	}
	if len(b.outlays) == 0 {
		return nil, nil, ErrNoRecipients
	}
	var (
		proposal *types.TxProposal
		txLog    *walletdb.TransactionLog
	)
	err := b.service.db.Transaction(func(t *walletdb.Txn) error {
		var err error
		proposal, err = b.build(t)
		if err != nil {
			return err
		}
		txLog, err = t.LogBuilt(proposal, b.comment, b.accountID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	b.service.log.Info("Built transaction", "account", b.accountID, "log", txLog.ID,
		"inputs", len(proposal.InputTxos), "tombstone", proposal.TombstoneBlockIndex)
	return proposal, txLog, nil
}

func (b *TransactionBuilder) build(t *walletdb.Txn) (*types.TxProposal, error) {
	account, err := t.GetAccount(b.accountID)
	if err != nil {
		return nil, err
	}
	if account.ViewOnly {
		return nil, ErrAccountIsViewOnly
	}
	if account.RequireSpendSubaddress && b.spendSubaddressB58 == "" {
		return nil, ErrSpendSubaddressRequired
	}
	key, err := b.service.accountKey(account)
	if err != nil {
		return nil, err
	}

	tokenID := b.outlays[0].Amount.TokenID
	outlayTotal := uint256.NewInt(0)
	for _, o := range b.outlays {
		if o.Amount.TokenID != tokenID {
			return nil, &BuildError{Cause: fmt.Errorf("mixed tokens in one transaction: %d and %d", tokenID, o.Amount.TokenID)}
		}
		outlayTotal.Add(outlayTotal, uint256.NewInt(o.Amount.Value))
	}
	fee := types.Amount{Value: DefaultFee, TokenID: tokenID}
	if b.fee != nil {
		fee = *b.fee
	}
	if fee.TokenID != tokenID {
		return nil, &BuildError{Cause: fmt.Errorf("fee token %d does not match outlay token %d", fee.TokenID, tokenID)}
	}

	tip, err := b.service.ledger.NumBlocks()
	if err != nil {
		return nil, err
	}
	tombstone := b.tombstone
	if tombstone == 0 {
		tombstone = tip + DefaultTombstoneBlocks
	}
	if tombstone <= tip {
		return nil, ErrTombstoneExpired
	}

	inputs, err := b.gatherInputs(t, account, outlayTotal, fee, tokenID)
	if err != nil {
		return nil, err
	}

	inputTotal := uint256.NewInt(0)
	for _, x := range inputs {
		inputTotal.Add(inputTotal, uint256.NewInt(x.Value))
	}
	spent := new(uint256.Int).Add(outlayTotal, uint256.NewInt(fee.Value))
	if inputTotal.Lt(spent) {
		return nil, walletdb.ErrInsufficientFunds
	}
	change := new(uint256.Int).Sub(inputTotal, spent)

	proposal := &types.TxProposal{
		Fee:                 fee.Value,
		FeeTokenID:          fee.TokenID,
		TombstoneBlockIndex: tombstone,
	}

	// Payload outputs carry an authenticated sender memo so the recipient
	// can attribute the payment.
	senderAddress := key.Subaddress(account.MainSubaddressIndex)
	var outputs []*types.TxOut
	for _, o := range b.outlays {
		recipient, err := b58.DecodePublicAddress(o.RecipientB58)
		if err != nil {
			return nil, &BuildError{Cause: err}
		}
		out, secrets, err := b.mintOutput(o.Amount, recipient, senderAddress)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
		proposal.PayloadTxos = append(proposal.PayloadTxos, types.OutputTxo{
			TxOut:        out,
			RecipientB58: o.RecipientB58,
			Value:        o.Amount.Value,
			TokenID:      o.Amount.TokenID,
			Confirmation: secrets.Confirmation,
			SharedSecret: secrets.SharedSecret,
		})
	}

	if !change.IsZero() {
		if !change.IsUint64() {
			return nil, &BuildError{Cause: fmt.Errorf("change overflows a single output")}
		}
		changeAddress := key.Subaddress(account.ChangeSubaddressIndex)
		changeB58, err := b58.EncodePublicAddress(changeAddress)
		if err != nil {
			return nil, &BuildError{Cause: err}
		}
		out, secrets, err := crypto.CreateTxOut(types.Amount{Value: change.Uint64(), TokenID: tokenID}, changeAddress, nil)
		if err != nil {
			return nil, &BuildError{Cause: err}
		}
		outputs = append(outputs, out)
		proposal.ChangeTxos = append(proposal.ChangeTxos, types.OutputTxo{
			TxOut:        out,
			RecipientB58: changeB58,
			Value:        change.Uint64(),
			TokenID:      tokenID,
			Confirmation: secrets.Confirmation,
			SharedSecret: secrets.SharedSecret,
		})
	}

	txIns, realIndices, err := b.buildRings(inputs)
	if err != nil {
		return nil, err
	}
	prefix := types.TxPrefix{
		Inputs:         txIns,
		Outputs:        outputs,
		Fee:            fee.Value,
		FeeTokenID:     uint64(fee.TokenID),
		TombstoneBlock: tombstone,
	}
	message, err := crypto.TxSigningDigest(&prefix)
	if err != nil {
		return nil, &BuildError{Cause: err}
	}

	tx := &types.Tx{Prefix: prefix}
	for i, x := range inputs {
		onetime, keyImage, err := b.inputSigningKey(key, x)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.SignRing(message, txIns[i].Ring, realIndices[i], onetime)
		if err != nil {
			return nil, &BuildError{Cause: err}
		}
		tx.Signatures = append(tx.Signatures, sig)

		txoID, err := types.TxoIDFromHex(x.ID)
		if err != nil {
			return nil, err
		}
		proposal.InputTxos = append(proposal.InputTxos, types.InputTxo{
			TxoID:    txoID,
			KeyImage: keyImage,
			Value:    x.Value,
			TokenID:  x.TokenID,
		})
	}
	proposal.Tx = tx
	return proposal, nil
}

func (b *TransactionBuilder) mintOutput(amount types.Amount, recipient, sender *types.PublicAddress) (*types.TxOut, *crypto.TxOutSecrets, error) {
	out, secrets, err := crypto.CreateTxOut(amount, recipient, func(shared, txPublic types.Key) *crypto.Memo {
		return crypto.NewAuthenticatedSenderMemo(sender, shared, txPublic)
	})
	if err != nil {
		return nil, nil, &BuildError{Cause: err}
	}
	return out, secrets, nil
}

// gatherInputs resolves explicit inputs or runs the selector.
func (b *TransactionBuilder) gatherInputs(t *walletdb.Txn, account *walletdb.Account, outlayTotal *uint256.Int, fee types.Amount, tokenID types.TokenID) ([]*walletdb.Txo, error) {
	if len(b.inputTxoIDs) > 0 {
		if len(b.inputTxoIDs) > walletdb.MaxInputs {
			return nil, &BuildError{Cause: fmt.Errorf("%d inputs exceed the cap of %d", len(b.inputTxoIDs), walletdb.MaxInputs)}
		}
		seen := mapset.NewThreadUnsafeSet[string]()
		var inputs []*walletdb.Txo
		for _, id := range b.inputTxoIDs {
			if !seen.Add(id) {
				return nil, &BuildError{Cause: fmt.Errorf("duplicate input txo %s", id)}
			}
			x, err := t.GetTxo(id)
			if err != nil {
				return nil, err
			}
			if x.AccountID == nil || *x.AccountID != account.ID {
				return nil, &BuildError{Cause: fmt.Errorf("txo %s does not belong to account %s", id, account.ID)}
			}
			status, err := t.GetTxoStatus(x)
			if err != nil {
				return nil, err
			}
			if status != walletdb.TxoStatusUnspent {
				return nil, &BuildError{Cause: fmt.Errorf("txo %s is %s, not unspent", id, status)}
			}
			inputs = append(inputs, x)
		}
		return inputs, nil
	}

	target := new(uint256.Int).Add(outlayTotal, uint256.NewInt(fee.Value))
	if b.spendSubaddressB58 != "" {
		result, err := t.ListSpendableTxos(account.ID, b.maxSpendable, b.spendSubaddressB58, tokenID, fee.Value)
		if err != nil {
			return nil, err
		}
		return result.SelectForValue(target, fee.Value, tokenID)
	}
	return t.SelectSpendableTxosForValue(account.ID, target, b.maxSpendable, tokenID, fee.Value)
}

// buildRings fetches decoys and membership proofs for each input, hiding
// the real output at a random ring position.
func (b *TransactionBuilder) buildRings(inputs []*walletdb.Txo) ([]*types.TxIn, []int, error) {
	numTxOuts, err := b.service.ledger.NumTxOuts()
	if err != nil {
		return nil, nil, err
	}
	ringSize := uint64(crypto.RingSize)
	if numTxOuts < ringSize {
		ringSize = numTxOuts
	}
	if ringSize == 0 {
		return nil, nil, &BuildError{Cause: fmt.Errorf("ledger has no outputs to build rings from")}
	}

	txIns := make([]*types.TxIn, 0, len(inputs))
	realPositions := make([]int, 0, len(inputs))
	for _, x := range inputs {
		publicKey, err := types.KeyFromBytes(x.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		realIndex, err := b.service.ledger.GetTxOutIndexByPublicKey(publicKey)
		if err != nil {
			return nil, nil, err
		}
		indices := mapset.NewThreadUnsafeSet(realIndex)
		for uint64(indices.Cardinality()) < ringSize {
			decoy, err := randomUint64(numTxOuts)
			if err != nil {
				return nil, nil, err
			}
			indices.Add(decoy)
		}
		position, err := randomUint64(uint64(indices.Cardinality()))
		if err != nil {
			return nil, nil, err
		}
		ringIndices := make([]uint64, 0, ringSize)
		for _, idx := range indices.ToSlice() {
			if idx != realIndex {
				ringIndices = append(ringIndices, idx)
			}
		}
		// Splice the real member in at its hidden position.
		ringIndices = append(ringIndices[:position], append([]uint64{realIndex}, ringIndices[position:]...)...)

		ring := make([]*types.TxOut, 0, len(ringIndices))
		for _, idx := range ringIndices {
			member, err := b.service.ledger.GetTxOutByIndex(idx)
			if err != nil {
				return nil, nil, err
			}
			ring = append(ring, member)
		}
		proofs, err := b.service.ledger.GetTxOutProofOfMemberships(ringIndices)
		if err != nil {
			return nil, nil, err
		}
		txIns = append(txIns, &types.TxIn{Ring: ring, Proofs: proofs})
		realPositions = append(realPositions, int(position))
	}
	return txIns, realPositions, nil
}

func (b *TransactionBuilder) inputSigningKey(key *crypto.AccountKey, x *walletdb.Txo) (*edwards25519.Scalar, types.KeyImage, error) {
	out, err := types.DeserializeTxOut(x.Txo)
	if err != nil {
		return nil, types.KeyImage{}, err
	}
	if x.SubaddressIndex == nil {
		return nil, types.KeyImage{}, &BuildError{Cause: fmt.Errorf("txo %s has no subaddress", x.ID)}
	}
	priv, err := crypto.RecoverOnetimePrivate(key, out, *x.SubaddressIndex)
	if err != nil {
		return nil, types.KeyImage{}, err
	}
	return priv, crypto.KeyImageFor(priv), nil
}

func randomUint64(max uint64) (uint64, error) {
	if max == 0 {
		return 0, nil
	}
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(max))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}
