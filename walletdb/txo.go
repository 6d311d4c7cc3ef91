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

package walletdb

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// MaxInputs is the protocol cap on the number of inputs one transaction
// may consume.
const MaxInputs = 16

// TxoStatus is the derived lifecycle state of a txo. It is never stored;
// it is recomputed from the row's fields plus the logs referencing it, so
// the row and its declared state cannot drift apart.
type TxoStatus string

const (
	// TxoStatusCreated: referenced only by logs that failed or were never
	// submitted; the txo was built but never made it to chain.
	TxoStatusCreated TxoStatus = "created"
	// TxoStatusOrphaned: received at a subaddress index the account does
	// not currently track.
	TxoStatusOrphaned TxoStatus = "orphaned"
	// TxoStatusPending: referenced by a submitted, unfinalized, unfailed
	// log.
	TxoStatusPending TxoStatus = "pending"
	// TxoStatusSecreted: minted as a non-change output of a succeeded log
	// whose submitting account does not own the txo.
	TxoStatusSecreted TxoStatus = "secreted"
	// TxoStatusSpent: its key image appeared on chain.
	TxoStatusSpent TxoStatus = "spent"
	// TxoStatusUnspent: owned, key image known, not spent, not pending.
	TxoStatusUnspent TxoStatus = "unspent"
	// TxoStatusUnverified: owned but the key image is unknown (view-only
	// account not yet synced with its signer).
	TxoStatusUnverified TxoStatus = "unverified"
)

// ParseTxoStatus parses the string form of a txo status.
func ParseTxoStatus(s string) (TxoStatus, error) {
	switch TxoStatus(s) {
	case TxoStatusCreated, TxoStatusOrphaned, TxoStatusPending, TxoStatusSecreted,
		TxoStatusSpent, TxoStatusUnspent, TxoStatusUnverified:
		return TxoStatus(s), nil
	}
	return "", fmt.Errorf("walletdb: invalid txo status %q", s)
}

// Txo is one persisted transaction output row. A row is created either by
// the scanner (received from the ledger) or by the transaction builder (a
// freshly minted output); the two paths converge on the same row through
// the content-addressed id.
type Txo struct {
	ID                 string
	AccountID          *string
	Value              uint64
	TokenID            types.TokenID
	TargetKey          []byte
	PublicKey          []byte
	EFogHint           []byte
	Txo                []byte // serialized TxOut
	SubaddressIndex    *uint64
	KeyImage           []byte
	ReceivedBlockIndex *uint64
	SpentBlockIndex    *uint64
	SharedSecret       []byte
	Confirmation       []byte
	MemoType           *uint64
}

// Amount returns the txo's value as a typed amount.
func (x *Txo) Amount() types.Amount {
	return types.Amount{Value: x.Value, TokenID: x.TokenID}
}

const txoColumns = `txo_id, account_id, value, token_id, target_key, public_key,
	e_fog_hint, txo, subaddress_index, key_image, received_block_index,
	spent_block_index, shared_secret, confirmation, memo_type`

// txoColumnsQualified disambiguates the shared column names when joining
// through the log tables.
const txoColumnsQualified = `txos.txo_id, txos.account_id, txos.value, txos.token_id,
	txos.target_key, txos.public_key, txos.e_fog_hint, txos.txo, txos.subaddress_index,
	txos.key_image, txos.received_block_index, txos.spent_block_index,
	txos.shared_secret, txos.confirmation, txos.memo_type`

func scanTxo(row interface{ Scan(...any) error }) (*Txo, error) {
	var (
		x          Txo
		accountID  sql.NullString
		subIndex   sql.NullInt64
		keyImage   []byte
		received   sql.NullInt64
		spent      sql.NullInt64
		shared     []byte
		conf       []byte
		memoType   sql.NullInt64
		signedVal  int64
		signedTok  int64
	)
	err := row.Scan(&x.ID, &accountID, &signedVal, &signedTok, &x.TargetKey, &x.PublicKey,
		&x.EFogHint, &x.Txo, &subIndex, &keyImage, &received, &spent, &shared, &conf, &memoType)
	if err != nil {
		return nil, err
	}
	x.Value = uint64(signedVal)
	x.TokenID = types.TokenID(uint64(signedTok))
	if accountID.Valid {
		x.AccountID = &accountID.String
	}
	x.SubaddressIndex = u64Ptr(subIndex)
	x.KeyImage = keyImage
	x.ReceivedBlockIndex = u64Ptr(received)
	x.SpentBlockIndex = u64Ptr(spent)
	x.SharedSecret = shared
	x.Confirmation = conf
	x.MemoType = u64Ptr(memoType)
	return &x, nil
}

// CreateTxo inserts a txo row.
func (t *Txn) CreateTxo(x *Txo) error {
	_, err := t.tx.Exec(`INSERT INTO txos (`+txoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		x.ID, nullString(x.AccountID), int64(x.Value), int64(uint64(x.TokenID)),
		x.TargetKey, x.PublicKey, x.EFogHint, x.Txo, nullU64(x.SubaddressIndex),
		nullBytes(x.KeyImage), nullU64(x.ReceivedBlockIndex), nullU64(x.SpentBlockIndex),
		nullBytes(x.SharedSecret), nullBytes(x.Confirmation), nullU64(x.MemoType))
	return wrapSQL(err)
}

// GetTxo fetches a txo by id.
func (t *Txn) GetTxo(id string) (*Txo, error) {
	row := t.tx.QueryRow(`SELECT `+txoColumns+` FROM txos WHERE txo_id = ?`, id)
	x, err := scanTxo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "txo", ID: id}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return x, nil
}

// GetTxoByPublicKey fetches a txo by its on-chain public key, used by the
// view-only sync protocol and receipt checks.
func (t *Txn) GetTxoByPublicKey(publicKey []byte) (*Txo, error) {
	row := t.tx.QueryRow(`SELECT `+txoColumns+` FROM txos WHERE public_key = ?`, publicKey)
	x, err := scanTxo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "txo", ID: fmt.Sprintf("%x", publicKey)}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return x, nil
}

// UpdateTxoAsReceived converges a minted row with its on-chain appearance:
// the scanner calls this when a txo_id it decoded already exists. The row
// is updated in place, never duplicated.
func (t *Txn) UpdateTxoAsReceived(x *Txo) error {
	_, err := t.tx.Exec(`UPDATE txos SET account_id = ?, value = ?, token_id = ?,
		target_key = ?, public_key = ?, e_fog_hint = ?, txo = ?, subaddress_index = ?,
		key_image = ?, received_block_index = ?, shared_secret = ?, memo_type = ?
		WHERE txo_id = ?`,
		nullString(x.AccountID), int64(x.Value), int64(uint64(x.TokenID)),
		x.TargetKey, x.PublicKey, x.EFogHint, x.Txo, nullU64(x.SubaddressIndex),
		nullBytes(x.KeyImage), nullU64(x.ReceivedBlockIndex), nullBytes(x.SharedSecret),
		nullU64(x.MemoType), x.ID)
	return wrapSQL(err)
}

// UpdateTxoSpentBlockIndex marks a txo spent at the given block.
func (t *Txn) UpdateTxoSpentBlockIndex(id string, spentBlockIndex uint64) error {
	_, err := t.tx.Exec(`UPDATE txos SET spent_block_index = ? WHERE txo_id = ?`,
		int64(spentBlockIndex), id)
	return wrapSQL(err)
}

// UpdateTxoKeyImage records a key image computed by an external signer for
// a view-only account's txo, optionally with the spent block discovered
// alongside it.
func (t *Txn) UpdateTxoKeyImage(id string, keyImage []byte, spentBlockIndex *uint64) error {
	_, err := t.tx.Exec(`UPDATE txos SET key_image = ?, spent_block_index = COALESCE(?, spent_block_index)
		WHERE txo_id = ?`, keyImage, nullU64(spentBlockIndex), id)
	return wrapSQL(err)
}

// ListTxosForAccount returns all txos owned by an account, optionally
// limited to one token.
func (t *Txn) ListTxosForAccount(accountID string, tokenID *types.TokenID) ([]*Txo, error) {
	query := `SELECT ` + txoColumns + ` FROM txos WHERE account_id = ?`
	args := []any{accountID}
	if tokenID != nil {
		query += ` AND token_id = ?`
		args = append(args, int64(uint64(*tokenID)))
	}
	query += ` ORDER BY txo_id`
	return t.queryTxos(query, args...)
}

// ListCreatedTxos returns the txos an account minted whose transactions
// never made it to chain: outputs of the account's logs that failed or
// were never submitted. Created txos carry no owner, so the join runs
// through the log's account, not the txo's.
func (t *Txn) ListCreatedTxos(accountID string, tokenID *types.TokenID) ([]*Txo, error) {
	query := `SELECT DISTINCT ` + txoColumnsQualified + ` FROM txos
		JOIN transaction_output_txos o ON o.txo_id = txos.txo_id
		JOIN transaction_logs tl ON tl.transaction_log_id = o.transaction_log_id
		WHERE tl.account_id = ?
		  AND (tl.failed = 1
		    OR (tl.failed = 0 AND tl.finalized_block_index IS NULL AND tl.submitted_block_index IS NULL))`
	args := []any{accountID}
	if tokenID != nil {
		query += ` AND txos.token_id = ?`
		args = append(args, int64(uint64(*tokenID)))
	}
	candidates, err := t.queryTxos(query, args...)
	if err != nil {
		return nil, err
	}
	return t.filterByStatus(candidates, TxoStatusCreated)
}

// ListSecretedTxos returns the txos an account sent away: non-change
// outputs of its succeeded logs that the account does not own. Like
// created txos, they are reachable only through the log's account.
func (t *Txn) ListSecretedTxos(accountID string, tokenID *types.TokenID) ([]*Txo, error) {
	query := `SELECT DISTINCT ` + txoColumnsQualified + ` FROM txos
		JOIN transaction_output_txos o ON o.txo_id = txos.txo_id
		JOIN transaction_logs tl ON tl.transaction_log_id = o.transaction_log_id
		WHERE tl.account_id = ?
		  AND o.is_change = 0
		  AND tl.failed = 0
		  AND tl.finalized_block_index IS NOT NULL
		  AND (txos.account_id IS NULL OR txos.account_id != tl.account_id)`
	args := []any{accountID}
	if tokenID != nil {
		query += ` AND txos.token_id = ?`
		args = append(args, int64(uint64(*tokenID)))
	}
	candidates, err := t.queryTxos(query, args...)
	if err != nil {
		return nil, err
	}
	return t.filterByStatus(candidates, TxoStatusSecreted)
}

// filterByStatus keeps the candidates the status engine agrees on, so the
// list queries can never drift from the derivation order.
func (t *Txn) filterByStatus(candidates []*Txo, want TxoStatus) ([]*Txo, error) {
	var txos []*Txo
	for _, x := range candidates {
		status, err := t.GetTxoStatus(x)
		if err != nil {
			return nil, err
		}
		if status == want {
			txos = append(txos, x)
		}
	}
	return txos, nil
}

// ListTxosForAddress returns the txos received at one assigned subaddress.
func (t *Txn) ListTxosForAddress(publicAddressB58 string, tokenID *types.TokenID) ([]*Txo, error) {
	sub, err := t.GetSubaddress(publicAddressB58)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + txoColumns + ` FROM txos WHERE account_id = ? AND subaddress_index = ?`
	args := []any{sub.AccountID, int64(sub.SubaddressIndex)}
	if tokenID != nil {
		query += ` AND token_id = ?`
		args = append(args, int64(uint64(*tokenID)))
	}
	return t.queryTxos(query, args...)
}

func (t *Txn) queryTxos(query string, args ...any) ([]*Txo, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	var txos []*Txo
	for rows.Next() {
		x, err := scanTxo(rows)
		if err != nil {
			return nil, wrapSQL(err)
		}
		txos = append(txos, x)
	}
	return txos, wrapSQL(rows.Err())
}

// GetTxoStatus derives the txo's lifecycle state. Predicates are evaluated
// in a fixed order; the first match wins.
func (t *Txn) GetTxoStatus(x *Txo) (TxoStatus, error) {
	if x.SpentBlockIndex != nil {
		return TxoStatusSpent, nil
	}

	var pending int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM transaction_logs tl
		WHERE tl.failed = 0
		  AND tl.submitted_block_index IS NOT NULL
		  AND tl.finalized_block_index IS NULL
		  AND (EXISTS (SELECT 1 FROM transaction_input_txos i
		               WHERE i.transaction_log_id = tl.transaction_log_id AND i.txo_id = ?)
		    OR EXISTS (SELECT 1 FROM transaction_output_txos o
		               WHERE o.transaction_log_id = tl.transaction_log_id AND o.txo_id = ?))`,
		x.ID, x.ID).Scan(&pending)
	if err != nil {
		return "", wrapSQL(err)
	}
	if pending > 0 {
		return TxoStatusPending, nil
	}

	var secreted int
	err = t.tx.QueryRow(`SELECT COUNT(*) FROM transaction_logs tl
		JOIN transaction_output_txos o ON o.transaction_log_id = tl.transaction_log_id
		WHERE o.txo_id = ? AND o.is_change = 0
		  AND tl.failed = 0
		  AND tl.finalized_block_index IS NOT NULL
		  AND (? IS NULL OR tl.account_id != ?)`,
		x.ID, nullString(x.AccountID), nullString(x.AccountID)).Scan(&secreted)
	if err != nil {
		return "", wrapSQL(err)
	}
	if secreted > 0 {
		return TxoStatusSecreted, nil
	}

	var created int
	err = t.tx.QueryRow(`SELECT COUNT(*) FROM transaction_logs tl
		JOIN transaction_output_txos o ON o.transaction_log_id = tl.transaction_log_id
		WHERE o.txo_id = ?
		  AND (tl.failed = 1
		    OR (tl.failed = 0 AND tl.finalized_block_index IS NULL AND tl.submitted_block_index IS NULL))`,
		x.ID).Scan(&created)
	if err != nil {
		return "", wrapSQL(err)
	}
	if created > 0 {
		return TxoStatusCreated, nil
	}

	switch {
	case x.SubaddressIndex != nil && x.KeyImage != nil:
		return TxoStatusUnspent, nil
	case x.SubaddressIndex != nil:
		return TxoStatusUnverified, nil
	default:
		return TxoStatusOrphaned, nil
	}
}

// SpendableTxosResult is the outcome of a spendable-set query: the
// candidate txos sorted by descending value, and the largest value one
// transaction could move after fees.
type SpendableTxosResult struct {
	SpendableTxos        []*Txo
	MaxSpendableInWallet *uint256.Int
}

// ListSpendableTxos returns the txos an account could spend right now in
// the given token: received, unspent, owned with a known key image, and
// not locked as the input of a live (non-failed, non-finalized) log.
// maxSpendableValue, when non-nil, caps the value of any single txo.
// assignedSubaddressB58, when non-empty, restricts to one subaddress.
func (t *Txn) ListSpendableTxos(accountID string, maxSpendableValue *uint64, assignedSubaddressB58 string, tokenID types.TokenID, defaultFee uint64) (*SpendableTxosResult, error) {
	query := `SELECT ` + txoColumns + ` FROM txos
		WHERE account_id = ?
		  AND token_id = ?
		  AND received_block_index IS NOT NULL
		  AND spent_block_index IS NULL
		  AND subaddress_index IS NOT NULL
		  AND key_image IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM transaction_input_txos i
		      JOIN transaction_logs tl ON tl.transaction_log_id = i.transaction_log_id
		      WHERE i.txo_id = txos.txo_id
		        AND tl.failed = 0
		        AND tl.finalized_block_index IS NULL)`
	args := []any{accountID, int64(uint64(tokenID))}
	if assignedSubaddressB58 != "" {
		sub, err := t.GetSubaddress(assignedSubaddressB58)
		if err != nil {
			return nil, err
		}
		query += ` AND subaddress_index = ?`
		args = append(args, int64(sub.SubaddressIndex))
	}
	txos, err := t.queryTxos(query, args...)
	if err != nil {
		return nil, err
	}
	if maxSpendableValue != nil {
		kept := txos[:0]
		for _, x := range txos {
			if x.Value <= *maxSpendableValue {
				kept = append(kept, x)
			}
		}
		txos = kept
	}
	sort.Slice(txos, func(i, j int) bool { return txos[i].Value > txos[j].Value })

	// The maximum spendable is bounded by the input cap: with the list in
	// descending order, the top MaxInputs values are the best any single
	// transaction can do.
	maxSpendable := uint256.NewInt(0)
	for i, x := range txos {
		if i >= MaxInputs {
			break
		}
		maxSpendable.Add(maxSpendable, uint256.NewInt(x.Value))
	}
	fee := uint256.NewInt(defaultFee)
	if maxSpendable.Gt(fee) {
		maxSpendable.Sub(maxSpendable, fee)
	} else {
		maxSpendable.Clear()
	}
	return &SpendableTxosResult{SpendableTxos: txos, MaxSpendableInWallet: maxSpendable}, nil
}

// SelectSpendableTxosForValue picks a set of spendable txos summing to at
// least target, never exceeding MaxInputs.
func (t *Txn) SelectSpendableTxosForValue(accountID string, target *uint256.Int, maxSpendableValue *uint64, tokenID types.TokenID, defaultFee uint64) ([]*Txo, error) {
	result, err := t.ListSpendableTxos(accountID, maxSpendableValue, "", tokenID, defaultFee)
	if err != nil {
		return nil, err
	}
	return result.SelectForValue(target, defaultFee, tokenID)
}

// SelectForValue runs the selection sweep over a spendable set. The sweep
// starts at the smallest values to opportunistically retire dust, evicting
// the smallest held txo whenever the working set overflows the cap.
func (r *SpendableTxosResult) SelectForValue(target *uint256.Int, defaultFee uint64, tokenID types.TokenID) ([]*Txo, error) {
	spendable := append([]*Txo(nil), r.SpendableTxos...)
	if len(spendable) == 0 {
		return nil, &NoSpendableTxosError{TokenID: tokenID}
	}

	fee := uint256.NewInt(defaultFee)
	budget := new(uint256.Int).Add(r.MaxSpendableInWallet, fee)
	if target.Gt(budget) {
		total := uint256.NewInt(0)
		for _, x := range spendable {
			total.Add(total, uint256.NewInt(x.Value))
		}
		need := new(uint256.Int).Add(target, fee)
		if !total.Lt(need) {
			return nil, ErrInsufficientFundsFragmented
		}
		return nil, ErrInsufficientFundsUnderMaxSpendable
	}

	var selected []*Txo
	total := uint256.NewInt(0)
	for total.Lt(target) {
		if len(spendable) == 0 {
			return nil, ErrInsufficientFunds
		}
		// Pop the smallest remaining txo.
		next := spendable[len(spendable)-1]
		spendable = spendable[:len(spendable)-1]
		selected = append(selected, next)
		total.Add(total, uint256.NewInt(next.Value))

		if len(selected) > MaxInputs {
			// The front of the selection holds the smallest member;
			// evict it to stay within the input cap.
			removed := selected[0]
			selected = selected[1:]
			total.Sub(total, uint256.NewInt(removed.Value))
		}
	}
	if len(selected) == 0 || len(selected) > MaxInputs {
		return nil, ErrInsufficientFunds
	}
	return selected, nil
}

// ListUnspentKeyImages returns key image -> txo id for an account's owned,
// unspent txos. The scanner matches each block's key images against it.
func (t *Txn) ListUnspentKeyImages(accountID string) (map[types.KeyImage]string, error) {
	rows, err := t.tx.Query(`SELECT txo_id, key_image FROM txos
		WHERE account_id = ? AND key_image IS NOT NULL AND spent_block_index IS NULL`, accountID)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	images := make(map[types.KeyImage]string)
	for rows.Next() {
		var (
			id string
			ki []byte
		)
		if err := rows.Scan(&id, &ki); err != nil {
			return nil, wrapSQL(err)
		}
		image, err := types.KeyImageFromBytes(ki)
		if err != nil {
			return nil, err
		}
		images[image] = id
	}
	return images, wrapSQL(rows.Err())
}

// ListTxosNeedingSync returns a view-only account's txos with no key
// image, optionally restricted to a memo type, up to limit.
func (t *Txn) ListTxosNeedingSync(accountID string, memoType *uint64, limit int) ([]*Txo, error) {
	query := `SELECT ` + txoColumns + ` FROM txos
		WHERE account_id = ? AND subaddress_index IS NOT NULL AND key_image IS NULL
		  AND spent_block_index IS NULL`
	args := []any{accountID}
	if memoType != nil {
		query += ` AND memo_type = ?`
		args = append(args, int64(*memoType))
	}
	query += ` ORDER BY received_block_index`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return t.queryTxos(query, args...)
}

// ScrubTxosForAccount clears ownership off an account's txos without
// deleting them: other accounts or logs may still reference the rows.
func (t *Txn) ScrubTxosForAccount(accountID string) error {
	_, err := t.tx.Exec(`UPDATE txos SET account_id = NULL WHERE account_id = ?`, accountID)
	return wrapSQL(err)
}

// DeleteUnreferencedTxos sweeps txos owned by no account and referenced by
// no transaction log. Runs at the end of the account removal cascade.
func (t *Txn) DeleteUnreferencedTxos() error {
	_, err := t.tx.Exec(`DELETE FROM txos
		WHERE account_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM transaction_input_txos i WHERE i.txo_id = txos.txo_id)
		  AND NOT EXISTS (SELECT 1 FROM transaction_output_txos o WHERE o.txo_id = txos.txo_id)`)
	return wrapSQL(err)
}
