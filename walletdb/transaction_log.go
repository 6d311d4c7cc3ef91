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

	"github.com/holiman/uint256"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// TxStatus is the derived state of a transaction log.
type TxStatus string

const (
	// TxStatusBuilt: recorded but not yet submitted to consensus.
	TxStatusBuilt TxStatus = "built"
	// TxStatusPending: submitted, waiting to land or expire.
	TxStatusPending TxStatus = "pending"
	// TxStatusSucceeded: its inputs appeared spent on chain.
	TxStatusSucceeded TxStatus = "succeeded"
	// TxStatusFailed: rejected or expired past its tombstone block.
	TxStatusFailed TxStatus = "failed"
)

// TransactionLog records one outbound transaction of an account, from
// build through submission to its final on-chain outcome.
type TransactionLog struct {
	ID                  string
	AccountID           string
	FeeValue            uint64
	FeeTokenID          types.TokenID
	SubmittedBlockIndex *uint64
	TombstoneBlockIndex *uint64
	FinalizedBlockIndex *uint64
	Comment             string
	Tx                  []byte
	Failed              bool
}

// Status derives the log's state from its fields.
func (l *TransactionLog) Status() TxStatus {
	switch {
	case l.Failed:
		return TxStatusFailed
	case l.FinalizedBlockIndex != nil:
		return TxStatusSucceeded
	case l.SubmittedBlockIndex != nil:
		return TxStatusPending
	default:
		return TxStatusBuilt
	}
}

// AssociatedTxos collects the txos a log touches, split by role.
type AssociatedTxos struct {
	Inputs  []*Txo
	Payload []*Txo
	Change  []*Txo
}

const logColumns = `transaction_log_id, account_id, fee_value, fee_token_id,
	submitted_block_index, tombstone_block_index, finalized_block_index, comment, tx, failed`

func scanLog(row interface{ Scan(...any) error }) (*TransactionLog, error) {
	var (
		l         TransactionLog
		fee       int64
		feeTok    int64
		submitted sql.NullInt64
		tombstone sql.NullInt64
		finalized sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.AccountID, &fee, &feeTok, &submitted, &tombstone,
		&finalized, &l.Comment, &l.Tx, &l.Failed)
	if err != nil {
		return nil, err
	}
	l.FeeValue = uint64(fee)
	l.FeeTokenID = types.TokenID(uint64(feeTok))
	l.SubmittedBlockIndex = u64Ptr(submitted)
	l.TombstoneBlockIndex = u64Ptr(tombstone)
	l.FinalizedBlockIndex = u64Ptr(finalized)
	return &l, nil
}

// GetTransactionLog fetches a log by id.
func (t *Txn) GetTransactionLog(id string) (*TransactionLog, error) {
	row := t.tx.QueryRow(`SELECT `+logColumns+` FROM transaction_logs WHERE transaction_log_id = ?`, id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "transaction log", ID: id}
	}
	if err != nil {
		return nil, wrapSQL(err)
	}
	return l, nil
}

// ListTransactionLogs returns an account's logs, newest tombstone first.
func (t *Txn) ListTransactionLogs(accountID string) ([]*TransactionLog, error) {
	return t.queryLogs(`SELECT `+logColumns+` FROM transaction_logs
		WHERE account_id = ? ORDER BY tombstone_block_index DESC, transaction_log_id`, accountID)
}

// ListTransactionLogsForBlock returns the logs finalized in one block.
func (t *Txn) ListTransactionLogsForBlock(blockIndex uint64) ([]*TransactionLog, error) {
	return t.queryLogs(`SELECT `+logColumns+` FROM transaction_logs
		WHERE finalized_block_index = ?`, int64(blockIndex))
}

func (t *Txn) queryLogs(query string, args ...any) ([]*TransactionLog, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	var logs []*TransactionLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, wrapSQL(err)
		}
		logs = append(logs, l)
	}
	return logs, wrapSQL(rows.Err())
}

// LogBuilt records a freshly built proposal: the log row with no submitted
// block, one input join per consumed txo, and a new txo row plus output
// join per minted output. Minted rows carry no ownership; if the scanner
// later decodes them as ours, it updates them in place.
func (t *Txn) LogBuilt(proposal *types.TxProposal, comment, accountID string) (*TransactionLog, error) {
	txBytes, err := proposal.Tx.Serialize()
	if err != nil {
		return nil, err
	}
	id := proposal.ID().Hex()
	tombstone := proposal.TombstoneBlockIndex
	l := &TransactionLog{
		ID:                  id,
		AccountID:           accountID,
		FeeValue:            proposal.Fee,
		FeeTokenID:          proposal.FeeTokenID,
		TombstoneBlockIndex: &tombstone,
		Comment:             comment,
		Tx:                  txBytes,
	}
	_, err = t.tx.Exec(`INSERT INTO transaction_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.AccountID, int64(l.FeeValue), int64(uint64(l.FeeTokenID)),
		nil, int64(tombstone), nil, l.Comment, l.Tx, false)
	if err != nil {
		return nil, wrapSQL(err)
	}
	for _, input := range proposal.InputTxos {
		if _, err := t.tx.Exec(`INSERT INTO transaction_input_txos (transaction_log_id, txo_id)
			VALUES (?, ?)`, id, input.TxoID.Hex()); err != nil {
			return nil, wrapSQL(err)
		}
		// Record the key image so spend detection can finalize this log
		// even if the input was a minted txo we had not scanned yet.
		if _, err := t.tx.Exec(`UPDATE txos SET key_image = ? WHERE txo_id = ? AND key_image IS NULL`,
			input.KeyImage.Bytes(), input.TxoID.Hex()); err != nil {
			return nil, wrapSQL(err)
		}
	}
	if err := t.insertOutputTxos(id, proposal.PayloadTxos, false); err != nil {
		return nil, err
	}
	if err := t.insertOutputTxos(id, proposal.ChangeTxos, true); err != nil {
		return nil, err
	}
	return l, nil
}

func (t *Txn) insertOutputTxos(logID string, outputs []types.OutputTxo, isChange bool) error {
	for _, out := range outputs {
		serialized, err := out.TxOut.Serialize()
		if err != nil {
			return err
		}
		txoID := out.TxOut.ID().Hex()
		x := &Txo{
			ID:           txoID,
			Value:        out.Value,
			TokenID:      out.TokenID,
			TargetKey:    out.TxOut.TargetKey.Bytes(),
			PublicKey:    out.TxOut.PublicKey.Bytes(),
			EFogHint:     out.TxOut.EFogHint,
			Txo:          serialized,
			SharedSecret: out.SharedSecret.Bytes(),
			Confirmation: out.Confirmation[:],
		}
		if err := t.CreateTxo(x); err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return err
		}
		if _, err := t.tx.Exec(`INSERT INTO transaction_output_txos
			(transaction_log_id, txo_id, recipient_public_address_b58, is_change)
			VALUES (?, ?, ?, ?)`, logID, txoID, out.RecipientB58, isChange); err != nil {
			return wrapSQL(err)
		}
	}
	return nil
}

// LogSubmitted records a submission at block height h. If the proposal was
// logged at build time the existing row is updated; otherwise the full log
// is created here, as some paths submit without an explicit build step.
func (t *Txn) LogSubmitted(proposal *types.TxProposal, h uint64, comment, accountID string) (*TransactionLog, error) {
	id := proposal.ID().Hex()
	existing, err := t.GetTransactionLog(id)
	switch {
	case err == nil:
		if _, err := t.tx.Exec(`UPDATE transaction_logs SET submitted_block_index = ?
			WHERE transaction_log_id = ?`, int64(h), id); err != nil {
			return nil, wrapSQL(err)
		}
		existing.SubmittedBlockIndex = &h
		return existing, nil
	case IsNotFound(err):
		l, err := t.LogBuilt(proposal, comment, accountID)
		if err != nil {
			return nil, err
		}
		if _, err := t.tx.Exec(`UPDATE transaction_logs SET submitted_block_index = ?
			WHERE transaction_log_id = ?`, int64(h), id); err != nil {
			return nil, wrapSQL(err)
		}
		l.SubmittedBlockIndex = &h
		return l, nil
	default:
		return nil, err
	}
}

// FinalizePendingForSpentTxo finalizes every live log consuming the txo as
// input once the txo's key image lands at spentBlockIndex. Normally at
// most one such log exists per input; after a crash there may be more, and
// all of them are finalized.
func (t *Txn) FinalizePendingForSpentTxo(txoID string, spentBlockIndex uint64) error {
	_, err := t.tx.Exec(`UPDATE transaction_logs SET finalized_block_index = ?
		WHERE failed = 0 AND finalized_block_index IS NULL
		  AND transaction_log_id IN (
		      SELECT transaction_log_id FROM transaction_input_txos WHERE txo_id = ?)`,
		int64(spentBlockIndex), txoID)
	return wrapSQL(err)
}

// FailPendingExceedingTombstone fails an account's unfinalized, unfailed
// logs whose tombstone block has passed. Their input txos fall back to
// spendable because the Pending derivation collapses.
func (t *Txn) FailPendingExceedingTombstone(accountID string, blockIndex uint64) error {
	_, err := t.tx.Exec(`UPDATE transaction_logs SET failed = 1
		WHERE account_id = ? AND failed = 0 AND finalized_block_index IS NULL
		  AND tombstone_block_index IS NOT NULL AND tombstone_block_index <= ?`,
		accountID, int64(blockIndex))
	return wrapSQL(err)
}

// DeleteTransactionLogsForAccount removes an account's logs and their join
// rows as part of the removal cascade.
func (t *Txn) DeleteTransactionLogsForAccount(accountID string) error {
	for _, stmt := range []string{
		`DELETE FROM transaction_input_txos WHERE transaction_log_id IN
		    (SELECT transaction_log_id FROM transaction_logs WHERE account_id = ?)`,
		`DELETE FROM transaction_output_txos WHERE transaction_log_id IN
		    (SELECT transaction_log_id FROM transaction_logs WHERE account_id = ?)`,
		`DELETE FROM transaction_logs WHERE account_id = ?`,
	} {
		if _, err := t.tx.Exec(stmt, accountID); err != nil {
			return wrapSQL(err)
		}
	}
	return nil
}

// GetAssociatedTxos loads the txos a log consumes and mints.
func (t *Txn) GetAssociatedTxos(logID string) (*AssociatedTxos, error) {
	assoc := &AssociatedTxos{}
	var err error
	assoc.Inputs, err = t.queryTxos(`SELECT `+txoColumnsQualified+` FROM txos
		JOIN transaction_input_txos i ON i.txo_id = txos.txo_id
		WHERE i.transaction_log_id = ?`, logID)
	if err != nil {
		return nil, err
	}
	assoc.Payload, err = t.queryTxos(`SELECT `+txoColumnsQualified+` FROM txos
		JOIN transaction_output_txos o ON o.txo_id = txos.txo_id
		WHERE o.transaction_log_id = ? AND o.is_change = 0`, logID)
	if err != nil {
		return nil, err
	}
	assoc.Change, err = t.queryTxos(`SELECT `+txoColumnsQualified+` FROM txos
		JOIN transaction_output_txos o ON o.txo_id = txos.txo_id
		WHERE o.transaction_log_id = ? AND o.is_change = 1`, logID)
	if err != nil {
		return nil, err
	}
	return assoc, nil
}

// ValueMap sums a log's payload output values per token.
func (t *Txn) ValueMap(logID string) (map[types.TokenID]*uint256.Int, error) {
	assoc, err := t.GetAssociatedTxos(logID)
	if err != nil {
		return nil, err
	}
	values := make(map[types.TokenID]*uint256.Int)
	for _, x := range assoc.Payload {
		if _, ok := values[x.TokenID]; !ok {
			values[x.TokenID] = uint256.NewInt(0)
		}
		values[x.TokenID].Add(values[x.TokenID], uint256.NewInt(x.Value))
	}
	return values, nil
}

// InputTxoIDs returns the txo ids a log consumes.
func (t *Txn) InputTxoIDs(logID string) ([]string, error) {
	rows, err := t.tx.Query(`SELECT txo_id FROM transaction_input_txos
		WHERE transaction_log_id = ?`, logID)
	if err != nil {
		return nil, wrapSQL(err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapSQL(err)
		}
		ids = append(ids, id)
	}
	return ids, wrapSQL(rows.Err())
}
