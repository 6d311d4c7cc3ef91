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

// Package walletdb persists the wallet's accounts, txos, subaddresses and
// transaction logs in an embedded SQLite database. Every mutation runs
// inside a caller-opened transaction; multi-row updates are atomic and
// partial application is never observable.
package walletdb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. SQLite serializes writers; a single
// connection in the pool makes conflicting transactions queue instead of
// failing halfway through.
type DB struct {
	sql *sql.DB
	log log.Logger
}

// Open opens (creating if necessary) the wallet database at path and
// applies the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)", path)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("walletdb: open %s: %w", path, err)
	}
	// A single connection keeps SQLite's locking model simple: one writer,
	// transactions never deadlock against our own pool.
	handle.SetMaxOpenConns(1)
	db := &DB{sql: handle, log: log.New("module", "walletdb")}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) migrate() error {
	if _, err := db.sql.Exec(schema); err != nil {
		return fmt.Errorf("walletdb: migrate: %w", err)
	}
	return nil
}

// Txn is one database transaction. All model operations hang off it; the
// caller decides the transaction boundary.
type Txn struct {
	tx *sql.Tx
}

// Transaction runs fn inside a write transaction, committing on nil and
// rolling back on error or panic.
func (db *DB) Transaction(fn func(t *Txn) error) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return &StoreError{Cause: err}
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Txn{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.log.Warn("Rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

// View runs fn inside a transaction exactly as Transaction does; it does
// not make the transaction read-only.
func (db *DB) View(fn func(t *Txn) error) error {
	return db.Transaction(fn)
}

func nullU64(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func u64Ptr(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
