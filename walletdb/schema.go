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

// Values are stored in SQLite's signed 64-bit integers; the stored bit
// pattern round-trips through uint64 at the model layer and all arithmetic
// happens in 256-bit accumulators.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id               TEXT PRIMARY KEY NOT NULL,
    view_private_key         BLOB NOT NULL,
    spend_private_key        BLOB,
    spend_public_key         BLOB NOT NULL,
    entropy                  BLOB,
    key_derivation_version   INTEGER NOT NULL,
    main_subaddress_index    INTEGER NOT NULL,
    change_subaddress_index  INTEGER NOT NULL,
    next_subaddress_index    INTEGER NOT NULL,
    first_block_index        INTEGER NOT NULL,
    next_block_index         INTEGER NOT NULL,
    import_block_index       INTEGER,
    name                     TEXT NOT NULL DEFAULT '',
    fog_report_url           TEXT NOT NULL DEFAULT '',
    fog_enabled              INTEGER NOT NULL DEFAULT 0,
    view_only                INTEGER NOT NULL DEFAULT 0,
    require_spend_subaddress INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assigned_subaddresses (
    public_address_b58  TEXT PRIMARY KEY NOT NULL,
    account_id          TEXT NOT NULL,
    subaddress_index    INTEGER NOT NULL,
    comment             TEXT NOT NULL DEFAULT '',
    spend_public_key    BLOB NOT NULL,
    UNIQUE (account_id, subaddress_index)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assigned_subaddresses_spend_public_key
    ON assigned_subaddresses (spend_public_key);

CREATE TABLE IF NOT EXISTS txos (
    txo_id               TEXT PRIMARY KEY NOT NULL,
    account_id           TEXT,
    value                INTEGER NOT NULL,
    token_id             INTEGER NOT NULL,
    target_key           BLOB NOT NULL,
    public_key           BLOB NOT NULL,
    e_fog_hint           BLOB NOT NULL,
    txo                  BLOB NOT NULL,
    subaddress_index     INTEGER,
    key_image            BLOB,
    received_block_index INTEGER,
    spent_block_index    INTEGER,
    shared_secret        BLOB,
    confirmation         BLOB,
    memo_type            INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_txos_public_key ON txos (public_key);
CREATE INDEX IF NOT EXISTS idx_txos_account ON txos (account_id);
CREATE INDEX IF NOT EXISTS idx_txos_key_image ON txos (key_image);

CREATE TABLE IF NOT EXISTS transaction_logs (
    transaction_log_id    TEXT PRIMARY KEY NOT NULL,
    account_id            TEXT NOT NULL,
    fee_value             INTEGER NOT NULL,
    fee_token_id          INTEGER NOT NULL,
    submitted_block_index INTEGER,
    tombstone_block_index INTEGER,
    finalized_block_index INTEGER,
    comment               TEXT NOT NULL DEFAULT '',
    tx                    BLOB NOT NULL,
    failed                INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transaction_logs_account ON transaction_logs (account_id);

CREATE TABLE IF NOT EXISTS transaction_input_txos (
    transaction_log_id TEXT NOT NULL,
    txo_id             TEXT NOT NULL,
    PRIMARY KEY (transaction_log_id, txo_id)
);
CREATE INDEX IF NOT EXISTS idx_transaction_input_txos_txo ON transaction_input_txos (txo_id);

CREATE TABLE IF NOT EXISTS transaction_output_txos (
    transaction_log_id           TEXT NOT NULL,
    txo_id                       TEXT NOT NULL,
    recipient_public_address_b58 TEXT NOT NULL,
    is_change                    INTEGER NOT NULL,
    PRIMARY KEY (transaction_log_id, txo_id)
);
CREATE INDEX IF NOT EXISTS idx_transaction_output_txos_txo ON transaction_output_txos (txo_id);

CREATE TABLE IF NOT EXISTS authenticated_sender_memos (
    txo_id              TEXT PRIMARY KEY NOT NULL,
    sender_address_hash TEXT NOT NULL
);
`
