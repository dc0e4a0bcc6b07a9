// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table created by CreateSchema
func DropSchema(db *sql.DB) error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS result_snapshot;
		DROP TABLE IF EXISTS poll_comment;
		DROP TABLE IF EXISTS response;
		DROP TABLE IF EXISTS ballot;
		DROP TABLE IF EXISTS username_claim;
		DROP TABLE IF EXISTS option;
		DROP TABLE IF EXISTS poll;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	return nil
}

// The schema sticks to SQL understood by both PostgreSQL and SQLite
const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    creator_name TEXT NOT NULL,
    method TEXT NOT NULL DEFAULT 'ranked' CHECK (method IN ('traditional', 'approval', 'ranked')),
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    share_slug TEXT UNIQUE,
    closes_at TIMESTAMP,
    closed_at TIMESTAMP,
    final_snapshot_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_poll_share_slug ON poll(share_slug);
CREATE INDEX IF NOT EXISTS idx_poll_status ON poll(status);

-- Options
CREATE TABLE IF NOT EXISTS option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    label TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_option_poll_id ON option(poll_id);

-- Username Claims
CREATE TABLE IF NOT EXISTS username_claim (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    username TEXT NOT NULL,
    voter_token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, voter_token),
    UNIQUE (poll_id, username)
);

CREATE INDEX IF NOT EXISTS idx_username_claim_poll_id ON username_claim(poll_id);

-- Ballots
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    voter_token TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ip_hash TEXT,
    user_agent TEXT,
    UNIQUE (poll_id, voter_token)
);

CREATE INDEX IF NOT EXISTS idx_ballot_poll_id ON ballot(poll_id);
CREATE INDEX IF NOT EXISTS idx_ballot_voter_token ON ballot(poll_id, voter_token);

-- Responses (ranking is NULL for traditional and approval ballots)
CREATE TABLE IF NOT EXISTS response (
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES option(id) ON DELETE CASCADE,
    ranking INTEGER CHECK (ranking IS NULL OR ranking >= 1),
    PRIMARY KEY (ballot_id, option_id)
);

CREATE INDEX IF NOT EXISTS idx_response_option_id ON response(option_id);

-- Comments
CREATE TABLE IF NOT EXISTS poll_comment (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    parent_id TEXT REFERENCES poll_comment(id) ON DELETE CASCADE,
    voter_token TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_poll_comment_poll_id ON poll_comment(poll_id);

-- Result Snapshots
CREATE TABLE IF NOT EXISTS result_snapshot (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    method TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_snapshot_poll_id ON result_snapshot(poll_id);
`
