// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and manages the schema.

# Connections

Open picks the driver from the configured database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

  - "postgres": github.com/lib/pq
  - "sqlite": modernc.org/sqlite (pure Go, no cgo)

SQLite URLs get foreign keys switched on and the pool is limited to one
connection, so ":memory:" databases survive between queries.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same SQL runs on both backends.

# Tables

The schema includes:

  - poll: Poll metadata, voting method and lifecycle state
  - option: Voting options per poll
  - username_claim: Maps usernames to voter tokens
  - ballot: One ballot per voter per poll
  - response: Selected options per ballot (with ranking for ranked polls)
  - poll_comment: Threaded discussion per poll
  - result_snapshot: Immutable tally results

# Relationships

	poll 1──* option
	poll 1──* username_claim
	poll 1──* ballot
	ballot 1──* response
	poll 1──* poll_comment
	poll_comment 1──* poll_comment (replies)
	poll 1──* result_snapshot

All foreign keys use ON DELETE CASCADE.

# Errors

IsUniqueViolation recognizes duplicate-key errors from either driver, so
handlers can map them to 409 Conflict.
*/
package db
