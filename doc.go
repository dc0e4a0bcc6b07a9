// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the polls API server.

Polls are created by an organizer, shared by slug and voted on with one of
three methods: traditional (one choice), approval (any number of choices) or
ranked (instant runoff). Closing a poll, by hand or when closes_at passes,
tabulates every ballot once and seals the result snapshot.

# Starting the Server

Settings come from CLI flags, the environment, or a .env file in the
working directory:

	DATABASE_URL=polls.db ADMIN_KEY_SALT=... POLL_SLUG_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC
  - POLL_SLUG_SALT (--slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BASE_URL (--base-url): Prefix for share URLs
  - SITE_ADMIN_TOKEN (--site-admin-token): Enables the /admin endpoints
  - CLOSE_SWEEP_INTERVAL (--sweep): How often expired polls are closed

# Architecture

  - tally: Instant runoff, plurality and approval counting
  - handlers: HTTP request handlers, tabulation and the close sweeper
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Connection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
