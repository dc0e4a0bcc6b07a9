// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: "sqlite" (default) or "postgres"
  - AdminKeySalt: Secret for admin key HMAC (required)
  - PollSlugSalt: Secret for share slug generation (required)
  - SiteAdminToken: Token for the site admin panel (optional, panel locked without it)
  - BaseURL: Public URL prefix for share links (default: http://localhost:3318)
  - CloseSweepInterval: How often expired polls are closed (default: 1m)

# CLI Flags

	-p                 Server port
	-d                 Database URL
	-t                 Database type
	--base-url         Public base URL
	--sweep            Close sweep interval (Go duration)
	--admin-salt       Admin key salt
	--slug-salt        Poll slug salt
	--site-admin-token Site admin token

# Environment Variables

Flags fall back to environment variables:

	PORT                 → -p
	DATABASE_URL         → -d
	DATABASE_TYPE        → -t
	BASE_URL             → --base-url
	CLOSE_SWEEP_INTERVAL → --sweep
	ADMIN_KEY_SALT       → --admin-salt
	POLL_SLUG_SALT       → --slug-salt
	SITE_ADMIN_TOKEN     → --site-admin-token

CLI flags take precedence over environment variables. LoadEnvFile reads a
.env file into the environment first; variables already set are kept.

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}

# Validation

ParseFlags returns an error if required values are missing or malformed:

  - DATABASE_URL must be provided
  - ADMIN_KEY_SALT must be provided
  - POLL_SLUG_SALT must be provided
  - DATABASE_TYPE must be sqlite or postgres
  - PORT and CLOSE_SWEEP_INTERVAL must parse
*/
package cliparse
