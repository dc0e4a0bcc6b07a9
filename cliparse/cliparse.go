// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort          = 3318
	defaultBaseURL       = "http://localhost:3318"
	defaultSweepInterval = time.Minute
)

type Config struct {
	Port               int
	DatabaseURL        string
	DatabaseType       string
	AdminKeySalt       string
	PollSlugSalt       string
	SiteAdminToken     string
	BaseURL            string
	CloseSweepInterval time.Duration
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("polls", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL used in share links")
	fs.DurationVar(&cfg.CloseSweepInterval, "sweep", 0, "How often expired polls are closed")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	fs.StringVar(&cfg.PollSlugSalt, "slug-salt", "", "Poll slug salt (prefer env)")
	fs.StringVar(&cfg.SiteAdminToken, "site-admin-token", "", "Site admin token (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultBaseURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.CloseSweepInterval == 0 {
		if v := os.Getenv("CLOSE_SWEEP_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, errors.New("invalid CLOSE_SWEEP_INTERVAL env variable")
			}
			cfg.CloseSweepInterval = d
		} else {
			cfg.CloseSweepInterval = defaultSweepInterval
		}
	}
	if cfg.CloseSweepInterval < 0 {
		return Config{}, errors.New("close sweep interval must be positive")
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.PollSlugSalt == "" {
		cfg.PollSlugSalt = os.Getenv("POLL_SLUG_SALT")
	}
	if cfg.PollSlugSalt == "" {
		return Config{}, errors.New("POLL_SLUG_SALT required")
	}

	// Optional: admin panel stays locked without it
	if cfg.SiteAdminToken == "" {
		cfg.SiteAdminToken = os.Getenv("SITE_ADMIN_TOKEN")
	}

	return cfg, nil
}
