// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the configured storage backend, runs schema migrations,
// and hands out the auth repositories.
package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/gatekeeper/internal/auth"
)

// Driver names a relational backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Session backends.
const (
	SessionsDatabase = "database"
	SessionsRedis    = "redis"
)

// Config selects and tunes the backend.
type Config struct {
	Driver Driver
	// DSN is the Postgres URL. DATABASE_URL is used when empty.
	DSN string
	// Path is the SQLite database file.
	Path        string
	TablePrefix string
	// ConnectAttempts bounds the retries of the initial connect.
	ConnectAttempts int
	// SessionBackend is SessionsDatabase or SessionsRedis.
	SessionBackend string
	RedisURL       string
	// Migrate applies pending migrations after connecting.
	Migrate bool
}

// Backend holds the opened repositories.
type Backend struct {
	Identities auth.IdentityRepository
	Sessions   auth.SessionRepository
	Audit      auth.AuditRepository

	pingers []func(context.Context) error
	closers []func() error
}

// Open connects to the configured backend, retrying the initial connect with
// exponential backoff, and optionally migrates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := auth.ValidateTablePrefix(cfg.TablePrefix); err != nil {
		return nil, err
	}

	b := &Backend{}
	var err error
	switch cfg.Driver {
	case DriverPostgres:
		err = b.openPostgres(ctx, cfg, logger)
	case DriverSQLite:
		err = b.openSQLite(ctx, cfg, logger)
	default:
		err = oops.Code("STORAGE_UNKNOWN_DRIVER").
			With("driver", string(cfg.Driver)).
			Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		_ = b.Close() //nolint:errcheck // open error takes precedence
		return nil, err
	}

	switch cfg.SessionBackend {
	case "", SessionsDatabase:
	case SessionsRedis:
		if err := b.openRedis(ctx, cfg, logger); err != nil {
			_ = b.Close() //nolint:errcheck // open error takes precedence
			return nil, err
		}
	default:
		_ = b.Close() //nolint:errcheck // open error takes precedence
		return nil, oops.Code("STORAGE_UNKNOWN_SESSION_BACKEND").
			With("session_backend", cfg.SessionBackend).
			Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	logger.Info("storage opened",
		"driver", string(cfg.Driver),
		"session_backend", cfg.SessionBackend,
		"table_prefix", cfg.TablePrefix)
	return b, nil
}

// Ping checks every underlying connection.
func (b *Backend) Ping(ctx context.Context) error {
	for _, ping := range b.pingers {
		if err := ping(ctx); err != nil {
			return oops.Code("STORAGE_PING_FAILED").Wrap(err)
		}
	}
	return nil
}

// Close releases every connection, newest first.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if len(errs) > 0 {
		return oops.Code("STORAGE_CLOSE_FAILED").Wrap(errors.Join(errs...))
	}
	return nil
}

// Migrate applies pending migrations for cfg and returns the resulting version.
func Migrate(cfg Config, logger *slog.Logger) (uint, error) {
	url, err := cfg.MigrationURL()
	if err != nil {
		return 0, err
	}
	m, err := NewMigrator(cfg.Driver, url, cfg.TablePrefix)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && logger != nil {
			logger.Warn("failed to close migrator", "error", cerr)
		}
	}()

	if err := m.Up(); err != nil {
		return 0, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, oops.Code("MIGRATION_DIRTY").With("version", version).
			Errorf("schema is dirty at version %d; fix manually and force the version", version)
	}
	return version, nil
}

// MigrationURL returns the golang-migrate URL for cfg.
func (c Config) MigrationURL() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		dsn, err := c.postgresDSN()
		if err != nil {
			return "", err
		}
		return dsn, nil
	case DriverSQLite:
		return SQLiteURL(c.Path), nil
	default:
		return "", oops.Code("STORAGE_UNKNOWN_DRIVER").
			With("driver", string(c.Driver)).
			Errorf("unknown storage driver %q", c.Driver)
	}
}

func (c Config) postgresDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}
	return "", oops.Code("STORAGE_DSN_MISSING").Errorf("postgres backend requires storage.dsn or DATABASE_URL")
}

// SQLiteURL returns the golang-migrate URL for the SQLite file at path.
func SQLiteURL(path string) string {
	return "sqlite://" + path
}

// withRetry runs connect up to attempts times with exponential backoff.
func withRetry(ctx context.Context, attempts int, logger *slog.Logger, what string, connect func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(200*time.Millisecond))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := connect(ctx); err != nil {
			logger.Warn("storage connect failed", "backend", what, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
