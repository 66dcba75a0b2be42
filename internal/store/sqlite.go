// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/sqlite"
)

func (b *Backend) openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.Path == "" {
		return oops.Code("STORAGE_PATH_MISSING").Errorf("sqlite backend requires storage.path")
	}

	// golang-migrate opens its own connection, so migrate before the pool exists.
	if cfg.Migrate {
		version, err := Migrate(cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("schema migrated", "driver", "sqlite", "version", version)
	}

	var db *sqlx.DB
	err := withRetry(ctx, cfg.ConnectAttempts, logger, "sqlite", func(ctx context.Context) error {
		d, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return err
		}
		db = d
		return nil
	})
	if err != nil {
		return oops.Code("STORAGE_CONNECT_FAILED").With("driver", "sqlite").Wrap(err)
	}
	b.closers = append(b.closers, db.Close)
	b.pingers = append(b.pingers, db.PingContext)

	tables := auth.TablesWithPrefix(cfg.TablePrefix)
	b.Identities = sqlite.NewIdentityRepository(db, tables)
	b.Sessions = sqlite.NewSessionRepository(db, tables)
	b.Audit = sqlite.NewAuditRepository(db, tables)
	return nil
}
