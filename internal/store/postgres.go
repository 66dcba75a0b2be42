// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
)

func (b *Backend) openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) error {
	dsn, err := cfg.postgresDSN()
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	err = withRetry(ctx, cfg.ConnectAttempts, logger, "postgres", func(ctx context.Context) error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err //nolint:wrapcheck // wrapped once retries are exhausted
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err //nolint:wrapcheck // wrapped once retries are exhausted
		}
		pool = p
		return nil
	})
	if err != nil {
		return oops.Code("STORAGE_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
	}
	b.closers = append(b.closers, func() error { pool.Close(); return nil })
	b.pingers = append(b.pingers, pool.Ping)

	if cfg.Migrate {
		version, err := Migrate(cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("schema migrated", "driver", "postgres", "version", version)
	}

	tables := auth.TablesWithPrefix(cfg.TablePrefix)
	b.Identities = postgres.NewIdentityRepository(pool, tables)
	b.Sessions = postgres.NewSessionRepository(pool, tables)
	b.Audit = postgres.NewAuditRepository(pool, tables)
	return nil
}
