// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	authredis "github.com/holomush/gatekeeper/internal/auth/redis"
)

// openRedis replaces the database session repository with a Redis one.
// Keys share the table prefix so several deployments can use one server.
func (b *Backend) openRedis(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.RedisURL == "" {
		return oops.Code("STORAGE_REDIS_URL_MISSING").Errorf("redis session backend requires a URL")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return oops.Code("STORAGE_REDIS_URL_INVALID").Wrap(err)
	}
	client := redis.NewClient(opts)

	err = withRetry(ctx, cfg.ConnectAttempts, logger, "redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err() //nolint:wrapcheck // wrapped once retries are exhausted
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // connect error takes precedence
		return oops.Code("STORAGE_CONNECT_FAILED").With("backend", "redis").Wrap(err)
	}
	b.closers = append(b.closers, client.Close)
	b.pingers = append(b.pingers, func(ctx context.Context) error { return client.Ping(ctx).Err() })

	b.Sessions = authredis.NewSessionRepository(client, cfg.TablePrefix)
	return nil
}
