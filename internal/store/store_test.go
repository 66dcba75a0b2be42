// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
	"github.com/holomush/gatekeeper/internal/store"
)

func sqliteConfig(t *testing.T) store.Config {
	t.Helper()
	return store.Config{
		Driver:      store.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		TablePrefix: "gk_",
		Migrate:     true,
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	b, err := store.Open(ctx, sqliteConfig(t), authtest.DiscardLogger())
	require.NoError(t, err)

	require.NoError(t, b.Ping(ctx))

	id := uuid.New()
	require.NoError(t, b.Identities.Create(ctx, &auth.Identity{
		ID: id, DisplayName: "P1", PasswordHash: "h", Salt: "s", RegisteredAt: time.Now(),
	}))
	n, err := b.Identities.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "closing twice is harmless")
}

func TestOpen_SQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	b, err := store.Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, b.Identities.Create(ctx, &auth.Identity{
		ID: uuid.New(), DisplayName: "P1", PasswordHash: "h", Salt: "s", RegisteredAt: time.Now(),
	}))
	require.NoError(t, b.Close())

	b, err = store.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	n, err := b.Identities.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  store.Config
		code string
	}{
		{"unknown driver", store.Config{Driver: "mysql"}, "STORAGE_UNKNOWN_DRIVER"},
		{"bad prefix", store.Config{Driver: store.DriverSQLite, TablePrefix: "gk-;drop"}, "STORAGE_INVALID_PREFIX"},
		{"sqlite without path", store.Config{Driver: store.DriverSQLite}, "STORAGE_PATH_MISSING"},
		{"unknown session backend", store.Config{
			Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "a.db"), SessionBackend: "memcached",
		}, "STORAGE_UNKNOWN_SESSION_BACKEND"},
		{"redis without url", store.Config{
			Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "b.db"), SessionBackend: store.SessionsRedis,
		}, "STORAGE_REDIS_URL_MISSING"},
		{"redis bad url", store.Config{
			Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "c.db"),
			SessionBackend: store.SessionsRedis, RedisURL: "http://nope",
		}, "STORAGE_REDIS_URL_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := store.Open(ctx, tt.cfg, authtest.DiscardLogger())
			assert.Nil(t, b)
			authtest.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestOpen_PostgresWithoutDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := store.Open(context.Background(), store.Config{Driver: store.DriverPostgres}, nil)
	authtest.AssertErrorCode(t, err, "STORAGE_DSN_MISSING")
}

func TestOpen_RedisSessions(t *testing.T) {
	ctx := context.Background()
	mini := miniredis.RunT(t)
	cfg := sqliteConfig(t)
	cfg.SessionBackend = store.SessionsRedis
	cfg.RedisURL = "redis://" + mini.Addr()

	b, err := store.Open(ctx, cfg, authtest.DiscardLogger())
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Ping(ctx))

	now := time.Now()
	require.NoError(t, b.Sessions.Create(ctx, &auth.Session{
		ID: ulid.Make(), IdentityID: uuid.New(), Origin: "o", TokenHash: "abc",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), Active: true,
	}))
	assert.True(t, mini.Exists("gk_session:abc"), "sessions live in redis")

	mini.Close()
	authtest.AssertErrorCode(t, b.Ping(ctx), "STORAGE_PING_FAILED")
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mini := miniredis.RunT(t)
	addr := mini.Addr()
	mini.Close()

	cfg := sqliteConfig(t)
	cfg.SessionBackend = store.SessionsRedis
	cfg.RedisURL = "redis://" + addr
	cfg.ConnectAttempts = 2

	_, err := store.Open(context.Background(), cfg, authtest.DiscardLogger())
	authtest.AssertErrorCode(t, err, "STORAGE_CONNECT_FAILED")
}

func TestMigrate_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	version, err := store.Migrate(cfg, authtest.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	version, err = store.Migrate(cfg, authtest.DiscardLogger())
	require.NoError(t, err, "migrating an up-to-date schema is a no-op")
	assert.Equal(t, uint(2), version)

	m, err := store.NewMigrator(store.DriverSQLite, store.SQLiteURL(cfg.Path), cfg.TablePrefix)
	require.NoError(t, err)
	defer m.Close()
	pending, err := m.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)
	applied, err := m.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, applied)
}

func TestConfig_MigrationURL(t *testing.T) {
	url, err := store.Config{Driver: store.DriverSQLite, Path: "/tmp/a.db"}.MigrationURL()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/a.db", url)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	url, err = store.Config{Driver: store.DriverPostgres}.MigrationURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", url)

	url, err = store.Config{Driver: store.DriverPostgres, DSN: "postgres://cfg/db"}.MigrationURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://cfg/db", url)

	_, err = store.Config{Driver: "mysql"}.MigrationURL()
	authtest.AssertErrorCode(t, err, "STORAGE_UNKNOWN_DRIVER")
}
