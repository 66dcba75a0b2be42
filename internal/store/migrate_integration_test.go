// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/store"
)

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()
	connStr, terminate, err := startPostgres(ctx)
	require.NoError(t, err)
	defer terminate()

	migrator, err := store.NewMigrator(store.DriverPostgres, connStr, "gk_")
	require.NoError(t, err)
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	assert.NotEmpty(t, pending)

	require.NoError(t, migrator.Up())
	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Greater(t, version, uint(0))
	assert.False(t, dirty)
	latestVersion := version

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer conn.Close(ctx)
	var tables int
	require.NoError(t, conn.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('gk_users', 'gk_sessions', 'gk_logs', 'gk_schema_migrations')`,
	).Scan(&tables))
	assert.Equal(t, 4, tables, "prefixed tables and bookkeeping table exist")

	require.NoError(t, migrator.Steps(-1))
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, latestVersion-1, version)

	require.NoError(t, migrator.Steps(1))
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, latestVersion, version)

	require.NoError(t, migrator.Down())
	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Force(1))
	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
