// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
	"github.com/holomush/gatekeeper/internal/auth/redis"
)

func newRepo(t *testing.T) (*redis.SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewSessionRepository(client, "gk:"), mini
}

func TestSessionRepository_Contract(t *testing.T) {
	authtest.SessionRepositoryContract(t, func(t *testing.T) auth.SessionRepository {
		repo, _ := newRepo(t)
		return repo
	})
}

func testSession(hash string, created time.Time) *auth.Session {
	return &auth.Session{
		ID:         ulid.Make(),
		IdentityID: uuid.New(),
		Origin:     "o",
		TokenHash:  hash,
		CreatedAt:  created,
		ExpiresAt:  created.Add(time.Hour),
		Active:     true,
	}
}

func TestSessionRepository_DuplicateToken(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := testSession("dup", now)
	require.NoError(t, repo.Create(ctx, first))
	err := repo.Create(ctx, testSession("dup", now))
	require.ErrorIs(t, err, auth.ErrAlreadyExists)
	authtest.AssertErrorCode(t, err, "SESSION_EXISTS")

	got, err := repo.GetByTokenHash(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "the first session is kept")
}

func TestSessionRepository_KeysCarryTTL(t *testing.T) {
	repo, mini := newRepo(t)
	s := testSession("ttl", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(context.Background(), s))

	assert.True(t, mini.Exists("gk:session:ttl"))
	assert.Equal(t, time.Hour+redis.DefaultRetention, mini.TTL("gk:session:ttl"))
	assert.Equal(t, "1", mini.HGet("gk:session:ttl", "active"))
}

func TestSessionRepository_IdentityIndexKeepsLongestTTL(t *testing.T) {
	ctx := context.Background()
	repo, mini := newRepo(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	long := testSession("long", now)
	long.ExpiresAt = now.Add(72 * time.Hour)
	require.NoError(t, repo.Create(ctx, long))

	short := testSession("short", now.Add(time.Minute))
	short.IdentityID = long.IdentityID
	require.NoError(t, repo.Create(ctx, short))

	indexKey := "gk:sessions:identity:" + long.IdentityID.String()
	assert.Equal(t, 72*time.Hour+redis.DefaultRetention, mini.TTL(indexKey))

	mini.FastForward(time.Hour + redis.DefaultRetention + time.Minute)
	require.True(t, mini.Exists(indexKey))

	changed, err := repo.DeactivateAll(ctx, long.IdentityID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed, "the long-lived session is still reachable")
}

func TestSessionRepository_EvictedKeyIsSkipped(t *testing.T) {
	ctx := context.Background()
	repo, mini := newRepo(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := testSession("gone", now)
	require.NoError(t, repo.Create(ctx, s))

	mini.FastForward(2*time.Hour + redis.DefaultRetention)

	_, err := repo.LatestActive(ctx, s.IdentityID, "o", now)
	require.ErrorIs(t, err, auth.ErrNotFound)

	n, err := repo.CountActive(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "keys Redis already evicted are not counted")
}

func TestSessionRepository_CorruptHash(t *testing.T) {
	repo, mini := newRepo(t)
	mini.HSet("gk:session:bad", "id", "not-a-ulid", "identity_id", uuid.NewString())

	_, err := repo.GetByTokenHash(context.Background(), "bad")
	authtest.AssertErrorCode(t, err, "SESSION_INVALID_ID")
}

func TestSessionRepository_ServerDown(t *testing.T) {
	ctx := context.Background()
	repo, mini := newRepo(t)
	mini.Close()

	err := repo.Create(ctx, testSession("x", time.Now()))
	authtest.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")

	_, err = repo.GetByTokenHash(ctx, "x")
	authtest.AssertErrorCode(t, err, "SESSION_GET_BY_TOKEN_FAILED")

	_, err = repo.CountActive(ctx, time.Now())
	authtest.AssertErrorCode(t, err, "SESSION_COUNT_FAILED")
}
