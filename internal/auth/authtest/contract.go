// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

// contractEpoch is millisecond aligned so every backend round-trips it exactly.
var contractEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// IdentityRepositoryContract runs the behaviour every IdentityRepository must share.
// newRepo must return a repository over empty storage.
func IdentityRepositoryContract(t *testing.T, newRepo func(t *testing.T) auth.IdentityRepository) {
	ctx := context.Background()

	newIdentity := func() *auth.Identity {
		return &auth.Identity{
			ID:           uuid.New(),
			DisplayName:  "P1",
			PasswordHash: "hash",
			Salt:         "salt",
			LastOrigin:   "10.0.0.1",
			RegisteredAt: contractEpoch,
		}
	}

	t.Run("create then get", func(t *testing.T) {
		repo := newRepo(t)
		email := "p1@example.com"
		identity := newIdentity()
		identity.Email = &email
		require.NoError(t, repo.Create(ctx, identity))

		got, err := repo.Get(ctx, identity.ID)
		require.NoError(t, err)
		assert.Equal(t, identity.ID, got.ID)
		assert.Equal(t, "P1", got.DisplayName)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Equal(t, "salt", got.Salt)
		require.NotNil(t, got.Email)
		assert.Equal(t, email, *got.Email)
		assert.WithinDuration(t, contractEpoch, got.RegisteredAt, 0)
		assert.Nil(t, got.LastLoginAt)
		assert.Nil(t, got.LockedUntil)
		assert.Zero(t, got.FailedAttempts)
	})

	t.Run("duplicate create is ErrAlreadyExists", func(t *testing.T) {
		repo := newRepo(t)
		identity := newIdentity()
		require.NoError(t, repo.Create(ctx, identity))

		dup := *identity
		dup.PasswordHash = "other"
		require.ErrorIs(t, repo.Create(ctx, &dup), auth.ErrAlreadyExists)

		got, err := repo.Get(ctx, identity.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)
	})

	t.Run("absent identity", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()

		_, err := repo.Get(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)

		ok, err := repo.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.IncrementFailedAttempts(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
		require.ErrorIs(t, repo.UpdateCredential(ctx, id, "h", "s"), auth.ErrNotFound)
		require.ErrorIs(t, repo.RecordLogin(ctx, id, "o", contractEpoch), auth.ErrNotFound)
	})

	t.Run("failure counter, lock and login stamp", func(t *testing.T) {
		repo := newRepo(t)
		identity := newIdentity()
		require.NoError(t, repo.Create(ctx, identity))

		for want := 1; want <= 3; want++ {
			n, err := repo.IncrementFailedAttempts(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		until := contractEpoch.Add(5 * time.Minute)
		require.NoError(t, repo.SetLockedUntil(ctx, identity.ID, &until))

		got, err := repo.Get(ctx, identity.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.FailedAttempts)
		require.NotNil(t, got.LockedUntil)
		assert.WithinDuration(t, until, *got.LockedUntil, 0)

		at := contractEpoch.Add(time.Hour)
		require.NoError(t, repo.RecordLogin(ctx, identity.ID, "10.9.9.9", at))
		got, err = repo.Get(ctx, identity.ID)
		require.NoError(t, err)
		assert.Zero(t, got.FailedAttempts)
		assert.Nil(t, got.LockedUntil)
		assert.Equal(t, "10.9.9.9", got.LastOrigin)
		require.NotNil(t, got.LastLoginAt)
		assert.WithinDuration(t, at, *got.LastLoginAt, 0)
	})

	t.Run("update credential and count", func(t *testing.T) {
		repo := newRepo(t)
		a, b := newIdentity(), newIdentity()
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, repo.Create(ctx, b))

		require.NoError(t, repo.UpdateCredential(ctx, a.ID, "new-hash", "new-salt"))
		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)
		assert.Equal(t, "new-salt", got.Salt)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

// SessionRepositoryContract runs the behaviour every SessionRepository must share.
// newRepo must return a repository over empty storage.
func SessionRepositoryContract(t *testing.T, newRepo func(t *testing.T) auth.SessionRepository) {
	ctx := context.Background()

	newSession := func(identityID uuid.UUID, origin, hash string, created time.Time, ttl time.Duration) *auth.Session {
		return &auth.Session{
			ID:         ulid.Make(),
			IdentityID: identityID,
			Origin:     origin,
			TokenHash:  hash,
			CreatedAt:  created,
			ExpiresAt:  created.Add(ttl),
			Active:     true,
		}
	}

	t.Run("create then get by token hash", func(t *testing.T) {
		repo := newRepo(t)
		s := newSession(uuid.New(), "o", "hash-a", contractEpoch, time.Hour)
		require.NoError(t, repo.Create(ctx, s))

		got, err := repo.GetByTokenHash(ctx, "hash-a")
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.IdentityID, got.IdentityID)
		assert.Equal(t, "o", got.Origin)
		assert.True(t, got.Active)
		assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, 0)

		_, err = repo.GetByTokenHash(ctx, "missing")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("latest active honours origin, expiry and order", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "old", contractEpoch, time.Hour)))
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "new", contractEpoch.Add(time.Minute), time.Hour)))
		require.NoError(t, repo.Create(ctx, newSession(id, "elsewhere", "other", contractEpoch.Add(2*time.Minute), time.Hour)))

		got, err := repo.LatestActive(ctx, id, "o", contractEpoch.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "new", got.TokenHash)

		_, err = repo.LatestActive(ctx, id, "o", contractEpoch.Add(2*time.Hour))
		require.ErrorIs(t, err, auth.ErrNotFound, "expired sessions never qualify")

		_, err = repo.LatestActive(ctx, uuid.New(), "o", contractEpoch)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("deactivate all is idempotent and scoped", func(t *testing.T) {
		repo := newRepo(t)
		id, other := uuid.New(), uuid.New()
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "a", contractEpoch, time.Hour)))
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "b", contractEpoch, time.Hour)))
		require.NoError(t, repo.Create(ctx, newSession(other, "o", "c", contractEpoch, time.Hour)))

		n, err := repo.DeactivateAll(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.DeactivateAll(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := repo.GetByTokenHash(ctx, "a")
		require.NoError(t, err)
		assert.False(t, got.Active)

		_, err = repo.LatestActive(ctx, id, "o", contractEpoch)
		require.ErrorIs(t, err, auth.ErrNotFound)

		active, err := repo.CountActive(ctx, contractEpoch)
		require.NoError(t, err)
		assert.Equal(t, int64(1), active)
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "short", contractEpoch, time.Minute)))
		require.NoError(t, repo.Create(ctx, newSession(id, "o", "long", contractEpoch, time.Hour)))

		n, err := repo.DeleteExpired(ctx, contractEpoch.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "expiry at exactly now is expired")

		n, err = repo.DeleteExpired(ctx, contractEpoch.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = repo.GetByTokenHash(ctx, "long")
		require.NoError(t, err)
	})
}

// AuditRepositoryContract checks that entries with and without an identity append.
func AuditRepositoryContract(t *testing.T, newRepo func(t *testing.T) auth.AuditRepository) {
	ctx := context.Background()
	repo := newRepo(t)
	id := uuid.New()

	require.NoError(t, repo.Append(ctx, &auth.AuditEntry{
		ID: ulid.Make(), IdentityID: &id, DisplayName: "P1",
		Action: auth.ActionRegister, Origin: "o", Timestamp: contractEpoch,
	}))
	require.NoError(t, repo.Append(ctx, &auth.AuditEntry{
		ID: ulid.Make(), Action: auth.ActionLoginFailed, Detail: "unknown identity", Timestamp: contractEpoch,
	}))
}
