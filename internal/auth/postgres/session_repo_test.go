// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

var sessionCols = []string{"id", "identity_id", "origin", "token_hash", "created_at", "expires_at", "active"}

func TestSessionRepository_Create(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := &auth.Session{
		ID:         ulid.Make(),
		IdentityID: uuid.New(),
		Origin:     "10.0.0.1",
		TokenHash:  "abc",
		CreatedAt:  created,
		ExpiresAt:  created.Add(time.Hour),
		Active:     true,
	}

	t.Run("inserts", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.IdentityID.String(), "10.0.0.1", "abc",
				created, created.Add(time.Hour), true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSessionRepository(mock, auth.TablesWithPrefix("")).Create(context.Background(), session))
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		err := NewSessionRepository(mock, auth.TablesWithPrefix("")).Create(context.Background(), session)
		assertCode(t, err, "SESSION_CREATE_FAILED")
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	id := ulid.Make()
	identityID := uuid.New()
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM sessions\s+WHERE token_hash = \$1`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(sessionCols).
				AddRow(id.String(), identityID.String(), "o", "abc", created, created.Add(time.Hour), true))

		got, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).GetByTokenHash(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, identityID, got.IdentityID)
		assert.True(t, got.Active)
	})

	t.Run("absent", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM sessions`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(sessionCols))

		_, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).GetByTokenHash(context.Background(), "abc")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt identity id", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM sessions`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(sessionCols).
				AddRow(id.String(), "bogus", "o", "abc", created, created.Add(time.Hour), true))

		_, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).GetByTokenHash(context.Background(), "abc")
		assertCode(t, err, "SESSION_INVALID_IDENTITY_ID")
	})
}

func TestSessionRepository_LatestActive(t *testing.T) {
	identityID := uuid.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("filters by origin, activity and expiry", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE identity_id = \$1 AND origin = \$2 AND active AND expires_at > \$3\s+ORDER BY created_at DESC\s+LIMIT 1`).
			WithArgs(identityID.String(), "o", now).
			WillReturnRows(pgxmock.NewRows(sessionCols).
				AddRow(ulid.Make().String(), identityID.String(), "o", "h", now, now.Add(time.Hour), true))

		got, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).LatestActive(context.Background(), identityID, "o", now)
		require.NoError(t, err)
		assert.Equal(t, "h", got.TokenHash)
	})

	t.Run("none qualifies", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM sessions`).
			WithArgs(identityID.String(), "o", now).
			WillReturnRows(pgxmock.NewRows(sessionCols))

		_, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).LatestActive(context.Background(), identityID, "o", now)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Maintenance(t *testing.T) {
	ctx := context.Background()
	identityID := uuid.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deactivate all reports changed rows", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE gk_sessions SET active = FALSE WHERE identity_id = \$1 AND active`).
			WithArgs(identityID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectExec(`UPDATE gk_sessions SET active = FALSE`).
			WithArgs(identityID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewSessionRepository(mock, auth.TablesWithPrefix("gk_"))
		n, err := repo.DeactivateAll(ctx, identityID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.DeactivateAll(ctx, identityID)
		require.NoError(t, err, "no rows changed is not an error")
		assert.Zero(t, n)
	})

	t.Run("delete expired", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
			WithArgs(now).
			WillReturnResult(pgxmock.NewResult("DELETE", 5))

		n, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("delete expired error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM sessions`).
			WithArgs(now).
			WillReturnError(errors.New("read-only transaction"))

		_, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).DeleteExpired(ctx, now)
		assertCode(t, err, "SESSION_DELETE_EXPIRED_FAILED")
	})

	t.Run("count active", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions WHERE active AND expires_at > \$1`).
			WithArgs(now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

		n, err := NewSessionRepository(mock, auth.TablesWithPrefix("")).CountActive(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})
}
