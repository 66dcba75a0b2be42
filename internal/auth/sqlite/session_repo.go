// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

type sessionRow struct {
	ID         string `db:"id"`
	IdentityID string `db:"identity_id"`
	Origin     string `db:"origin"`
	TokenHash  string `db:"token_hash"`
	CreatedAt  int64  `db:"created_at"`
	ExpiresAt  int64  `db:"expires_at"`
	Active     bool   `db:"active"`
}

func (r sessionRow) toSession() (*auth.Session, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", r.ID).
			Wrap(err)
	}
	identityID, err := uuid.Parse(r.IdentityID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").
			With("operation", "parse identity id").
			With("identity_id", r.IdentityID).
			Wrap(err)
	}
	return &auth.Session{
		ID:         id,
		IdentityID: identityID,
		Origin:     r.Origin,
		TokenHash:  r.TokenHash,
		CreatedAt:  fromMillis(r.CreatedAt),
		ExpiresAt:  fromMillis(r.ExpiresAt),
		Active:     r.Active,
	}, nil
}

const sessionColumns = `id, identity_id, origin, token_hash, created_at, expires_at, active`

// SessionRepository implements auth.SessionRepository on SQLite.
type SessionRepository struct {
	db    *sqlx.DB
	table string
}

// NewSessionRepository creates a new SessionRepository over tables.Sessions.
func NewSessionRepository(db *sqlx.DB, tables auth.Tables) *SessionRepository {
	return &SessionRepository{db: db, table: tables.Sessions}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.NamedExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (:id, :identity_id, :origin, :token_hash, :created_at, :expires_at, :active)`,
		r.table, sessionColumns),
		sessionRow{
			ID:         session.ID.String(),
			IdentityID: session.IdentityID.String(),
			Origin:     session.Origin,
			TokenHash:  session.TokenHash,
			CreatedAt:  toMillis(session.CreatedAt),
			ExpiresAt:  toMillis(session.ExpiresAt),
			Active:     session.Active,
		})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row,
		fmt.Sprintf(`SELECT %s FROM %s WHERE token_hash = ?`, sessionColumns, r.table), tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return row.toSession()
}

// LatestActive returns the newest active, unexpired session for identityID at origin.
func (r *SessionRepository) LatestActive(ctx context.Context, identityID uuid.UUID, origin string, now time.Time) (*auth.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE identity_id = ? AND origin = ? AND active = 1 AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`, sessionColumns, r.table),
		identityID.String(), origin, toMillis(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("identity_id", identityID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_LATEST_FAILED").
			With("operation", "get latest active session").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return row.toSession()
}

// DeactivateAll marks every active session of the identity inactive.
func (r *SessionRepository) DeactivateAll(ctx context.Context, identityID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET active = 0 WHERE identity_id = ? AND active = 1`, r.table),
		identityID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DEACTIVATE_FAILED").
			With("operation", "deactivate sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return rowsAffected(result, "SESSION_DEACTIVATE_FAILED")
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, r.table), toMillis(now))
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return rowsAffected(result, "SESSION_DELETE_EXPIRED_FAILED")
}

// CountActive returns the number of active, unexpired sessions.
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE active = 1 AND expires_at > ?`, r.table), toMillis(now))
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").
			With("operation", "count active sessions").
			Wrap(err)
	}
	return n, nil
}

func rowsAffected(result sql.Result, code string) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.Code(code).With("operation", "rows affected").Wrap(err)
	}
	return n, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
