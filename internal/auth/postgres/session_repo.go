// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

const sessionColumns = `id, identity_id, origin, token_hash, created_at, expires_at, active`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool  poolIface
	table string
}

// NewSessionRepository creates a new SessionRepository over tables.Sessions.
func NewSessionRepository(pool poolIface, tables auth.Tables) *SessionRepository {
	return &SessionRepository{pool: pool, table: tables.Sessions}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, identity_id, origin, token_hash, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.table),
		session.ID.String(),
		session.IdentityID.String(),
		session.Origin,
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
		session.Active,
	)
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
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE token_hash = $1
	`, sessionColumns, r.table), tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// LatestActive returns the newest active, unexpired session for identityID at origin.
func (r *SessionRepository) LatestActive(ctx context.Context, identityID uuid.UUID, origin string, now time.Time) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE identity_id = $1 AND origin = $2 AND active AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionColumns, r.table), identityID.String(), origin, now)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	return session, nil
}

// DeactivateAll marks every active session of the identity inactive.
func (r *SessionRepository) DeactivateAll(ctx context.Context, identityID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET active = FALSE WHERE identity_id = $1 AND active`, r.table),
		identityID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DEACTIVATE_FAILED").
			With("operation", "deactivate sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	// No ErrNotFound if no rows changed; that is a valid state.
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.table), now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// CountActive returns the number of active, unexpired sessions.
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE active AND expires_at > $1`, r.table), now).Scan(&n)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").
			With("operation", "count active sessions").
			Wrap(err)
	}
	return n, nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr, identityStr string
		session            auth.Session
	)
	err := row.Scan(&idStr, &identityStr, &session.Origin, &session.TokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	identityID, err := uuid.Parse(identityStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").
			With("operation", "parse identity id").
			With("identity_id", identityStr).
			Wrap(err)
	}
	session.ID = id
	session.IdentityID = identityID
	return &session, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
