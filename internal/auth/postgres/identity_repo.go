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
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

const identityColumns = `id, display_name, password_hash, salt, email, last_origin,
		       registered_at, last_login_at, verified, failed_attempts, locked_until`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool  poolIface
	table string
}

// NewIdentityRepository creates a new IdentityRepository over tables.Users.
func NewIdentityRepository(pool poolIface, tables auth.Tables) *IdentityRepository {
	return &IdentityRepository{pool: pool, table: tables.Users}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, display_name, password_hash, salt, email, last_origin,
			registered_at, last_login_at, verified, failed_attempts, locked_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.table),
		identity.ID.String(),
		identity.DisplayName,
		identity.PasswordHash,
		identity.Salt,
		identity.Email,
		identity.LastOrigin,
		identity.RegisteredAt,
		identity.LastLoginAt,
		identity.Verified,
		identity.FailedAttempts,
		identity.LockedUntil,
	)
	if isUniqueViolation(err) {
		return oops.Code("IDENTITY_EXISTS").
			With("id", identity.ID.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("id", identity.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves an identity by ID.
func (r *IdentityRepository) Get(ctx context.Context, id uuid.UUID) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, identityColumns, r.table), id.String())

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity").
			With("id", id.String()).
			Wrap(err)
	}
	return identity, nil
}

// Exists reports whether a record exists for the ID.
func (r *IdentityRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.table),
		id.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("IDENTITY_EXISTS_FAILED").
			With("operation", "check identity").
			With("id", id.String()).
			Wrap(err)
	}
	return exists, nil
}

// RecordLogin stamps a successful login and clears the failure counter and lock.
func (r *IdentityRepository) RecordLogin(ctx context.Context, id uuid.UUID, origin string, at time.Time) error {
	return r.execOne(ctx, "record login", id, fmt.Sprintf(`
		UPDATE %s SET last_login_at = $2, last_origin = $3, failed_attempts = 0, locked_until = NULL
		WHERE id = $1
	`, r.table), id.String(), at, origin)
}

// IncrementFailedAttempts bumps the counter in one statement and returns the new value.
func (r *IdentityRepository) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET failed_attempts = failed_attempts + 1
		WHERE id = $1
		RETURNING failed_attempts
	`, r.table), id.String()).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "increment failed attempts").
			With("id", id.String()).
			Wrap(err)
	}
	return n, nil
}

// SetLockedUntil sets or clears the lock timestamp.
func (r *IdentityRepository) SetLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error {
	return r.execOne(ctx, "set locked until", id,
		fmt.Sprintf(`UPDATE %s SET locked_until = $2 WHERE id = $1`, r.table),
		id.String(), until)
}

// UpdateCredential replaces hash and salt together.
func (r *IdentityRepository) UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash, salt string) error {
	return r.execOne(ctx, "update credential", id,
		fmt.Sprintf(`UPDATE %s SET password_hash = $2, salt = $3 WHERE id = $1`, r.table),
		id.String(), passwordHash, salt)
}

// Count returns the number of registered identities.
func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, oops.Code("IDENTITY_COUNT_FAILED").
			With("operation", "count identities").
			Wrap(err)
	}
	return n, nil
}

func (r *IdentityRepository) execOne(ctx context.Context, operation string, id uuid.UUID, sql string, args ...any) error {
	result, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanIdentity scans a single row into an Identity.
// Callers are responsible for handling pgx.ErrNoRows.
func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr       string
		identity    auth.Identity
		email       *string
		lastLoginAt *time.Time
		lockedUntil *time.Time
	)
	err := row.Scan(
		&idStr,
		&identity.DisplayName,
		&identity.PasswordHash,
		&identity.Salt,
		&email,
		&identity.LastOrigin,
		&identity.RegisteredAt,
		&lastLoginAt,
		&identity.Verified,
		&identity.FailedAttempts,
		&lockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan identity").
			Wrap(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("operation", "parse identity id").
			With("id", idStr).
			Wrap(err)
	}
	identity.ID = id
	identity.Email = email
	identity.LastLoginAt = lastLoginAt
	identity.LockedUntil = lockedUntil
	return &identity, nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
