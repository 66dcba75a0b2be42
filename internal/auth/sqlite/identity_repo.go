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
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

type identityRow struct {
	ID             string         `db:"id"`
	DisplayName    string         `db:"display_name"`
	PasswordHash   string         `db:"password_hash"`
	Salt           string         `db:"salt"`
	Email          sql.NullString `db:"email"`
	LastOrigin     string         `db:"last_origin"`
	RegisteredAt   int64          `db:"registered_at"`
	LastLoginAt    sql.NullInt64  `db:"last_login_at"`
	Verified       bool           `db:"verified"`
	FailedAttempts int            `db:"failed_attempts"`
	LockedUntil    sql.NullInt64  `db:"locked_until"`
}

func (r identityRow) toIdentity() (*auth.Identity, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("operation", "parse identity id").
			With("id", r.ID).
			Wrap(err)
	}
	identity := &auth.Identity{
		ID:             id,
		DisplayName:    r.DisplayName,
		PasswordHash:   r.PasswordHash,
		Salt:           r.Salt,
		LastOrigin:     r.LastOrigin,
		RegisteredAt:   fromMillis(r.RegisteredAt),
		LastLoginAt:    timePtr(r.LastLoginAt),
		Verified:       r.Verified,
		FailedAttempts: r.FailedAttempts,
		LockedUntil:    timePtr(r.LockedUntil),
	}
	if r.Email.Valid {
		email := r.Email.String
		identity.Email = &email
	}
	return identity, nil
}

// IdentityRepository implements auth.IdentityRepository on SQLite.
type IdentityRepository struct {
	db    *sqlx.DB
	table string
}

// NewIdentityRepository creates a new IdentityRepository over tables.Users.
func NewIdentityRepository(db *sqlx.DB, tables auth.Tables) *IdentityRepository {
	return &IdentityRepository{db: db, table: tables.Users}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	row := identityRow{
		ID:             identity.ID.String(),
		DisplayName:    identity.DisplayName,
		PasswordHash:   identity.PasswordHash,
		Salt:           identity.Salt,
		LastOrigin:     identity.LastOrigin,
		RegisteredAt:   toMillis(identity.RegisteredAt),
		LastLoginAt:    nullMillis(identity.LastLoginAt),
		Verified:       identity.Verified,
		FailedAttempts: identity.FailedAttempts,
		LockedUntil:    nullMillis(identity.LockedUntil),
	}
	if identity.Email != nil {
		row.Email = sql.NullString{String: *identity.Email, Valid: true}
	}

	_, err := r.db.NamedExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, display_name, password_hash, salt, email, last_origin,
			registered_at, last_login_at, verified, failed_attempts, locked_until
		) VALUES (
			:id, :display_name, :password_hash, :salt, :email, :last_origin,
			:registered_at, :last_login_at, :verified, :failed_attempts, :locked_until
		)`, r.table), row)
	if isConstraintViolation(err) {
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
	var row identityRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
		SELECT id, display_name, password_hash, salt, email, last_origin,
		       registered_at, last_login_at, verified, failed_attempts, locked_until
		FROM %s
		WHERE id = ?`, r.table), id.String())
	if errors.Is(err, sql.ErrNoRows) {
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
	return row.toIdentity()
}

// Exists reports whether a record exists for the ID.
func (r *IdentityRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, r.table), id.String())
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
		UPDATE %s SET last_login_at = ?, last_origin = ?, failed_attempts = 0, locked_until = NULL
		WHERE id = ?`, r.table), toMillis(at), origin, id.String())
}

// IncrementFailedAttempts bumps the counter in one statement and returns the new value.
func (r *IdentityRepository) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, fmt.Sprintf(`
		UPDATE %s SET failed_attempts = failed_attempts + 1
		WHERE id = ?
		RETURNING failed_attempts`, r.table), id.String())
	if errors.Is(err, sql.ErrNoRows) {
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
		fmt.Sprintf(`UPDATE %s SET locked_until = ? WHERE id = ?`, r.table),
		nullMillis(until), id.String())
}

// UpdateCredential replaces hash and salt together.
func (r *IdentityRepository) UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash, salt string) error {
	return r.execOne(ctx, "update credential", id,
		fmt.Sprintf(`UPDATE %s SET password_hash = ?, salt = ? WHERE id = ?`, r.table),
		passwordHash, salt, id.String())
}

// Count returns the number of registered identities.
func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)); err != nil {
		return 0, oops.Code("IDENTITY_COUNT_FAILED").
			With("operation", "count identities").
			Wrap(err)
	}
	return n, nil
}

func (r *IdentityRepository) execOne(ctx context.Context, operation string, id uuid.UUID, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
