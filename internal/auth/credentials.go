// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CredentialStoreConfig configures a CredentialStore.
type CredentialStoreConfig struct {
	// Timeout bounds each repository call. Defaults to DefaultStorageTimeout.
	Timeout time.Duration
	// Audit selects which entries Append writes. The zero value writes nothing.
	Audit AuditFilter
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// CredentialStore owns identity records and the audit trail.
type CredentialStore struct {
	identities IdentityRepository
	audit      AuditRepository
	hasher     PasswordHasher
	timeout    time.Duration
	filter     AuditFilter
	clock      func() time.Time
	logger     *slog.Logger
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(identities IdentityRepository, audit AuditRepository, hasher PasswordHasher, cfg CredentialStoreConfig) (*CredentialStore, error) {
	if identities == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("identity repository is required")
	}
	if audit == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("audit repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("password hasher is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStorageTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CredentialStore{
		identities: identities,
		audit:      audit,
		hasher:     hasher,
		timeout:    cfg.Timeout,
		filter:     cfg.Audit,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}, nil
}

func (c *CredentialStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Exists reports whether an identity record exists.
func (c *CredentialStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	ok, err := c.identities.Exists(ctx, id)
	if err != nil {
		return false, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return ok, nil
}

// Get loads an identity record. Returns ErrNotFound if absent.
func (c *CredentialStore) Get(ctx context.Context, id uuid.UUID) (*Identity, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	identity, err := c.identities.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return identity, nil
}

// Register creates a new identity with a fresh salt.
// Returns false without writing when the identity already exists.
func (c *CredentialStore) Register(ctx context.Context, id uuid.UUID, displayName, origin, password string) (bool, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return false, err
	}
	hash, err := c.hasher.Hash(password, salt)
	if err != nil {
		return false, cryptoError("hash password").Wrap(err)
	}

	identity := &Identity{
		ID:           id,
		DisplayName:  displayName,
		PasswordHash: hash,
		Salt:         salt,
		LastOrigin:   origin,
		RegisteredAt: c.clock(),
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, oops.Code("CREDENTIAL_REGISTER_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return true, nil
}

// VerifyPassword checks password against the stored credential.
// An absent record verifies as false.
func (c *CredentialStore) VerifyPassword(ctx context.Context, id uuid.UUID, password string) (bool, error) {
	identity, err := c.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.Check(identity, password)
}

// Check verifies password against an already loaded identity.
func (c *CredentialStore) Check(identity *Identity, password string) (bool, error) {
	ok, err := c.hasher.Verify(password, identity.Salt, identity.PasswordHash)
	if err != nil {
		return false, cryptoError("verify password").With("identity_id", identity.ID.String()).Wrap(err)
	}
	return ok, nil
}

// NeedsUpgrade reports whether the stored credential should be re-derived.
func (c *CredentialStore) NeedsUpgrade(identity *Identity) bool {
	return c.hasher.NeedsUpgrade(identity.PasswordHash)
}

// RecordLogin stamps a successful login and clears the failure counter and lock.
func (c *CredentialStore) RecordLogin(ctx context.Context, id uuid.UUID, origin string) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.identities.RecordLogin(ctx, id, origin, c.clock()); err != nil {
		return oops.Code("CREDENTIAL_RECORD_LOGIN_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return nil
}

// IncrementFailedAttempts bumps the failure counter and returns the new value.
func (c *CredentialStore) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	n, err := c.identities.IncrementFailedAttempts(ctx, id)
	if err != nil {
		return 0, oops.Code("CREDENTIAL_INCREMENT_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return n, nil
}

// GetFailedAttempts returns the current failure counter; zero for an absent record.
func (c *CredentialStore) GetFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	identity, err := c.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return identity.FailedAttempts, nil
}

// Lock sets the lock timestamp; nil clears it.
func (c *CredentialStore) Lock(ctx context.Context, id uuid.UUID, until *time.Time) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.identities.SetLockedUntil(ctx, id, until); err != nil {
		return oops.Code("CREDENTIAL_LOCK_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return nil
}

// ChangePassword writes a new salt and hash together.
func (c *CredentialStore) ChangePassword(ctx context.Context, id uuid.UUID, password string) error {
	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := c.hasher.Hash(password, salt)
	if err != nil {
		return cryptoError("hash password").Wrap(err)
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.identities.UpdateCredential(ctx, id, hash, salt); err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").With("identity_id", id.String()).Wrap(err)
	}
	return nil
}

// Count returns the number of registered identities.
func (c *CredentialStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	n, err := c.identities.Count(ctx)
	if err != nil {
		return 0, oops.Code("CREDENTIAL_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

// Append writes an audit entry unless the audit filter excludes its action.
// ID and Timestamp are filled in when zero.
func (c *CredentialStore) Append(ctx context.Context, entry AuditEntry) error {
	if !c.filter.Allows(entry.Action) {
		return nil
	}
	if entry.ID == (ulid.ULID{}) {
		entry.ID = ulid.Make()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.clock()
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.audit.Append(ctx, &entry); err != nil {
		return oops.Code("AUDIT_APPEND_FAILED").With("action", entry.Action).Wrap(err)
	}
	return nil
}
