// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MaxDisplayNameLength bounds the display name reported by the host.
const MaxDisplayNameLength = 32

// Identity is the durable credential record bound to one player account.
// PasswordHash and Salt are always written together.
type Identity struct {
	ID             uuid.UUID
	DisplayName    string
	PasswordHash   string
	Salt           string
	Email          *string
	LastOrigin     string
	RegisteredAt   time.Time
	LastLoginAt    *time.Time
	Verified       bool
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLockedAt reports whether the identity is locked at the given instant.
func (i *Identity) IsLockedAt(now time.Time) bool {
	return IsLockedOut(i.LockedUntil, now)
}

// ValidateDisplayName checks the display name the host reports for a connection.
// Names must be 1 to MaxDisplayNameLength runes with no whitespace or control characters.
func ValidateDisplayName(name string) error {
	if name == "" {
		return oops.Code("AUTH_INVALID_DISPLAY_NAME").Errorf("display name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return oops.Code("AUTH_INVALID_DISPLAY_NAME").
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return oops.Code("AUTH_INVALID_DISPLAY_NAME").
				Errorf("display name cannot contain whitespace or control characters")
		}
	}
	return nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity.
	// Returns ErrAlreadyExists if a record with the same ID exists.
	Create(ctx context.Context, identity *Identity) error

	// Get retrieves an identity by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Identity, error)

	// Exists reports whether a record exists for the ID.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// RecordLogin stamps a successful login: last login time and origin,
	// failed-attempt counter reset to zero, lock cleared.
	RecordLogin(ctx context.Context, id uuid.UUID, origin string, at time.Time) error

	// IncrementFailedAttempts atomically increments the counter and returns the new value.
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// SetLockedUntil sets or clears (nil) the lock timestamp.
	SetLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error

	// UpdateCredential replaces hash and salt in a single write.
	UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash, salt string) error

	// Count returns the number of registered identities.
	Count(ctx context.Context) (int64, error)
}
