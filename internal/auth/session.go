// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes      = 32 // 256 bits, 64 hex chars
	DefaultSessionDuration = time.Hour
)

// Session is a durable, origin-pinned grant that lets a reconnecting
// identity skip the password prompt.
type Session struct {
	ID         ulid.ULID
	IdentityID uuid.UUID
	Origin     string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Active     bool
}

// NewSession creates a validated Session instance.
func NewSession(identityID uuid.UUID, origin, tokenHash string, createdAt, expiresAt time.Time) (*Session, error) {
	if identityID == uuid.Nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity ID cannot be nil")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Session{
		ID:         ulid.Make(),
		IdentityID: identityID,
		Origin:     origin,
		TokenHash:  tokenHash,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Active:     true,
	}, nil
}

// ValidAt reports whether the session admits a connection from origin at now.
func (s *Session) ValidAt(origin string, now time.Time) bool {
	return s.Active && s.ExpiresAt.After(now) && s.Origin == origin
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// Only the hash is persisted.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", cryptoError("generate session token").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)
	return token, hash, nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash
// using constant-time comparison.
func VerifySessionToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session. Prior sessions are left untouched.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash. Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// LatestActive returns the newest active, unexpired session for the identity
	// issued to origin. Returns ErrNotFound if none qualifies.
	LatestActive(ctx context.Context, identityID uuid.UUID, origin string, now time.Time) (*Session, error)

	// DeactivateAll marks every session of the identity inactive and returns
	// the number of rows that changed.
	DeactivateAll(ctx context.Context, identityID uuid.UUID) (int64, error)

	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns the count of deleted records.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// CountActive returns the number of active, unexpired sessions.
	CountActive(ctx context.Context, now time.Time) (int64, error)
}
