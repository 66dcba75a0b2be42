// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultStorageTimeout bounds every storage call made by the stores.
const DefaultStorageTimeout = 5 * time.Second

// SessionStoreConfig configures a SessionStore.
type SessionStoreConfig struct {
	// Timeout bounds each repository call. Defaults to DefaultStorageTimeout.
	Timeout time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// SessionStore issues and validates origin-pinned sessions and keeps an
// in-memory index of the latest token hash per identity.
// The index is a cache; the repository is authoritative.
type SessionStore struct {
	repo    SessionRepository
	timeout time.Duration
	clock   func() time.Time
	logger  *slog.Logger

	mu    sync.RWMutex
	index map[uuid.UUID]string

	sweeping atomic.Bool
}

// NewSessionStore creates a SessionStore over repo.
func NewSessionStore(repo SessionRepository, cfg SessionStoreConfig) (*SessionStore, error) {
	if repo == nil {
		return nil, oops.Code("SESSION_STORE_INVALID").Errorf("session repository is required")
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
	return &SessionStore{
		repo:    repo,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		index:   make(map[uuid.UUID]string),
	}, nil
}

// Issue persists a new session for token and records it in the index.
// Earlier sessions of the identity stay valid.
func (s *SessionStore) Issue(ctx context.Context, id uuid.UUID, origin, token string, expiresAt time.Time) error {
	tokenHash := HashSessionToken(token)
	session, err := NewSession(id, origin, tokenHash, s.clock(), expiresAt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Create(ctx, session); err != nil {
		return oops.Code("SESSION_ISSUE_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}

	s.remember(id, tokenHash)
	return nil
}

// IsValid reports whether token is an active, unexpired session of id issued to origin.
func (s *SessionStore) IsValid(ctx context.Context, id uuid.UUID, origin, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.validHash(ctx, id, origin, HashSessionToken(token))
}

func (s *SessionStore) validHash(ctx context.Context, id uuid.UUID, origin, tokenHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.repo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("SESSION_VALIDATE_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}
	return session.IdentityID == id && session.ValidAt(origin, s.clock()), nil
}

// Restore reports whether a reconnecting identity holds a valid session for origin.
// The indexed token is checked first; on a miss the newest active session
// for (id, origin) in storage is used and the index is warmed.
func (s *SessionStore) Restore(ctx context.Context, id uuid.UUID, origin string) (bool, error) {
	if tokenHash, ok := s.lookup(id); ok {
		valid, err := s.validHash(ctx, id, origin, tokenHash)
		if err != nil {
			return false, err
		}
		if valid {
			return true, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.repo.LatestActive(ctx, id, origin, s.clock())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("SESSION_RESTORE_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}

	s.remember(id, session.TokenHash)
	return true, nil
}

// DeactivateAll marks every session of id inactive and drops its index entry.
// Calling it again is a no-op.
func (s *SessionStore) DeactivateAll(ctx context.Context, id uuid.UUID) error {
	s.forget(id)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.DeactivateAll(ctx, id)
	if err != nil {
		return oops.Code("SESSION_DEACTIVATE_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}
	s.logger.Debug("sessions deactivated", "identity_id", id.String(), "count", n)
	return nil
}

// Sweep deletes expired sessions and returns how many were removed.
// A call made while another sweep is running returns (0, nil) immediately.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.sweeping.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.DeleteExpired(ctx, s.clock())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}

// CountActive returns the number of active, unexpired sessions in storage.
func (s *SessionStore) CountActive(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.CountActive(ctx, s.clock())
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

// Indexed returns the number of identities with an indexed token.
func (s *SessionStore) Indexed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func (s *SessionStore) lookup(id uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.index[id]
	return h, ok
}

func (s *SessionStore) remember(id uuid.UUID, tokenHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[id] = tokenHash
}

func (s *SessionStore) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, id)
}
