// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory repositories and helpers for testing
// code built on package auth.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/auth"
)

// failures holds injected errors keyed by method name.
type failures struct {
	mu   sync.Mutex
	errs map[string]error
}

// FailOn makes every later call to method return err. A nil err clears it.
func (f *failures) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

func (f *failures) fail(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

// Identities is an in-memory auth.IdentityRepository.
type Identities struct {
	failures
	mu   sync.Mutex
	rows map[uuid.UUID]auth.Identity
}

// NewIdentities creates an empty repository.
func NewIdentities() *Identities {
	return &Identities{rows: make(map[uuid.UUID]auth.Identity)}
}

var _ auth.IdentityRepository = (*Identities)(nil)

func (r *Identities) Create(_ context.Context, identity *auth.Identity) error {
	if err := r.fail("Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[identity.ID]; ok {
		return auth.ErrAlreadyExists
	}
	r.rows[identity.ID] = *identity
	return nil
}

func (r *Identities) Get(_ context.Context, id uuid.UUID) (*auth.Identity, error) {
	if err := r.fail("Get"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &row, nil
}

func (r *Identities) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	if err := r.fail("Exists"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok, nil
}

func (r *Identities) RecordLogin(_ context.Context, id uuid.UUID, origin string, at time.Time) error {
	if err := r.fail("RecordLogin"); err != nil {
		return err
	}
	return r.update(id, func(row *auth.Identity) {
		row.LastOrigin = origin
		row.LastLoginAt = &at
		row.FailedAttempts = 0
		row.LockedUntil = nil
	})
}

func (r *Identities) IncrementFailedAttempts(_ context.Context, id uuid.UUID) (int, error) {
	if err := r.fail("IncrementFailedAttempts"); err != nil {
		return 0, err
	}
	var n int
	err := r.update(id, func(row *auth.Identity) {
		row.FailedAttempts++
		n = row.FailedAttempts
	})
	return n, err
}

func (r *Identities) SetLockedUntil(_ context.Context, id uuid.UUID, until *time.Time) error {
	if err := r.fail("SetLockedUntil"); err != nil {
		return err
	}
	return r.update(id, func(row *auth.Identity) { row.LockedUntil = until })
}

func (r *Identities) UpdateCredential(_ context.Context, id uuid.UUID, passwordHash, salt string) error {
	if err := r.fail("UpdateCredential"); err != nil {
		return err
	}
	return r.update(id, func(row *auth.Identity) {
		row.PasswordHash = passwordHash
		row.Salt = salt
	})
}

func (r *Identities) Count(_ context.Context) (int64, error) {
	if err := r.fail("Count"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *Identities) update(id uuid.UUID, fn func(*auth.Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(&row)
	r.rows[id] = row
	return nil
}

// Sessions is an in-memory auth.SessionRepository.
type Sessions struct {
	failures
	mu   sync.Mutex
	rows map[string]auth.Session
}

// NewSessions creates an empty repository.
func NewSessions() *Sessions {
	return &Sessions{rows: make(map[string]auth.Session)}
}

var _ auth.SessionRepository = (*Sessions)(nil)

func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	if err := r.fail("Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[session.TokenHash]; ok {
		return auth.ErrAlreadyExists
	}
	r.rows[session.TokenHash] = *session
	return nil
}

func (r *Sessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	if err := r.fail("GetByTokenHash"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &row, nil
}

func (r *Sessions) LatestActive(_ context.Context, identityID uuid.UUID, origin string, now time.Time) (*auth.Session, error) {
	if err := r.fail("LatestActive"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *auth.Session
	for _, row := range r.rows {
		if row.IdentityID != identityID || !row.ValidAt(origin, now) {
			continue
		}
		if best == nil || row.CreatedAt.After(best.CreatedAt) {
			row := row
			best = &row
		}
	}
	if best == nil {
		return nil, auth.ErrNotFound
	}
	return best, nil
}

func (r *Sessions) DeactivateAll(_ context.Context, identityID uuid.UUID) (int64, error) {
	if err := r.fail("DeactivateAll"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, row := range r.rows {
		if row.IdentityID == identityID && row.Active {
			row.Active = false
			r.rows[k] = row
			n++
		}
	}
	return n, nil
}

func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if err := r.fail("DeleteExpired"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, row := range r.rows {
		if !row.ExpiresAt.After(now) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *Sessions) CountActive(_ context.Context, now time.Time) (int64, error) {
	if err := r.fail("CountActive"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.Active && row.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

// All returns every stored session ordered by creation time.
func (r *Sessions) All() []auth.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.Session, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Audit is an in-memory auth.AuditRepository.
type Audit struct {
	failures
	mu      sync.Mutex
	entries []auth.AuditEntry
}

// NewAudit creates an empty audit log.
func NewAudit() *Audit {
	return &Audit{}
}

var _ auth.AuditRepository = (*Audit)(nil)

func (r *Audit) Append(_ context.Context, entry *auth.AuditEntry) error {
	if err := r.fail("Append"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// Actions returns the action tags in append order.
func (r *Audit) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

// Entries returns a copy of the log.
func (r *Audit) Entries() []auth.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.AuditEntry(nil), r.entries...)
}
