// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker records which connected identities are authenticated and which
// have a pending challenge. It is safe for concurrent use. Nothing here is persisted.
type Tracker struct {
	mu            sync.RWMutex
	authenticated map[uuid.UUID]struct{}
	challenges    map[uuid.UUID]string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		authenticated: make(map[uuid.UUID]struct{}),
		challenges:    make(map[uuid.UUID]string),
	}
}

// IsAuthenticated reports whether id is authenticated. Unknown ids are not.
func (t *Tracker) IsAuthenticated(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.authenticated[id]
	return ok
}

// MarkAuthenticated marks id as authenticated.
func (t *Tracker) MarkAuthenticated(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authenticated[id] = struct{}{}
}

// Clear drops the authenticated flag and any pending challenge for id.
func (t *Tracker) Clear(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.authenticated, id)
	delete(t.challenges, id)
}

// Count returns the number of authenticated identities.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.authenticated)
}

// SetChallenge records a pending challenge code for id.
func (t *Tracker) SetChallenge(id uuid.UUID, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.challenges[id] = code
}

// Challenge returns the pending challenge code for id, if any.
func (t *Tracker) Challenge(id uuid.UUID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	code, ok := t.challenges[id]
	return code, ok
}

// ClearChallenge drops the pending challenge for id.
func (t *Tracker) ClearChallenge(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.challenges, id)
}
