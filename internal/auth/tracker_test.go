// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestTracker(t *testing.T) {
	tr := auth.NewTracker()
	id := uuid.New()

	assert.False(t, tr.IsAuthenticated(id), "unknown ids default to unauthenticated")

	tr.MarkAuthenticated(id)
	assert.True(t, tr.IsAuthenticated(id))
	assert.Equal(t, 1, tr.Count())

	tr.SetChallenge(id, "ABC123")
	code, ok := tr.Challenge(id)
	assert.True(t, ok)
	assert.Equal(t, "ABC123", code)

	tr.Clear(id)
	assert.False(t, tr.IsAuthenticated(id))
	_, ok = tr.Challenge(id)
	assert.False(t, ok, "Clear drops the challenge")
	assert.Zero(t, tr.Count())
}

func TestTracker_ClearChallenge(t *testing.T) {
	tr := auth.NewTracker()
	id := uuid.New()
	tr.SetChallenge(id, "X")
	tr.ClearChallenge(id)
	_, ok := tr.Challenge(id)
	assert.False(t, ok)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := auth.NewTracker()
	ids := make([]uuid.UUID, 100)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			tr.MarkAuthenticated(id)
		}(id)
		go func(id uuid.UUID) {
			defer wg.Done()
			_ = tr.IsAuthenticated(id)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(ids), tr.Count())
	for _, id := range ids {
		assert.True(t, tr.IsAuthenticated(id))
	}
}
