// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
)

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	store, repo, clock := newSessionStore(t)
	require.NoError(t, store.Issue(ctx, uuid.New(), "o", "a", clock.Now().Add(time.Minute)))
	require.NoError(t, store.Issue(ctx, uuid.New(), "o", "b", clock.Now().Add(time.Hour)))
	clock.Advance(5 * time.Minute)

	sweeper := auth.NewSweeper(store, time.Hour, authtest.DiscardLogger())
	n, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.All(), 1)

	repo.FailOn("DeleteExpired", errors.New("read-only transaction"))
	_, err = sweeper.RunOnce(ctx)
	require.Error(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store, repo, clock := newSessionStore(t)
	require.NoError(t, store.Issue(ctx, uuid.New(), "o", "a", clock.Now().Add(time.Minute)))
	clock.Advance(time.Hour)

	sweeper := auth.NewSweeper(store, 10*time.Millisecond, authtest.DiscardLogger())
	sweeper.Start(ctx)

	assert.Eventually(t, func() bool { return len(repo.All()) == 0 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	store, _, _ := newSessionStore(t)
	sweeper := auth.NewSweeper(store, 0, nil)
	sweeper.Stop()
}

func TestSweeper_StopsWhenContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, _, _ := newSessionStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := auth.NewSweeper(store, time.Hour, authtest.DiscardLogger())
	sweeper.Start(ctx)
	cancel()
	sweeper.Stop()
}
