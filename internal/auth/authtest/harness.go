// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"io"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

// FastHasher returns an argon2id hasher with minimal cost parameters.
func FastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32})
}

// DiscardLogger returns a logger that writes nothing.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestingT is the subset of testing.TB the helpers need. Both *testing.T and
// GinkgoT() satisfy it.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// Harness wires a Service over in-memory repositories and a manual clock.
type Harness struct {
	Clock       *Clock
	Identities  *Identities
	Sessions    *Sessions
	Audit       *Audit
	Credentials *auth.CredentialStore
	Store       *auth.SessionStore
	Tracker     *auth.Tracker
	Service     *auth.Service
}

// NewHarness builds a Harness with the given policy.
func NewHarness(t TestingT, policy auth.Policy) *Harness {
	t.Helper()

	h := &Harness{
		Clock:      NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		Identities: NewIdentities(),
		Sessions:   NewSessions(),
		Audit:      NewAudit(),
		Tracker:    auth.NewTracker(),
	}
	logger := DiscardLogger()

	var err error
	h.Credentials, err = auth.NewCredentialStore(h.Identities, h.Audit, FastHasher(), auth.CredentialStoreConfig{
		Audit:  auth.DefaultAuditFilter(),
		Clock:  h.Clock.Now,
		Logger: logger,
	})
	require.NoError(t, err)

	h.Store, err = auth.NewSessionStore(h.Sessions, auth.SessionStoreConfig{Clock: h.Clock.Now, Logger: logger})
	require.NoError(t, err)

	h.Service, err = auth.NewService(h.Credentials, h.Store, h.Tracker, policy,
		auth.WithClock(h.Clock.Now), auth.WithLogger(logger))
	require.NoError(t, err)

	return h
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t TestingT, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertKind asserts the error category of an orchestrator error.
func AssertKind(t TestingT, err error, kind auth.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, auth.KindOf(err))
}
