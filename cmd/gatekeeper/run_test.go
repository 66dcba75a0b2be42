// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth/authtest"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/store"
)

func TestRun_ConsoleSession(t *testing.T) {
	path := writeTestConfig(t, "")
	id := uuid.New().String()

	script := strings.Join([]string{
		"connect " + id + " Alice 10.0.0.1",
		"chat " + id + " hello",
		"cmd " + id + " reg " + goodPassword + " " + goodPassword,
		"chat " + id + " hello",
		"admin " + id + " gatekeeper stats",
		"",
	}, "\n")

	out, _, err := execute(t, script, "--config", path, "run")
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"[Alice] Welcome, Alice! Register with: register <password> <password>",
		"[Alice] You must log in first.",
		"[Alice] Registration complete. You are logged in.",
		"[Alice] allowed",
		"[Alice] Logged in: 1, registered: 1, active sessions: 1",
		"",
	}, "\n"), out)
}

func TestRun_SessionSurvivesRestart(t *testing.T) {
	path := writeTestConfig(t, "")
	id := uuid.New().String()

	first := "connect " + id + " Bob 10.0.0.2\n" +
		"cmd " + id + " register " + goodPassword + " " + goodPassword + "\n"
	_, _, err := execute(t, first, "--config", path, "run")
	require.NoError(t, err)

	out, _, err := execute(t, "connect "+id+" Bob 10.0.0.2\n", "--config", path, "run")
	require.NoError(t, err)
	assert.Equal(t, "[Bob] Session restored. Welcome back, Bob!\n", out)

	out, _, err = execute(t, "connect "+id+" Bob 10.0.0.99\n", "--config", path, "run")
	require.NoError(t, err)
	assert.Equal(t, "[Bob] Welcome back, Bob! Log in with: login <password>\n", out,
		"a new origin must not restore the session")
}

func TestRun_RussianReplies(t *testing.T) {
	path := writeTestConfig(t, "language: ru\n")
	id := uuid.New().String()

	out, _, err := execute(t, "connect "+id+" Ivan 10.0.0.3\nchat "+id+" hi\n", "--config", path, "run")
	require.NoError(t, err)
	assert.NotContains(t, out, "You must log in first.")
	assert.Contains(t, out, "[Ivan] ")
}

func TestRun_NoMigrateOnFreshDatabase(t *testing.T) {
	path := writeTestConfig(t, "")
	id := uuid.New().String()

	out, _, err := execute(t, "connect "+id+" Eve 10.0.0.4\n", "--config", path, "run", "--no-migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "A server error occurred.", "missing tables surface as a server error reply")
}

func TestRunWithDeps_RegistersMetrics(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	configFile = writeTestConfig(t, "metrics_addr: 127.0.0.1:0\n")
	t.Cleanup(func() { configFile = "" })

	id := uuid.New().String()
	cmd := &cobra.Command{}
	config.RegisterFlags(cmd.Flags())
	cmd.SetIn(strings.NewReader("connect " + id + " Mia 10.0.0.5\ncmd " + id + " help\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	var captured *observability.Server
	deps := &RunDeps{
		ObservabilityServerFactory: func(addr string, ready observability.ReadinessChecker) *observability.Server {
			captured = observability.NewServer(addr, ready)
			return captured
		},
	}
	require.NoError(t, runWithDeps(context.Background(), &runOptions{}, cmd, deps))
	require.NotNil(t, captured)

	families, err := captured.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"gatekeeper_command_executions_total",
		"gatekeeper_connection_events_total",
		"gatekeeper_authenticated_identities",
		"gatekeeper_throttle_identities",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
	assert.Contains(t, out.String(), "[Mia] Commands:")
}

func TestRunWithDeps_BackendFailure(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	configFile = writeTestConfig(t, "")
	t.Cleanup(func() { configFile = "" })

	cmd := &cobra.Command{}
	config.RegisterFlags(cmd.Flags())
	cmd.SetErr(io.Discard)

	deps := &RunDeps{
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return nil, errors.New("connection refused")
		},
		Stdin: strings.NewReader(""),
	}
	err := runWithDeps(context.Background(), &runOptions{}, cmd, deps)
	authtest.AssertErrorCode(t, err, "STORAGE_OPEN_FAILED")
}

func TestApp_Reload(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	backend, err := store.Open(context.Background(), cfg.StoreConfig(true), authtest.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	a, err := newApp(cfg, backend, nil, authtest.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)
	a.configPath = path

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(body, []byte("auth:\n  max_login_attempts: 9\n")...), 0o600))

	require.NoError(t, a.reload(context.Background()))
	assert.Equal(t, 9, a.service.Policy().MaxLoginAttempts)

	require.NoError(t, os.WriteFile(path, append(body, []byte("language: de\n")...), 0o600))
	require.Error(t, a.reload(context.Background()))
	assert.Equal(t, 9, a.service.Policy().MaxLoginAttempts, "a failed reload keeps the current policy")
}

func TestApp_UnknownHashAlgorithm(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "x.db")
	cfg.Security.HashAlgorithm = "md5"

	_, err := newApp(cfg, &store.Backend{}, nil, authtest.DiscardLogger())
	authtest.AssertErrorCode(t, err, "AUTH_UNKNOWN_ALGORITHM")
}
