// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/telnet"
)

func TestConsole_Script(t *testing.T) {
	gw, h := newGateway(t)
	console := telnet.NewConsole(gw, english(), nil)
	id := uuid.New().String()

	script := strings.Join([]string{
		"# comment lines are skipped",
		"connect " + id + " P1 10.0.0.1",
		"chat " + id + " hello",
		"cmd " + id + " register " + goodPassword + " " + goodPassword,
		"chat " + id + " hello",
		"cmd " + id + " gatekeeper stats",
		"admin " + id + " gatekeeper stats",
		"disconnect " + id,
		"chat " + id + " hello",
		"",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, console.Run(context.Background(), strings.NewReader(script), &out))

	assert.Equal(t, strings.Join([]string{
		"[P1] Welcome, P1! Register with: register <password> <password>",
		"[P1] You must log in first.",
		"[P1] Registration complete. You are logged in.",
		"[P1] allowed",
		"[P1] You do not have permission to do that.",
		"[P1] Logged in: 1, registered: 1, active sessions: 1",
		"[P1] disconnected",
		"error: not connected: " + id,
		"",
	}, "\n"), out.String())
	assert.Zero(t, h.Tracker.Count())
}

func TestConsole_Errors(t *testing.T) {
	gw, _ := newGateway(t)
	console := telnet.NewConsole(gw, english(), nil)
	ctx := context.Background()
	id := uuid.New().String()

	tests := []struct {
		line string
		want string
	}{
		{"chat not-a-uuid", "error: expected a uuid after chat\n"},
		{"connect " + id + " OnlyName", "error: usage: connect <uuid> <name> <origin>\n"},
		{"cmd " + id + " login x", "error: not connected: " + id + "\n"},
		{"", ""},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		console.Exec(ctx, tt.line, &out)
		assert.Equal(t, tt.want, out.String(), tt.line)
	}

	var out bytes.Buffer
	console.Exec(ctx, "connect "+id+" P1 10.0.0.1", &out)
	out.Reset()
	console.Exec(ctx, "dance "+id, &out)
	assert.Equal(t, "error: unknown console verb dance\n", out.String())
}

func TestConsole_RunDisconnectsOnEOF(t *testing.T) {
	gw, h := newGateway(t)
	console := telnet.NewConsole(gw, english(), nil)
	id := uuid.New().String()

	script := "connect " + id + " P1 10.0.0.1\ncmd " + id + " register " + goodPassword + "\n"
	var out bytes.Buffer
	require.NoError(t, console.Run(context.Background(), strings.NewReader(script), &out))

	assert.Zero(t, h.Tracker.Count())
}
