// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, _, err := execute(t, "", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"run", "migrate", "sweep", "genpass", "config"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "with equals",
			args:     []string{"--config=/etc/gatekeeper.yaml", "--help"},
			wantFlag: "/etc/gatekeeper.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestConfigPath_DefaultFileOnlyWhenPresent(t *testing.T) {
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.Empty(t, configPath())

	configFile = "/explicit.yaml"
	t.Cleanup(func() { configFile = "" })
	assert.Equal(t, "/explicit.yaml", configPath())
}

func TestGenpass(t *testing.T) {
	out, _, err := execute(t, "", "genpass", "--length", "16")
	require.NoError(t, err)

	password := strings.TrimSpace(out)
	assert.Len(t, password, 16)
	assert.True(t, auth.ScoreStrength(password, 6).IsAcceptable(), "generated %q", password)
}

func TestGenpass_ShortLengthIsRaised(t *testing.T) {
	out, _, err := execute(t, "", "genpass", "--length", "1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(strings.TrimSpace(out)), auth.MinSecurePasswordLength)
}
