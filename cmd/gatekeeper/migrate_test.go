// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth/authtest"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErrCode string
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "surrounding space", input: " 2 ", wantVersion: 2},
		{name: "non-numeric", input: "abc", wantErrCode: "INVALID_VERSION"},
		{name: "trailing chars", input: "3abc", wantErrCode: "INVALID_VERSION"},
		{name: "negative", input: "-1", wantErrCode: "INVALID_VERSION"},
		{name: "empty", input: "", wantErrCode: "INVALID_VERSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForceVersion(tt.input)
			if tt.wantErrCode != "" {
				authtest.AssertErrorCode(t, err, tt.wantErrCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, got)
		})
	}
}

func TestMigrate_SQLite(t *testing.T) {
	path := writeTestConfig(t, "")

	out, _, err := execute(t, "", "--config", path, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 0 (clean)")
	assert.NotContains(t, out, "Pending: none")

	out, _, err = execute(t, "", "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations completed successfully")

	out, _, err = execute(t, "", "--config", path, "migrate", "up")
	require.NoError(t, err, "re-running migrations is a no-op")
	assert.Contains(t, out, "Migrations completed successfully")

	out, _, err = execute(t, "", "--config", path, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: none")
}

func TestMigrate_UnknownAction(t *testing.T) {
	path := writeTestConfig(t, "")
	_, _, err := execute(t, "", "--config", path, "migrate", "sideways")
	require.Error(t, err)
}

func TestMigrate_InvalidConfig(t *testing.T) {
	path := writeTestConfig(t, "language: de\n")
	_, _, err := execute(t, "", "--config", path, "migrate")
	authtest.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestSweep_SQLite(t *testing.T) {
	path := writeTestConfig(t, "")
	_, _, err := execute(t, "", "--config", path, "migrate")
	require.NoError(t, err)

	out, _, err := execute(t, "", "--config", path, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 expired sessions")
}
