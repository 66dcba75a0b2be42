// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth/authtest"
	"github.com/holomush/gatekeeper/internal/config"
)

func TestConfigSchema(t *testing.T) {
	out, _, err := execute(t, "", "config", "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])
}

func TestConfigValidate(t *testing.T) {
	good := writeTestConfig(t, "")
	out, _, err := execute(t, "", "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok")

	out, _, err = execute(t, "", "--config", good, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")
}

func TestConfigValidate_Failures(t *testing.T) {
	dir := t.TempDir()
	unknownKey := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknownKey, []byte("colour: blue\n"), 0o600))
	badRule := writeTestConfig(t, "auth:\n  min_password_length: 10\n  max_password_length: 8\n")

	_, errOut, err := execute(t, "", "config", "validate", unknownKey)
	authtest.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")
	assert.Contains(t, errOut, unknownKey)

	_, errOut, err = execute(t, "", "config", "validate", badRule)
	authtest.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Contains(t, errOut, badRule)

	_, _, err = execute(t, "", "config", "validate", filepath.Join(dir, "absent.yaml"))
	authtest.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfigValidate_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, _, err := execute(t, "", "config", "validate")
	authtest.AssertErrorCode(t, err, "CONFIG_MISSING")
}
