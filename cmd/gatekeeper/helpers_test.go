// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const goodPassword = "Abc12345!"

// writeTestConfig writes a config using a temporary SQLite database with
// the observability server disabled. extra is appended verbatim.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := "storage:\n" +
		"  backend: sqlite\n" +
		"  path: " + filepath.Join(dir, "gatekeeper.db") + "\n" +
		"security:\n" +
		"  hash_algorithm: sha256\n" +
		"logging:\n" +
		"  level: error\n" +
		"metrics_addr: \"\"\n" +
		extra
	path := filepath.Join(dir, "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args and stdin, returning stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	configFile = ""

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
