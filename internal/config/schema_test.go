// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	raw, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	for _, key := range []string{"storage", "auth", "sessions", "security", "restrictions", "audit", "logging", "throttle", "language", "metrics_addr", "listen_addr"} {
		assert.Contains(t, props, key)
	}

	storage := props["storage"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, storage, "table_prefix", "field names follow the koanf tag")
	timeout := storage["timeout"].(map[string]any)
	assert.Contains(t, timeout, "oneOf", "durations accept strings or integers")
}

func TestValidateSchema_Accepts(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)
	assert.NoError(t, ValidateSchema(data))

	assert.NoError(t, ValidateSchema([]byte("language: en\n")))
	assert.NoError(t, ValidateSchema([]byte("auth:\n  lockout_duration: 90s\n")))
}

func TestValidateSchema_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "colour: blue\n"},
		{"unknown nested key", "storage:\n  engine: sqlite\n"},
		{"wrong type", "auth:\n  max_login_attempts: three\n"},
		{"bad enum", "storage:\n  backend: mysql\n"},
		{"bad duration", "sessions:\n  duration: forever\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.yaml))
			require.Error(t, err)
			assert.NotEmpty(t, FormatSchemaError(err))
		})
	}
}

func TestValidateSchema_EmptyAndMalformed(t *testing.T) {
	assert.Error(t, ValidateSchema(nil))
	assert.Error(t, ValidateSchema([]byte("storage: [unterminated\n")))
}

func TestFormatSchemaError(t *testing.T) {
	assert.Empty(t, FormatSchemaError(nil))
	assert.Equal(t, "plain", FormatSchemaError(errors.New("plain")))
	assert.Equal(t, "jsonschema validation failed with x",
		FormatSchemaError(errors.New("wrapped: jsonschema validation failed with x")))
}

func TestConvertToJSONTypes(t *testing.T) {
	in := map[string]any{
		"n":    5,
		"list": []any{int64(2), "x", true, nil, 1.5},
	}
	out := convertToJSONTypes(in).(map[string]any)
	assert.Equal(t, json.Number("5"), out["n"])
	assert.Equal(t, []any{json.Number("2"), "x", true, nil, 1.5}, out["list"])
}
