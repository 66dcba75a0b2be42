// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
)

func TestTablesWithPrefix(t *testing.T) {
	assert.Equal(t, auth.Tables{Users: "users", Sessions: "sessions", Logs: "logs"}, auth.TablesWithPrefix(""))
	assert.Equal(t, "gk_sessions", auth.TablesWithPrefix("gk_").Sessions)
}

func TestValidateTablePrefix(t *testing.T) {
	for _, ok := range []string{"", "gk_", "auth2_"} {
		assert.NoError(t, auth.ValidateTablePrefix(ok), ok)
	}
	for _, bad := range []string{"GK", "a;drop", "a b", "x-"} {
		err := auth.ValidateTablePrefix(bad)
		authtest.AssertErrorCode(t, err, "STORAGE_INVALID_PREFIX")
	}
}
