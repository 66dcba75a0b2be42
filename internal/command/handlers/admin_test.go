// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/messages"
)

func TestAdminHandler(t *testing.T) {
	t.Run("requires the admin flag", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		assert.Equal(t, one(messages.PermissionDenied), f.run("gatekeeper stats"))
		assert.Equal(t, one(messages.PermissionDenied), f.run("azureauth stats"))
	})

	t.Run("help", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		assert.Equal(t, one(messages.AdminHelp), f.admin("gatekeeper"))
		assert.Equal(t, one(messages.AdminHelp), f.admin("gatekeeper help"))
		assert.Equal(t, one(messages.AdminHelp), f.admin("azureauth bogus"))
	})

	t.Run("stats", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		require.Equal(t, one(messages.RegisterSuccess), f.run("register "+goodPassword))
		assert.Equal(t, one(messages.AdminStats, 1, int64(1), int64(1)), f.admin("gatekeeper stats"))
	})

	t.Run("stats storage failure", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		f.h.Identities.FailOn("Count", errors.New("timeout"))
		assert.Equal(t, one(messages.ServerError), f.admin("gatekeeper stats"))
	})

	t.Run("cleanup", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		require.Equal(t, one(messages.RegisterSuccess), f.run("register "+goodPassword))
		f.h.Clock.Advance(2 * time.Hour)
		assert.Equal(t, one(messages.AdminCleanup, int64(1)), f.admin("gatekeeper cleanup"))
	})

	t.Run("reload", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		assert.Equal(t, one(messages.AdminReloaded), f.admin("gatekeeper RELOAD"))

		f.reload = errors.New("bad yaml")
		assert.Equal(t, one(messages.AdminReloadFailed, "bad yaml"), f.admin("gatekeeper reload"))
		assert.Equal(t, 2, f.reloads)
	})

	t.Run("stubs", func(t *testing.T) {
		f := newFixture(t, auth.DefaultPolicy())
		for _, sub := range []string{"info", "unregister", "forcelogin", "resetpassword"} {
			assert.Equal(t, one(messages.NotImplemented), f.admin("gatekeeper "+sub+" someone"), sub)
		}
	})
}
