// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/command/handlers"
	"github.com/holomush/gatekeeper/internal/gate"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/telnet"
)

const goodPassword = "Abc12345!"

func newGateway(t *testing.T) (*telnet.Gateway, *authtest.Harness) {
	t.Helper()
	return newGatewayWith(t, gate.DefaultRestrictions())
}

func newGatewayWith(t *testing.T, restrictions gate.Restrictions) (*telnet.Gateway, *authtest.Harness) {
	t.Helper()
	h := authtest.NewHarness(t, auth.DefaultPolicy())

	guard, err := gate.NewGuard(h.Service, restrictions)
	require.NoError(t, err)

	reg := command.NewRegistry()
	handlers.RegisterAll(reg)
	cache := command.NewAliasCache()
	cache.LoadAliases(command.DefaultAliases)
	d, err := command.NewDispatcher(reg, command.WithAliasCache(cache), command.WithLogger(authtest.DiscardLogger()))
	require.NoError(t, err)

	commands := command.NewHandler(d, &command.Services{Auth: h.Service, Clock: h.Clock.Now})
	return telnet.NewGateway(h.Service, guard, commands, authtest.DiscardLogger()), h
}

func english() *messages.Renderer {
	return messages.NewRenderer("en")
}
