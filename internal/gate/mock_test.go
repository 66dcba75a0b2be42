// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/gate"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) IsAuthenticated(id uuid.UUID) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func TestGuard_UnblockedActionsSkipAuthentication(t *testing.T) {
	authn := &mockAuthenticator{}
	guard, err := gate.NewGuard(authn, gate.Restrictions{BlockChat: true})
	require.NoError(t, err)
	id := uuid.New()

	authn.On("IsAuthenticated", id).Return(false).Once()

	assert.True(t, guard.AllowMove(id))
	assert.True(t, guard.AllowInventory(id))
	assert.True(t, guard.AllowCommand(id, "anything"))
	assert.False(t, guard.AllowChat(id))

	authn.AssertExpectations(t)
	authn.AssertNumberOfCalls(t, "IsAuthenticated", 1)
}

func TestGuard_AllowListConsultedOnlyWhenUnauthenticated(t *testing.T) {
	authn := &mockAuthenticator{}
	guard, err := gate.NewGuard(authn, gate.Restrictions{
		BlockCommands:   true,
		AllowedCommands: []string{"login"},
	})
	require.NoError(t, err)
	known, stranger := uuid.New(), uuid.New()

	authn.On("IsAuthenticated", known).Return(true)
	authn.On("IsAuthenticated", stranger).Return(false)

	assert.True(t, guard.AllowCommand(known, "look"))
	assert.False(t, guard.AllowCommand(stranger, "look"))
	assert.True(t, guard.AllowCommand(stranger, "login pw"))

	authn.AssertExpectations(t)
}
