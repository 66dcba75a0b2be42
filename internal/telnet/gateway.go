// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package telnet provides the line-oriented connection adapters: a TCP server
// and a multi-identity console, both routed through a Gateway.
package telnet

import (
	"context"
	"log/slog"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/gate"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/observability"
)

// Action is a host event subject to the pre-authentication gate.
type Action string

// Gated actions.
const (
	ActionChat      Action = "chat"
	ActionMove      Action = "move"
	ActionInventory Action = "inventory"
)

// Outcome is the gateway's answer to one event. Passed means the host
// should carry the event out itself.
type Outcome struct {
	Replies []messages.Reply
	Passed  bool
}

// Gateway routes connection events through the auth service, the gate, and
// the command surface.
type Gateway struct {
	auth     *auth.Service
	guard    *gate.Guard
	commands *command.Handler
	logger   *slog.Logger
}

// NewGateway wires the adapters' shared routing.
func NewGateway(svc *auth.Service, guard *gate.Guard, commands *command.Handler, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{auth: svc, guard: guard, commands: commands, logger: logger}
}

// Connect greets a joining player, restoring a session when one matches.
func (g *Gateway) Connect(ctx context.Context, conn auth.Connection) Outcome {
	result, err := g.auth.Connect(ctx, conn)
	if err != nil {
		logging.LogError(g.logger, "connect failed", err)
		return Outcome{Replies: []messages.Reply{messages.New(messages.ServerError)}}
	}

	switch {
	case result.Restored:
		observability.RecordConnectionEvent(observability.EventRestore)
		return Outcome{Replies: []messages.Reply{messages.New(messages.SessionRestored, conn.DisplayName)}}
	case result.Registered:
		observability.RecordConnectionEvent(observability.EventConnect)
		return Outcome{Replies: []messages.Reply{messages.New(messages.WelcomeLogin, conn.DisplayName)}}
	default:
		observability.RecordConnectionEvent(observability.EventConnect)
		return Outcome{Replies: []messages.Reply{messages.New(messages.WelcomeRegister, conn.DisplayName)}}
	}
}

// Disconnect drops the player's transient state.
func (g *Gateway) Disconnect(conn auth.Connection) {
	g.auth.Disconnect(conn)
	observability.RecordConnectionEvent(observability.EventDisconnect)
}

// Act checks a gated host action.
func (g *Gateway) Act(conn auth.Connection, action Action) Outcome {
	var allowed bool
	switch action {
	case ActionChat:
		allowed = g.guard.AllowChat(conn.ID)
	case ActionMove:
		allowed = g.guard.AllowMove(conn.ID)
	case ActionInventory:
		allowed = g.guard.AllowInventory(conn.ID)
	default:
		allowed = g.auth.IsAuthenticated(conn.ID)
	}
	if allowed {
		return Outcome{Passed: true}
	}
	observability.RecordGateDenial(string(action))
	return Outcome{Replies: []messages.Reply{messages.New(messages.ActionBlocked)}}
}

// Command runs a command line. Lines that are not auth commands pass to the
// host once the gate has let them through.
func (g *Gateway) Command(ctx context.Context, conn auth.Connection, line string, isAdmin bool) Outcome {
	if !g.guard.AllowCommand(conn.ID, line) {
		observability.RecordGateDenial("command")
		return Outcome{Replies: []messages.Reply{messages.New(messages.ActionBlocked)}}
	}
	if !g.commands.Handles(line) {
		return Outcome{Passed: true}
	}
	return Outcome{Replies: g.commands.Execute(ctx, conn, line, isAdmin)}
}
