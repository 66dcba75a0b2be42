// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command provides the command registry, parser, and dispatch system
// for the authentication commands.
package command

import (
	"context"
	"time"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/messages"
)

// CommandHandler is the function signature for command handlers.
// Expected player mistakes are answered with replies and a nil error; a
// returned error means the server failed.
//
//nolint:revive // CommandHandler reads better at call sites than Handler
type CommandHandler func(ctx context.Context, exec *CommandExecution) error

// CommandEntry represents a registered command.
//
//nolint:revive // consistent with CommandHandler
type CommandEntry struct {
	Name    string         // canonical name (e.g., "login")
	Handler CommandHandler // Go handler
	Admin   bool           // requires the admin permission flag
	// Throttled entries consume a token from the per-identity bucket.
	Throttled bool
	Help      string // short description (one line)
	Usage     string // message key shown for bad arguments
}

// CommandExecution provides context for command execution.
//
//nolint:revive // consistent with CommandHandler
type CommandExecution struct {
	Conn     auth.Connection
	IsAdmin  bool
	Args     []string
	Services *Services
	Replies  []messages.Reply
}

// Reply queues a player-facing message.
func (e *CommandExecution) Reply(key string, args ...any) {
	e.Replies = append(e.Replies, messages.New(key, args...))
}

// Services provides access to the auth subsystem for command handlers.
// Handlers MUST NOT store references to services beyond execution.
type Services struct {
	Auth *auth.Service
	// Reload re-reads configuration and applies the new policy.
	Reload func(ctx context.Context) error
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Now returns the current time from the configured clock.
func (s *Services) Now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}
