// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/messages"
)

// Handler is the command surface a connection adapter talks to.
type Handler struct {
	dispatcher *Dispatcher
	services   *Services
}

// NewHandler binds a dispatcher to the services its commands act on.
func NewHandler(dispatcher *Dispatcher, services *Services) *Handler {
	return &Handler{dispatcher: dispatcher, services: services}
}

// Execute runs one input line for conn and returns the replies to show.
// Dispatch failures are turned into replies; nothing is returned as an error.
func (h *Handler) Execute(ctx context.Context, conn auth.Connection, line string, isAdmin bool) []messages.Reply {
	exec := &CommandExecution{
		Conn:     conn,
		IsAdmin:  isAdmin,
		Services: h.services,
	}
	if err := h.dispatcher.Dispatch(ctx, line, exec); err != nil {
		exec.Replies = append(exec.Replies, ErrorReply(err))
	}
	return exec.Replies
}

// Handles reports whether line names a registered command, after alias expansion.
func (h *Handler) Handles(line string) bool {
	resolved := line
	if h.dispatcher.aliasCache != nil {
		resolved = h.dispatcher.aliasCache.Resolve(line, h.dispatcher.registry).Resolved
	}
	parsed, err := Parse(resolved)
	if err != nil {
		return false
	}
	_, ok := h.dispatcher.registry.Get(parsed.Name)
	return ok
}
