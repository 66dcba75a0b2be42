// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate decides which player actions are allowed before login.
package gate

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Authenticator reports whether an identity has logged in.
type Authenticator interface {
	IsAuthenticated(id uuid.UUID) bool
}

// Restrictions toggles what unauthenticated players are blocked from.
type Restrictions struct {
	BlockChat       bool
	BlockMovement   bool
	BlockCommands   bool
	BlockInventory  bool
	AllowedCommands []string
}

// DefaultAllowedCommands are the commands an unauthenticated player may run.
// "?" is a glob wildcard, so the literal question mark is escaped.
var DefaultAllowedCommands = []string{
	"login", "l", "войти",
	"register", "reg", "регистрация",
	"captcha", "help", `\?`,
}

// DefaultRestrictions blocks everything except DefaultAllowedCommands.
func DefaultRestrictions() Restrictions {
	return Restrictions{
		BlockChat:       true,
		BlockMovement:   true,
		BlockCommands:   true,
		BlockInventory:  true,
		AllowedCommands: append([]string(nil), DefaultAllowedCommands...),
	}
}

// Guard answers the per-event restriction predicates.
type Guard struct {
	auth         Authenticator
	restrictions Restrictions
	allowed      []glob.Glob
}

// NewGuard compiles the allow-list patterns. Patterns use glob syntax and
// match the lower-cased first word of a command line.
func NewGuard(auth Authenticator, restrictions Restrictions) (*Guard, error) {
	if auth == nil {
		return nil, oops.Code("GATE_INVALID").Errorf("authenticator is required")
	}
	allowed := make([]glob.Glob, 0, len(restrictions.AllowedCommands))
	for _, pattern := range restrictions.AllowedCommands {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, oops.Code("GATE_INVALID_PATTERN").With("pattern", pattern).Wrap(err)
		}
		allowed = append(allowed, g)
	}
	return &Guard{auth: auth, restrictions: restrictions, allowed: allowed}, nil
}

// AllowChat reports whether id may send chat messages.
func (g *Guard) AllowChat(id uuid.UUID) bool {
	return !g.restrictions.BlockChat || g.auth.IsAuthenticated(id)
}

// AllowMove reports whether id may move.
func (g *Guard) AllowMove(id uuid.UUID) bool {
	return !g.restrictions.BlockMovement || g.auth.IsAuthenticated(id)
}

// AllowInventory reports whether id may use its inventory.
func (g *Guard) AllowInventory(id uuid.UUID) bool {
	return !g.restrictions.BlockInventory || g.auth.IsAuthenticated(id)
}

// AllowCommand reports whether id may run the command line. Authenticated
// players may run anything; others only what the allow-list matches.
func (g *Guard) AllowCommand(id uuid.UUID, line string) bool {
	if !g.restrictions.BlockCommands || g.auth.IsAuthenticated(id) {
		return true
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	for _, pattern := range g.allowed {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}
