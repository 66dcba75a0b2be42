// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"maps"
	"strings"
	"sync"
)

// MaxExpansionDepth is the maximum depth for alias expansion to prevent infinite loops.
const MaxExpansionDepth = 10

// DefaultAliases maps the short and localized command names to their canonical command.
var DefaultAliases = map[string]string{
	"l":           "login",
	"войти":       "login",
	"reg":         "register",
	"регистрация": "register",
	"cp":          "changepassword",
	"azureauth":   "gatekeeper",
	"?":           "help",
}

// AliasCache manages alias resolution.
// It is thread-safe for concurrent access.
type AliasCache struct {
	aliases map[string]string // alias → command
	mu      sync.RWMutex
}

// NewAliasCache creates a new alias cache.
func NewAliasCache() *AliasCache {
	return &AliasCache{aliases: make(map[string]string)}
}

// LoadAliases bulk loads aliases at startup.
func (c *AliasCache) LoadAliases(aliases map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maps.Copy(c.aliases, aliases)
}

// SetAlias adds or updates a single alias.
// Returns an error if the alias would create a circular reference.
func (c *AliasCache) SetAlias(alias, command string) error {
	if err := ValidateAliasName(alias); err != nil {
		return err
	}
	alias = strings.ToLower(alias)

	c.mu.Lock()
	defer c.mu.Unlock()

	oldCmd, existed := c.aliases[alias]
	c.aliases[alias] = command

	if c.isCircularLocked(alias) {
		if existed {
			c.aliases[alias] = oldCmd
		} else {
			delete(c.aliases, alias)
		}
		return ErrCircularAlias(alias)
	}

	return nil
}

// RemoveAlias removes an alias.
func (c *AliasCache) RemoveAlias(alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.aliases, strings.ToLower(alias))
}

// isCircularLocked reports whether following alias hits the depth limit.
// Must be called with Lock held.
func (c *AliasCache) isCircularLocked(alias string) bool {
	cmd := alias
	for range MaxExpansionDepth {
		next, ok := c.aliases[cmd]
		if !ok {
			return false
		}
		first, _ := splitFirstWord(next)
		if first == "" {
			return false
		}
		cmd = strings.ToLower(first)
	}
	return true
}

// AliasResult contains the result of alias resolution.
type AliasResult struct {
	Resolved  string // The resolved command string
	WasAlias  bool   // Whether an alias was expanded
	AliasUsed string // The alias that was matched (empty if no alias)
}

// Resolve expands an input string through alias resolution.
// A first word naming a registered command is never expanded.
func (c *AliasCache) Resolve(input string, registry *Registry) AliasResult {
	first, args := splitFirstWord(input)
	if first == "" {
		return AliasResult{Resolved: input}
	}
	word := strings.ToLower(strings.TrimPrefix(first, "/"))

	if registry != nil {
		if _, ok := registry.Get(word); ok {
			return AliasResult{Resolved: input}
		}
	}

	c.mu.RLock()
	resolved, expanded := c.resolveWithDepth(word, 0)
	c.mu.RUnlock()

	if !expanded {
		return AliasResult{Resolved: input}
	}
	if args != "" {
		resolved += " " + args
	}
	return AliasResult{Resolved: resolved, WasAlias: true, AliasUsed: word}
}

// resolveWithDepth performs alias resolution with depth tracking.
// Must be called with at least RLock held.
func (c *AliasCache) resolveWithDepth(cmd string, depth int) (string, bool) {
	if depth >= MaxExpansionDepth {
		return cmd, depth > 0
	}

	expanded, ok := c.aliases[cmd]
	if !ok {
		return cmd, depth > 0
	}

	first, args := splitFirstWord(expanded)
	if first == "" {
		return expanded, true
	}
	further, _ := c.resolveWithDepth(strings.ToLower(first), depth+1)
	if args != "" {
		return further + " " + args, true
	}
	return further, true
}

// splitFirstWord splits input into the first word and remaining args.
func splitFirstWord(input string) (first, rest string) {
	input = strings.TrimLeft(input, " \t")
	if input == "" {
		return "", ""
	}

	idx := strings.IndexAny(input, " \t")
	if idx == -1 {
		return input, ""
	}

	return input[:idx], strings.TrimLeft(input[idx+1:], " \t")
}
