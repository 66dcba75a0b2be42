// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"
	"strings"

	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/messages"
)

// AdminHandler runs the admin group: gatekeeper <reload|stats|cleanup|...>.
// The dispatcher only reaches it for executions carrying the admin flag.
func AdminHandler(ctx context.Context, exec *command.CommandExecution) error {
	if len(exec.Args) == 0 {
		exec.Reply(messages.AdminHelp)
		return nil
	}

	switch strings.ToLower(exec.Args[0]) {
	case "reload":
		if exec.Services.Reload == nil {
			exec.Reply(messages.NotImplemented)
			return nil
		}
		if err := exec.Services.Reload(ctx); err != nil {
			exec.Reply(messages.AdminReloadFailed, err.Error())
			return nil
		}
		exec.Reply(messages.AdminReloaded)
	case "stats":
		stats, err := exec.Services.Auth.Stats(ctx)
		if err != nil {
			return err
		}
		exec.Reply(messages.AdminStats, stats.Authenticated, stats.Registered, stats.ActiveSessions)
	case "cleanup":
		n, err := exec.Services.Auth.Cleanup(ctx)
		if err != nil {
			return err
		}
		exec.Reply(messages.AdminCleanup, n)
	case "info", "unregister", "forcelogin", "resetpassword":
		exec.Reply(messages.NotImplemented)
	default:
		exec.Reply(messages.AdminHelp)
	}
	return nil
}
