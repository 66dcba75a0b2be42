// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/messages"
)

// RegisterAll registers the auth and admin commands with the registry.
// Panics if any registration fails (indicates a programming error).
func RegisterAll(reg *command.Registry) {
	mustRegister := func(entry command.CommandEntry) {
		if err := reg.Register(entry); err != nil {
			panic("failed to register core command " + entry.Name + ": " + err.Error())
		}
	}

	mustRegister(command.CommandEntry{
		Name:      "login",
		Handler:   LoginHandler,
		Throttled: true,
		Help:      "Log in with your password",
		Usage:     messages.LoginUsage,
	})

	mustRegister(command.CommandEntry{
		Name:      "register",
		Handler:   RegisterHandler,
		Throttled: true,
		Help:      "Register with a password and its confirmation",
		Usage:     messages.RegisterUsage,
	})

	mustRegister(command.CommandEntry{
		Name:    "logout",
		Handler: LogoutHandler,
		Help:    "Log out and end all sessions",
		Usage:   messages.Help,
	})

	mustRegister(command.CommandEntry{
		Name:    "changepassword",
		Handler: ChangePasswordHandler,
		Help:    "Change your password",
		Usage:   messages.ChangePasswordUsage,
	})

	mustRegister(command.CommandEntry{
		Name:    "captcha",
		Handler: CaptchaHandler,
		Help:    "Enter the code shown after failed logins",
		Usage:   messages.CaptchaUsage,
	})

	mustRegister(command.CommandEntry{
		Name:    "help",
		Handler: HelpHandler,
		Help:    "List available commands",
		Usage:   messages.Help,
	})

	// Admin commands
	mustRegister(command.CommandEntry{
		Name:    "gatekeeper",
		Handler: AdminHandler,
		Admin:   true,
		Help:    "Administer authentication",
		Usage:   messages.AdminHelp,
	})
}
