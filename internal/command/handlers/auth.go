// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"

	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/messages"
)

// reply answers an auth error with its player message. Errors without one
// are returned so the dispatcher reports a server error.
func reply(exec *command.CommandExecution, err error) error {
	if r, ok := replyFor(err, exec.Services.Now()); ok {
		exec.Replies = append(exec.Replies, r)
		return nil
	}
	return err
}

// LoginHandler authenticates with a password: login <password>.
func LoginHandler(ctx context.Context, exec *command.CommandExecution) error {
	if len(exec.Args) != 1 {
		exec.Reply(messages.LoginUsage)
		return nil
	}

	result, err := exec.Services.Auth.Login(ctx, exec.Conn, exec.Args[0])
	if err == nil {
		exec.Reply(messages.LoginSuccess)
		return nil
	}

	switch code(err) {
	case "AUTH_CAPTCHA_REQUIRED":
		exec.Reply(messages.CaptchaRequired, result.Challenge)
		return nil
	case "AUTH_INVALID_CREDENTIALS":
		exec.Reply(messages.LoginFailed, result.RemainingAttempts)
		if result.LockedUntil != nil {
			exec.Reply(messages.AccountLocked, formatWait(result.LockedUntil.Sub(exec.Services.Now())))
		}
		if result.Challenge != "" {
			exec.Reply(messages.CaptchaRequired, result.Challenge)
		}
		return nil
	default:
		return reply(exec, err)
	}
}

// RegisterHandler creates an identity: register <password> [confirm].
func RegisterHandler(ctx context.Context, exec *command.CommandExecution) error {
	if len(exec.Args) < 1 || len(exec.Args) > 2 {
		exec.Reply(messages.RegisterUsage)
		return nil
	}

	var confirm *string
	if len(exec.Args) == 2 {
		confirm = &exec.Args[1]
	}

	if _, err := exec.Services.Auth.Register(ctx, exec.Conn, exec.Args[0], confirm); err != nil {
		return reply(exec, err)
	}
	exec.Reply(messages.RegisterSuccess)
	return nil
}

// LogoutHandler ends the authenticated state and every durable session.
func LogoutHandler(ctx context.Context, exec *command.CommandExecution) error {
	if err := exec.Services.Auth.Logout(ctx, exec.Conn); err != nil {
		return reply(exec, err)
	}
	exec.Reply(messages.LoggedOut)
	return nil
}

// ChangePasswordHandler replaces the password: changepassword <old> <new>.
func ChangePasswordHandler(ctx context.Context, exec *command.CommandExecution) error {
	if len(exec.Args) != 2 {
		exec.Reply(messages.ChangePasswordUsage)
		return nil
	}

	if err := exec.Services.Auth.ChangePassword(ctx, exec.Conn, exec.Args[0], exec.Args[1]); err != nil {
		return reply(exec, err)
	}
	exec.Reply(messages.PasswordChanged)
	return nil
}

// CaptchaHandler solves a pending challenge: captcha <code>.
func CaptchaHandler(_ context.Context, exec *command.CommandExecution) error {
	if len(exec.Args) != 1 {
		exec.Reply(messages.CaptchaUsage)
		return nil
	}

	if err := exec.Services.Auth.SolveChallenge(exec.Conn, exec.Args[0]); err != nil {
		return reply(exec, err)
	}
	exec.Reply(messages.CaptchaSolved)
	return nil
}

// HelpHandler lists the player commands, plus the admin group for admins.
func HelpHandler(_ context.Context, exec *command.CommandExecution) error {
	exec.Reply(messages.Help)
	if exec.IsAdmin {
		exec.Reply(messages.AdminHelp)
	}
	return nil
}
