// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/messages"
)

// replyFor maps an auth error to the reply a player sees. It reports false for
// storage and crypto failures, which the dispatcher surfaces as server errors.
func replyFor(err error, now time.Time) (messages.Reply, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return messages.Reply{}, false
	}

	ctx := oopsErr.Context()
	switch oopsErr.Code() {
	case "AUTH_ALREADY_AUTHENTICATED":
		return messages.New(messages.AlreadyAuthenticated), true
	case "AUTH_NOT_AUTHENTICATED":
		return messages.New(messages.NotAuthenticated), true
	case "AUTH_REGISTRATION_DISABLED":
		return messages.New(messages.RegistrationDisabled), true
	case "AUTH_ALREADY_REGISTERED":
		return messages.New(messages.AlreadyRegistered), true
	case "AUTH_REGISTRATION_REQUIRED":
		return messages.New(messages.RegistrationRequired), true
	case "AUTH_INVALID_DISPLAY_NAME":
		return messages.New(messages.InvalidDisplayName), true
	case "AUTH_INVALID_CREDENTIALS":
		remaining, _ := ctx["remaining_attempts"].(int)
		return messages.New(messages.LoginFailed, remaining), true
	case "AUTH_ACCOUNT_LOCKED":
		until, _ := ctx["locked_until"].(time.Time)
		return messages.New(messages.AccountLocked, formatWait(until.Sub(now))), true
	case "AUTH_PASSWORD_TOO_SHORT":
		minLen, _ := ctx["min"].(int)
		return messages.New(messages.PasswordTooShort, minLen), true
	case "AUTH_PASSWORD_TOO_LONG":
		maxLen, _ := ctx["max"].(int)
		return messages.New(messages.PasswordTooLong, maxLen), true
	case "AUTH_PASSWORD_MISMATCH":
		return messages.New(messages.PasswordMismatch), true
	case "AUTH_WEAK_PASSWORD":
		reqs, _ := ctx["requirements"].([]string)
		return messages.New(messages.PasswordWeak, messages.Requirements(reqs)), true
	case "AUTH_WRONG_PASSWORD":
		return messages.New(messages.WrongPassword), true
	case "AUTH_SAME_PASSWORD":
		return messages.New(messages.SamePassword), true
	case "AUTH_NO_CHALLENGE":
		return messages.New(messages.CaptchaNone), true
	case "AUTH_CHALLENGE_FAILED":
		return messages.New(messages.CaptchaWrong), true
	default:
		return messages.Reply{}, false
	}
}

func code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	s, _ := oopsErr.Code().(string)
	return s
}

// formatWait renders a lockout wait rounded up to whole seconds.
func formatWait(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second).String()
}
