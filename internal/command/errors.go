// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"errors"
	"math"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/messages"
)

// Error codes for command dispatch failures.
const (
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeInvalidName      = "INVALID_NAME"
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInvalidArgs      = "INVALID_ARGS"
	CodeThrottled        = "THROTTLED"
	CodeCircularAlias    = "CIRCULAR_ALIAS"
	CodeNilServices      = "NIL_SERVICES"
)

// ErrNilRegistry is returned by NewDispatcher when no registry is supplied.
var ErrNilRegistry = errors.New("command registry is nil")

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrPermissionDenied creates an error for an admin command run without the permission flag.
func ErrPermissionDenied(cmd string) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		Errorf("permission denied for command %s", cmd)
}

// ErrInvalidArgs creates an error carrying the usage message key.
func ErrInvalidArgs(cmd, usageKey string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", cmd).
		With("usage", usageKey).
		Errorf("invalid arguments")
}

// ErrThrottled creates an error for a throttled command.
func ErrThrottled(cmd string, retryAfter time.Duration) error {
	return oops.Code(CodeThrottled).
		With("command", cmd).
		With("retry_after", retryAfter).
		Errorf("too many attempts")
}

// ErrCircularAlias creates an error for circular alias detection.
func ErrCircularAlias(alias string) error {
	return oops.Code(CodeCircularAlias).
		With("alias", alias).
		Errorf("alias rejected: circular reference detected (expansion depth exceeded)")
}

// ErrNilServices is returned when an execution has no services attached.
func ErrNilServices() error {
	return oops.Code(CodeNilServices).Errorf("command execution has no services")
}

// ErrorReply maps a dispatch error to a player-facing reply.
func ErrorReply(err error) messages.Reply {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return messages.New(messages.ServerError)
	}

	ctx := oopsErr.Context()
	switch oopsErr.Code() {
	case CodeEmptyInput:
		return messages.New(messages.Help)
	case CodeUnknownCommand:
		name, _ := ctx["command"].(string)
		return messages.New(messages.UnknownCommand, name)
	case CodePermissionDenied:
		return messages.New(messages.PermissionDenied)
	case CodeInvalidArgs:
		if usage, ok := ctx["usage"].(string); ok && usage != "" {
			return messages.New(usage)
		}
		return messages.New(messages.Help)
	case CodeThrottled:
		wait, _ := ctx["retry_after"].(time.Duration)
		return messages.New(messages.Throttled, int(math.Ceil(wait.Seconds())))
	default:
		return messages.New(messages.ServerError)
	}
}
