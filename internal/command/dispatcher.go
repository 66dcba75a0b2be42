// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gatekeeper/command")

// Dispatcher handles command parsing, the admin gate, throttling, and execution.
type Dispatcher struct {
	registry   *Registry
	aliasCache *AliasCache // optional, can be nil
	throttle   *Throttle   // optional, can be nil
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithAliasCache configures the dispatcher to use the given alias cache for
// command resolution. If not provided, alias resolution is disabled.
func WithAliasCache(cache *AliasCache) DispatcherOption {
	return func(d *Dispatcher) {
		d.aliasCache = cache
	}
}

// WithThrottle enables the per-identity throttle for entries marked Throttled.
func WithThrottle(t *Throttle) DispatcherOption {
	return func(d *Dispatcher) {
		d.throttle = t
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new command dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch parses and executes a command. Admin executions bypass the throttle.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, exec *CommandExecution) (err error) {
	if exec.Services == nil {
		return ErrNilServices()
	}

	metrics := NewMetricsRecorder()
	defer metrics.Record()

	resolvedInput := input
	aliasResult := AliasResult{}
	if d.aliasCache != nil {
		aliasResult = d.aliasCache.Resolve(input, d.registry)
		resolvedInput = aliasResult.Resolved
		if aliasResult.WasAlias {
			RecordAliasExpansion(aliasResult.AliasUsed)
		}
	}

	parsed, err := Parse(resolvedInput)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", parsed.Name),
			attribute.String("identity.id", exec.Conn.ID.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if aliasResult.WasAlias {
		span.SetAttributes(attribute.String("command.alias_used", aliasResult.AliasUsed))
	}

	entry, ok := d.registry.Get(parsed.Name)
	if !ok {
		metrics.SetCommandName("unknown")
		metrics.SetStatus(StatusNotFound)
		err = ErrUnknownCommand(parsed.Name)
		return err
	}
	metrics.SetCommandName(entry.Name)

	if entry.Admin && !exec.IsAdmin {
		metrics.SetStatus(StatusPermissionDenied)
		err = ErrPermissionDenied(entry.Name)
		return err
	}

	if d.throttle != nil && entry.Throttled && !exec.IsAdmin {
		if allowed, wait := d.throttle.Allow(exec.Conn.ID); !allowed {
			span.SetAttributes(attribute.Bool("command.throttled", true))
			metrics.SetStatus(StatusThrottled)
			RecordCommandThrottled(entry.Name)
			err = ErrThrottled(entry.Name, wait)
			return err
		}
	}

	exec.Args = parsed.Args
	err = entry.Handler(ctx, exec)
	if err != nil {
		metrics.SetStatus(StatusError)
		d.logger.WarnContext(ctx, "command execution failed",
			"command", entry.Name,
			"identity_id", exec.Conn.ID.String(),
			"error", err,
		)
	}
	return err
}
