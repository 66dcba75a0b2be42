// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/store"
)

// RunDeps contains injectable dependencies for the run command.
// All fields with nil values will use their default implementations.
type RunDeps struct {
	// BackendOpener opens the storage backend.
	// Default: store.Open
	BackendOpener func(ctx context.Context, cfg store.Config, logger *slog.Logger) (*store.Backend, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker) *observability.Server

	// Stdin feeds the console adapter.
	// Default: the command's input (os.Stdin)
	Stdin io.Reader

	// LogOutput receives structured logs.
	// Default: the command's error output (os.Stderr)
	LogOutput io.Writer
}
