// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/store"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions once",
		Long:  `Delete every expired session from the configured session backend and exit.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, store.Open)
		},
	}
}

func runSweep(cmd *cobra.Command, open func(ctx context.Context, cfg store.Config, logger *slog.Logger) (*store.Backend, error)) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	backend, err := open(cmd.Context(), cfg.StoreConfig(false), logger)
	if err != nil {
		return oops.Code("STORAGE_OPEN_FAILED").Wrap(err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("error closing storage", "error", err)
		}
	}()

	sessions, err := auth.NewSessionStore(backend.Sessions, auth.SessionStoreConfig{
		Timeout: cfg.Storage.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	n, err := auth.NewSweeper(sessions, cfg.Sessions.SweepInterval, logger).RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired sessions\n", n)
	return nil
}
