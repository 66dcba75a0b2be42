// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/telnet"
	"github.com/holomush/gatekeeper/internal/xdg"
)

const shutdownTimeout = 5 * time.Second

// runOptions holds flags local to the run command.
type runOptions struct {
	noMigrate bool
	noConsole bool
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the authentication server",
		Long: `Open the storage backend, apply migrations, start the session sweeper
and observability server, then serve players over the line protocol
(when listen_addr is set) and the console on stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), opts, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.noMigrate, "no-migrate", false, "skip applying pending migrations")
	cmd.Flags().BoolVar(&opts.noConsole, "no-console", false, "do not read console commands from stdin")

	return cmd
}

// runWithDeps runs the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, opts *runOptions, cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.BackendOpener == nil {
		deps.BackendOpener = store.Open
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = observability.NewServer
	}
	if deps.Stdin == nil {
		deps.Stdin = cmd.InOrStdin()
	}
	if deps.LogOutput == nil {
		deps.LogOutput = cmd.ErrOrStderr()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.Setup("gatekeeper", version, cfg.LoggingOptions(), deps.LogOutput)
	slog.SetDefault(logger)
	logger.Info("starting gatekeeper",
		"config", path,
		"storage", cfg.Storage.Backend,
		"sessions", cfg.Sessions.Backend,
		"language", cfg.Language)

	if cfg.Storage.Backend == string(store.DriverSQLite) {
		if err := xdg.EnsureDir(filepath.Dir(cfg.Storage.Path)); err != nil {
			return err
		}
	}

	backend, err := deps.BackendOpener(ctx, cfg.StoreConfig(!opts.noMigrate), logger)
	if err != nil {
		return oops.Code("STORAGE_OPEN_FAILED").Wrap(err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("error closing storage", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer *observability.Server
	var reg prometheus.Registerer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr,
			observability.PingReadiness(backend.Ping, cfg.Storage.Timeout))
		reg = obsServer.Registry()
	}

	a, err := newApp(cfg, backend, reg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	a.configPath = path
	a.flags = cmd.Flags()

	sweeper := auth.NewSweeper(a.sessions, cfg.Sessions.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	var serverWG sync.WaitGroup
	var serverErr chan error
	if cfg.ListenAddr != "" {
		srv := telnet.NewServer(cfg.ListenAddr, a.gateway, a.renderer, logger)
		if err := srv.Listen(); err != nil {
			return err
		}
		serverErr = make(chan error, 1)
		serverWG.Add(1)
		go func() {
			defer serverWG.Done()
			if err := srv.Run(ctx); err != nil {
				serverErr <- err
			}
		}()
		defer func() {
			cancel()
			serverWG.Wait()
		}()
		logger.Info("line protocol listening", "addr", srv.Addr())
	}

	var consoleDone chan error
	if !opts.noConsole {
		console := telnet.NewConsole(a.gateway, a.renderer, logger)
		consoleDone = make(chan error, 1)
		go func() { consoleDone <- console.Run(ctx, deps.Stdin, cmd.OutOrStdout()) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("gatekeeper ready")

	for {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			return nil
		case <-ctx.Done():
			logger.Info("context cancelled, shutting down")
			return nil
		case err := <-serverErr:
			return err
		case err := <-consoleDone:
			consoleDone = nil
			if err != nil {
				return err
			}
			if cfg.ListenAddr == "" {
				logger.Info("console closed, shutting down")
				return nil
			}
		}
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
// It exits when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
