// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/command/handlers"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/gate"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/telnet"
)

// app is the assembled authentication stack over an open backend.
type app struct {
	service  *auth.Service
	sessions *auth.SessionStore
	throttle *command.Throttle
	gateway  *telnet.Gateway
	renderer *messages.Renderer
	logger   *slog.Logger

	configPath string
	flags      *pflag.FlagSet
}

// newApp wires stores, service, guard, and command handling. Metrics are
// registered on reg when it is non-nil.
func newApp(cfg config.Config, backend *store.Backend, reg prometheus.Registerer, logger *slog.Logger) (*app, error) {
	hasher, err := auth.NewHasher(cfg.Security.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	credentials, err := auth.NewCredentialStore(backend.Identities, backend.Audit, hasher, auth.CredentialStoreConfig{
		Timeout: cfg.Storage.Timeout,
		Audit:   cfg.AuditFilter(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionStore(backend.Sessions, auth.SessionStoreConfig{
		Timeout: cfg.Storage.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	tracker := auth.NewTracker()
	service, err := auth.NewService(credentials, sessions, tracker, cfg.Policy(), auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	guard, err := gate.NewGuard(service, cfg.GateRestrictions())
	if err != nil {
		return nil, err
	}

	var throttle *command.Throttle
	if reg != nil {
		auth.RegisterMetrics(reg, tracker)
		command.RegisterMetrics(reg)
		throttle = command.NewThrottleWithRegistry(cfg.ThrottleConfig(), reg)
	} else {
		throttle = command.NewThrottle(cfg.ThrottleConfig())
	}

	registry := command.NewRegistry()
	handlers.RegisterAll(registry)
	aliases := command.NewAliasCache()
	aliases.LoadAliases(command.DefaultAliases)
	dispatcher, err := command.NewDispatcher(registry,
		command.WithAliasCache(aliases),
		command.WithThrottle(throttle),
		command.WithLogger(logger))
	if err != nil {
		throttle.Close()
		return nil, err
	}

	a := &app{
		service:  service,
		sessions: sessions,
		throttle: throttle,
		renderer: messages.NewRenderer(cfg.Language),
		logger:   logger,
	}
	commands := command.NewHandler(dispatcher, &command.Services{Auth: service, Reload: a.reload})
	a.gateway = telnet.NewGateway(service, guard, commands, logger)
	return a, nil
}

// reload re-reads the configuration and applies its auth policy. Other
// sections take effect on restart.
func (a *app) reload(_ context.Context) error {
	cfg, err := config.Load(a.configPath, a.flags)
	if err != nil {
		return err
	}
	if err := a.service.UpdatePolicy(cfg.Policy()); err != nil {
		return oops.Code("RELOAD_FAILED").Wrap(err)
	}
	a.logger.Info("configuration reloaded", "path", a.configPath)
	return nil
}

func (a *app) close() {
	a.throttle.Close()
}
