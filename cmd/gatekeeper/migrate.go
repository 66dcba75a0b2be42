// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/xdg"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply all pending schema migrations to the configured storage backend.
Without a subcommand, migrate behaves like "migrate up".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied and pending migration versions",
		Args:  cobra.NoArgs,
		RunE:  runMigrateVersion,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the migration version without running migrations",
		Long: `Set the recorded migration version without running migrations.
Use only to recover from a dirty schema after fixing it by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})

	return cmd
}

func migrationConfig(cmd *cobra.Command) (store.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return store.Config{}, err
	}
	if cfg.Storage.Backend == string(store.DriverSQLite) {
		if err := xdg.EnsureDir(filepath.Dir(cfg.Storage.Path)); err != nil {
			return store.Config{}, err
		}
	}
	return cfg.StoreConfig(true), nil
}

func openMigrator(sc store.Config) (*store.Migrator, error) {
	url, err := sc.MigrationURL()
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(sc.Driver, url, sc.TablePrefix)
}

func runMigrateUp(cmd *cobra.Command) error {
	sc, err := migrationConfig(cmd)
	if err != nil {
		return err
	}

	cmd.Println("Running migrations...")
	version, err := store.Migrate(sc, slog.Default())
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Printf("Migrations completed successfully (version %d)\n", version)
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	sc, err := migrationConfig(cmd)
	if err != nil {
		return err
	}
	m, err := openMigrator(sc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			slog.Warn("failed to close migrator", "error", cerr)
		}
	}()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Version: %d (%s)\n", version, state)
	if len(pending) == 0 {
		cmd.Println("Pending: none")
		return nil
	}
	names := make([]string, 0, len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(sc.Driver, v)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(v), 10)
		}
		names = append(names, name)
	}
	cmd.Printf("Pending: %s\n", strings.Join(names, ", "))
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	sc, err := migrationConfig(cmd)
	if err != nil {
		return err
	}
	m, err := openMigrator(sc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			slog.Warn("failed to close migrator", "error", cerr)
		}
	}()

	if err := m.Force(version); err != nil {
		return err
	}
	cmd.Printf("Forced migration version to %d\n", version)
	return nil
}

// parseForceVersion parses a non-negative migration version.
func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).
			Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}

