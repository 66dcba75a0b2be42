// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatekeeper CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper - player authentication for game servers",
		Long: `Gatekeeper registers and authenticates players, restores
origin-pinned sessions, and blocks unauthenticated players from chat,
movement, commands, and inventory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/gatekeeper/gatekeeper.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewGenpassCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// configPath returns the explicit --config value, or the default file when
// it exists. An empty result means defaults and flags only.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if path := config.DefaultPath(); fileExists(path) {
		return path
	}
	return ""
}

// loadConfig loads the configuration for cmd, honoring its flags.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path := configPath()
	cfg, err := config.Load(path, cmd.Flags())
	return cfg, path, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
