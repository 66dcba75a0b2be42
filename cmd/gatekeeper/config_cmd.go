// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a configuration file against the schema and field rules",
		Long: `Check a configuration file against the JSON Schema, then load it and
apply the field rules. Without FILE, the --config file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigValidate,
	})

	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return oops.Code("CONFIG_MISSING").Errorf("no configuration file given")
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := config.ValidateSchema(data); err != nil {
		cmd.PrintErrf("%s: %s\n", path, config.FormatSchemaError(err))
		return err
	}
	if _, err := config.Load(path, nil); err != nil {
		cmd.PrintErrf("%s: %v\n", path, err)
		return err
	}
	cmd.Printf("%s: ok\n", path)
	return nil
}
