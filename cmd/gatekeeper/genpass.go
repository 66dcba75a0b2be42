// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
)

const defaultGeneratedLength = 12

// NewGenpassCmd creates the genpass subcommand.
func NewGenpassCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "genpass",
		Short: "Print a random password that passes the strength check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := auth.GenerateSecurePassword(length)
			if err != nil {
				return err
			}
			cmd.Println(password)
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", defaultGeneratedLength, "password length (raised to the secure minimum)")

	return cmd
}
