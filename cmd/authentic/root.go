// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authentic-auth/authentic/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Authentic CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authentic",
		Short: "Authentic - user authentication service",
		Long: `Authentic is a user authentication service providing signup,
email verification, login and password reset over an HTTP JSON API
with cookie-based sessions.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/authentic/config.yaml)")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// resolveConfigFile returns the --config path, or the XDG config file when
// the flag is unset and that file exists.
func resolveConfigFile() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return xdg.DefaultConfigFile()
}
