// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/breadsocial/bread/internal/config"
	"github.com/breadsocial/bread/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Bread CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bread",
		Short: "Bread - a small social posting service",
		Long: `Bread is a small social posting service: accounts with argon2id
passwords, cookie sessions, and posts kept in a document store
(MongoDB, PostgreSQL JSONB or in-memory).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/bread/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads the config file named by --config, or the default file
// when one exists, overlaid by the flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	return config.Load(path, cmd.Flags())
}
