// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authentic-auth/authentic/internal/config"
	"github.com/authentic-auth/authentic/internal/store"
)

// migrator wraps the methods used from store.Migrator.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Manage the PostgreSQL principal schema. Only the postgres store
backend uses migrations; the mongo backend creates its index at startup.

With no subcommand, applies all pending migrations.`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all principals)",
		RunE:  runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		RunE:  runMigrateStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE:  runMigrateVersion,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	})

	return cmd
}

// getDatabaseURL returns the postgres URL from configuration.
func getDatabaseURL() (string, error) {
	path, err := resolveConfigFile()
	if err != nil {
		return "", oops.With("operation", "locate configuration").Wrap(err)
	}
	cfg, err := config.Read(path, nil)
	if err != nil {
		return "", oops.With("operation", "load configuration").Wrap(err)
	}
	if cfg.Store.PostgresURL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "store.postgres_url").
			Errorf("store.postgres_url (or DATABASE_URL) is required")
	}
	return cfg.Store.PostgresURL, nil
}

// withMigrator opens a migrator, runs fn and closes it.
func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return err
	}

	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
		}
		cmd.Println(formatVersion(version, dirty))
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
		}
		pending, err := m.PendingMigrations()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
		}

		cmd.Printf("Current version: %s\n", formatVersion(version, dirty))
		if len(pending) == 0 {
			cmd.Println("No pending migrations")
			return nil
		}
		cmd.Printf("Pending migrations (%d):\n", len(pending))
		for _, v := range pending {
			name, err := store.MigrationName(v)
			if err != nil || name == "" {
				name = fmt.Sprintf("%06d", v)
			}
			cmd.Printf("  %s\n", name)
		}
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	return withMigrator(cmd, func(m migrator) error {
		if err := m.Force(version); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
		}
		cmd.Printf("Forced version %d\n", version)
		return nil
	})
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatVersion(version uint, dirty bool) string {
	if version == 0 {
		return "none"
	}
	if dirty {
		return fmt.Sprintf("%d (dirty)", version)
	}
	return fmt.Sprintf("%d", version)
}
