// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storefront/storefront/internal/store"
)

// migrator is the subset of store.Migrator used by the migrate commands.
type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator creates a migrator for a database URL. Replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the storefront schema. Without a subcommand, applies all
pending migrations.`,
		RunE: runMigrateUp,
	}
	addDatabaseFlags(cmd)

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every account and session)",
		RunE:  runMigrateDown,
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		RunE:  runMigrateVersion,
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		RunE:  runMigrateStatus,
	}
	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	}

	for _, sub := range []*cobra.Command{up, down, versionCmd, status, force} {
		addDatabaseFlags(sub)
		cmd.AddCommand(sub)
	}
	return cmd
}

// addDatabaseFlags adds the flags administrative commands read.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
}

// withMigrator loads the configuration and runs fn against a migrator.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}

	m, err := newMigrator(cfg.Database.URL)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("Warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}

// migrateUp applies pending migrations for databaseURL.
func migrateUp(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	defer m.Close() //nolint:errcheck // close errors after a migration are not actionable

	return m.Up() //nolint:wrapcheck // already coded
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		pending, err := m.PendingMigrations()
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		if len(pending) == 0 {
			cmd.Println("No pending migrations")
			return nil
		}

		cmd.Printf("Applying %d migration(s)...\n", len(pending))
		if err := m.Up(); err != nil {
			return err //nolint:wrapcheck // already coded
		}

		v, _, err := m.Version()
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		cmd.Printf("Migrations completed successfully (version %d)\n", v)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	confirmed, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return oops.Code("FLAG_INVALID").Wrap(err)
	}
	if !confirmed {
		return oops.Code("CONFIRMATION_REQUIRED").
			Errorf("migrate down drops all accounts and sessions; rerun with --yes")
	}

	return withMigrator(cmd, func(m migrator) error {
		if err := m.Down(); err != nil {
			return err //nolint:wrapcheck // already coded
		}
		cmd.Println("All migrations rolled back")
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		cmd.Println(formatVersion(v, dirty))
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		pending, err := m.PendingMigrations()
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}

		cmd.Println(formatVersion(v, dirty))
		if len(pending) == 0 {
			cmd.Println("Pending: none")
			return nil
		}
		names := make([]string, len(pending))
		for i, p := range pending {
			names[i] = fmt.Sprintf("%d", p)
		}
		cmd.Printf("Pending: %s\n", strings.Join(names, ", "))
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	v, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	return withMigrator(cmd, func(m migrator) error {
		if err := m.Force(v); err != nil {
			return err //nolint:wrapcheck // already coded
		}
		cmd.Printf("Forced version %d\n", v)
		return nil
	})
}

// parseForceVersion parses a migration version argument.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func formatVersion(v uint, dirty bool) string {
	if v == 0 {
		return "Version: none (no migrations applied)"
	}
	if dirty {
		return fmt.Sprintf("Version: %d (dirty)", v)
	}
	return fmt.Sprintf("Version: %d", v)
}
