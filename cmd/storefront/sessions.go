// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/storefront/storefront/internal/auth"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every expired session",
		Long: `Delete every expired session now. A running server also purges
expired sessions on its sweeper schedule.`,
		RunE: runSessionsPurge,
	}
	addDatabaseFlags(purge)
	cmd.AddCommand(purge)

	return cmd
}

func runSessionsPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg.Database.AutoMigrate = false
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	identities, err := auth.NewIdentityMapper(be.Accounts)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	manager, err := auth.NewSessionManager(be.Sessions, identities, logger)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	n, err := manager.PurgeExpired(ctx)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	cmd.Printf("Purged %d expired session(s)\n", n)
	return nil
}
