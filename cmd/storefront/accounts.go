// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storefront/storefront/internal/auth"
)

// NewAccountsCmd creates the accounts subcommand.
func NewAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Administer accounts",
	}

	del := &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete an account and its sessions",
		Long: `Delete the account registered with EMAIL. Its sessions are deleted
first; any session missed here resolves as unauthenticated.`,
		Args: cobra.ExactArgs(1),
		RunE: runAccountsDelete,
	}
	addDatabaseFlags(del)
	cmd.AddCommand(del)

	return cmd
}

func runAccountsDelete(cmd *cobra.Command, args []string) error {
	email := args[0]

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

	account, err := be.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Errorf("no account registered for %s", email)
		}
		return err //nolint:wrapcheck // already coded
	}

	if err := be.Sessions.DeleteByAccount(ctx, account.ID); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if err := be.Accounts.Delete(ctx, account.ID); err != nil {
		return err //nolint:wrapcheck // already coded
	}

	logger.InfoContext(ctx, "account deleted", "account", account)
	cmd.Printf("Deleted account %s\n", email)
	return nil
}
