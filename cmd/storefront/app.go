// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/auth/memstore"
	authpg "github.com/storefront/storefront/internal/auth/postgres"
	"github.com/storefront/storefront/internal/config"
	"github.com/storefront/storefront/internal/logging"
	"github.com/storefront/storefront/internal/observability"
	"github.com/storefront/storefront/internal/store"
	"github.com/storefront/storefront/internal/xdg"
)

const serviceName = "storefront"

// loadConfig reads the configuration for cmd from the config file and the
// command's flags, then validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	return cfg, nil
}

// setupLogging installs the process-wide logger described by cfg.
func setupLogging(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return logging.SetDefault(logging.Options{ //nolint:wrapcheck // already coded
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Output:  cmd.ErrOrStderr(),
	})
}

// backend holds the account and session stores selected by configuration.
type backend struct {
	Accounts auth.AccountRepository
	Sessions auth.SessionRepository
	// Ready reports whether the stores can serve requests.
	Ready observability.ReadinessChecker
	close func()
}

// Close releases the backend's resources.
func (b *backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// backendOpener opens the stores for cfg. Replaced in tests.
type backendOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error)

// openBackend is the backendOpener used by every command.
var openBackend backendOpener = openConfiguredBackend

func openConfiguredBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; accounts and sessions are lost on exit")
		return memoryBackend(), nil
	default:
		return openPostgresBackend(ctx, cfg, logger)
	}
}

func memoryBackend() *backend {
	return &backend{
		Accounts: memstore.NewAccountRepository(),
		Sessions: memstore.NewSessionRepository(),
		Ready:    func(context.Context) error { return nil },
	}
}

func openPostgresBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	db, err := store.Connect(ctx, cfg.Database.URL,
		store.WithConnectRetry(cfg.Database.ConnectAttempts, cfg.Database.ConnectBackoff))
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database schema up to date")
	}

	return &backend{
		Accounts: authpg.NewAccountRepository(db.Pool()),
		Sessions: authpg.NewSessionRepository(db.Pool()),
		Ready:    db.Ping,
		close:    db.Close,
	}, nil
}

// requirePostgres rejects administrative commands against the memory driver,
// whose data exists only inside a running server.
func requirePostgres(cfg *config.Config) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.driver").
			Errorf("this command requires the %s driver", config.DriverPostgres)
	}
	return nil
}

// services are the auth components built over a backend.
type services struct {
	registrar     *auth.Registrar
	authenticator *auth.Authenticator
	sessions      *auth.SessionManager
}

func newServices(cfg *config.Config, be *backend, logger *slog.Logger) (*services, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Auth.HashAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	registrar, err := auth.NewRegistrar(be.Accounts, hasher, logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	authenticator, err := auth.NewAuthenticator(be.Accounts, hasher, logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	identities, err := auth.NewIdentityMapper(be.Accounts)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	sessions, err := auth.NewSessionManager(be.Sessions, identities, logger,
		auth.WithSessionTTL(cfg.Auth.SessionTTL))
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	return &services{registrar: registrar, authenticator: authenticator, sessions: sessions}, nil
}
