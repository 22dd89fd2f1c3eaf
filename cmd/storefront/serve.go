// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storefront/storefront/internal/config"
	"github.com/storefront/storefront/internal/observability"
	"github.com/storefront/storefront/internal/sweeper"
	"github.com/storefront/storefront/internal/web"
	"github.com/storefront/storefront/pkg/errutil"
)

// readHeaderTimeout bounds slow clients on the storefront listener.
const readHeaderTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront HTTP server",
		Long: `Start the storefront HTTP server, the metrics and health endpoints,
and the expired-session sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting storefront",
		"http_addr", cfg.HTTP.Addr,
		"database_driver", cfg.Database.Driver,
		"hash_algorithm", cfg.Auth.HashAlgorithm,
	)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open backend").Wrap(err)
	}
	defer be.Close()

	svc, err := newServices(cfg, be, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(cfg.Metrics.Addr, be.Ready)
		obsErr, err := obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go func() {
			if err, ok := <-obsErr; ok && err != nil {
				errutil.LogError(logger, "observability server failed", err)
				stop()
			}
		}()
		metrics = obs.Metrics()
	}

	if cfg.Sweeper.Schedule != "" {
		sw, err := sweeper.New(cfg.Sweeper.Schedule, svc.sessions, metrics, logger)
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		sw.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := sw.Stop(stopCtx); err != nil {
				logger.Warn("error stopping session sweeper", "error", err)
			}
		}()
	}

	handler, err := web.NewHandler(svc.registrar, svc.authenticator, svc.sessions, logger, web.Options{
		SecureCookie: cfg.Auth.SecureCookie,
		Metrics:      metrics,
	})
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	cmd.Printf("Storefront listening on %s\n", listener.Addr())
	logger.InfoContext(ctx, "storefront ready", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}

	logger.Info("shutdown complete")
	return nil
}
