// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/internal/config"
	"github.com/authentic-auth/authentic/internal/httpapi"
	"github.com/authentic-auth/authentic/internal/logging"
	"github.com/authentic-auth/authentic/internal/notify"
	"github.com/authentic-auth/authentic/internal/observability"
	"github.com/authentic-auth/authentic/pkg/errutil"
)

// serviceName labels every log record.
const serviceName = "authentic"

// shutdownTimeout bounds graceful shutdown of all servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP JSON API under /api/v1/auth, backed by the
configured principal store, plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.MailerFactory == nil {
		deps.MailerFactory = func(cfg notify.SMTPConfig, recorder notify.Recorder, logger *slog.Logger) (auth.Notifier, error) {
			return notify.NewSMTPMailer(cfg, recorder, logger)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) APIServer {
			return httpapi.NewServer(addr, handler, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}

	path, err := resolveConfigFile()
	if err != nil {
		return oops.With("operation", "locate configuration").Wrap(err)
	}
	cfg, err := deps.ConfigLoader(path, cmd.Flags())
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}
	logger := logging.SetDefault(serviceName, version, cfg.LogFormat, level)

	logger.Info("starting authentic",
		"listen_addr", cfg.ListenAddr,
		"store_backend", cfg.Store.Backend,
		"production", cfg.Production,
	)

	principals, releaseStore, err := deps.StoreOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open principal store").Wrap(err)
	}
	defer releaseStore()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, principals.Ping, logger)
		metrics = obsServer.Metrics()
	} else {
		// Metrics are still collected so instrumentation stays uniform.
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	mailer, err := deps.MailerFactory(notify.SMTPConfig{
		Host:       cfg.SMTP.Host,
		User:       cfg.SMTP.User,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		SkipVerify: cfg.SMTP.SkipVerify,
	}, metrics, logger)
	if err != nil {
		return oops.With("operation", "create mailer").Wrap(err)
	}

	issuer, err := auth.NewSessionIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		return oops.With("operation", "create session issuer").Wrap(err)
	}

	svc, err := auth.NewService(principals, auth.NewBcryptHasher(), issuer, mailer, auth.ServiceConfig{
		ResetURLBase: cfg.AllowedOrigin(),
		Logger:       logger,
	})
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	handler := httpapi.NewHandler(svc, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin(),
		SecureCookies: cfg.Production,
		Observer:      metrics,
		Logger:        logger,
	})

	apiServer := deps.APIServerFactory(cfg.ListenAddr, handler, logger)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return oops.With("operation", "start observability server").Wrap(err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Authentic started")
	logger.Info("authentic ready", "api_addr", apiServer.Addr())

	// Wait for shutdown signal or error
	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-apiErrChan:
		if ok && err != nil {
			serveErr = oops.With("operation", "serve api").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return serveErr
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
