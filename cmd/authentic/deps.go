// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/pflag"

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/internal/config"
	"github.com/authentic-auth/authentic/internal/notify"
	"github.com/authentic-auth/authentic/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the validated configuration.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// StoreOpener connects to the configured principal store. The returned
	// func releases it.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.PrincipalStore, func(), error)

	// MailerFactory creates the notification gateway.
	// Default: notify.NewSMTPMailer
	MailerFactory func(cfg notify.SMTPConfig, recorder notify.Recorder, logger *slog.Logger) (auth.Notifier, error)

	// APIServerFactory creates the API server.
	// Default: httpapi.NewServer
	APIServerFactory func(addr string, handler http.Handler, logger *slog.Logger) APIServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// APIServer interface wraps the methods used from httpapi.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
