// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/internal/auth/memory"
	authmongo "github.com/authentic-auth/authentic/internal/auth/mongo"
	authpostgres "github.com/authentic-auth/authentic/internal/auth/postgres"
	"github.com/authentic-auth/authentic/internal/config"
	"github.com/authentic-auth/authentic/internal/store"
)

// Store connection retry policy.
var (
	connectBackoffBase = 500 * time.Millisecond
	connectBackoffCap  = 5 * time.Second
	connectMaxRetries  = uint64(6)
)

// openStore connects to the configured backend, retrying transient
// connection failures with exponential backoff.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.PrincipalStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory principal store, data is lost on exit")
		return memory.NewStore(), func() {}, nil

	case config.BackendMongo:
		var st *authmongo.Store
		var release func()
		err := connectWithRetry(ctx, logger, config.BackendMongo, func(ctx context.Context) error {
			client, err := authmongo.Connect(ctx, cfg.Store.MongoURI)
			if err != nil {
				return err
			}
			s, err := authmongo.NewStore(ctx, client, cfg.Store.MongoDatabase)
			if err != nil {
				_ = client.Disconnect(ctx) //nolint:errcheck // store error takes precedence
				return err
			}
			st = s
			release = func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(shutdownCtx); err != nil {
					logger.Warn("error disconnecting from mongo", "error", err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to principal store", "backend", config.BackendMongo, "database", cfg.Store.MongoDatabase)
		return st, release, nil

	case config.BackendPostgres:
		var st *authpostgres.Store
		var release func()
		err := connectWithRetry(ctx, logger, config.BackendPostgres, func(ctx context.Context) error {
			pool, err := store.Connect(ctx, cfg.Store.PostgresURL)
			if err != nil {
				return err
			}
			st = authpostgres.NewStore(pool)
			release = pool.Close
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to principal store", "backend", config.BackendPostgres)
		return st, release, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "store.backend").
			Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// connectWithRetry calls connect until it succeeds, the retry budget is
// spent or ctx is done.
func connectWithRetry(ctx context.Context, logger *slog.Logger, backend string, connect func(context.Context) error) error {
	backoff := retry.NewExponential(connectBackoffBase)
	backoff = retry.WithCappedDuration(connectBackoffCap, backoff)
	backoff = retry.WithMaxRetries(connectMaxRetries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := connect(ctx); err != nil {
			logger.WarnContext(ctx, "principal store connection failed",
				"backend", backend,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("backend", backend).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
