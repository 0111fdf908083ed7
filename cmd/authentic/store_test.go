// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authentic-auth/authentic/internal/auth/memory"
	"github.com/authentic-auth/authentic/internal/config"
	"github.com/authentic-auth/authentic/pkg/errutil"
)

// fastRetries shrinks the connection backoff for the duration of the test.
func fastRetries(t *testing.T) {
	t.Helper()
	base, ceiling, retries := connectBackoffBase, connectBackoffCap, connectMaxRetries
	connectBackoffBase = time.Millisecond
	connectBackoffCap = 2 * time.Millisecond
	connectMaxRetries = 3
	t.Cleanup(func() {
		connectBackoffBase, connectBackoffCap, connectMaxRetries = base, ceiling, retries
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestConnectWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		fastRetries(t)
		calls := 0
		err := connectWithRetry(context.Background(), discardLogger(), "mongo", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		fastRetries(t)
		calls := 0
		err := connectWithRetry(context.Background(), discardLogger(), "postgres", func(context.Context) error {
			calls++
			return errors.New("connection refused")
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "backend", "postgres")
		assert.Equal(t, 4, calls, "one attempt plus three retries")
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		fastRetries(t)
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := connectWithRetry(ctx, discardLogger(), "mongo", func(context.Context) error {
			calls++
			cancel()
			return errors.New("connection refused")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestOpenStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}}
		st, release, err := openStore(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		defer release()
		assert.IsType(t, &memory.Store{}, st)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: "redis"}}
		_, _, err := openStore(context.Background(), cfg, discardLogger())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("unreachable postgres", func(t *testing.T) {
		fastRetries(t)
		cfg := &config.Config{Store: config.StoreConfig{
			Backend:     config.BackendPostgres,
			PostgresURL: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1",
		}}
		_, _, err := openStore(context.Background(), cfg, discardLogger())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
	})
}
