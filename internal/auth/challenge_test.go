// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authentic-auth/authentic/internal/auth"
)

func TestNewVerificationChallenge(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("six digit code in range", func(t *testing.T) {
		for range 200 {
			c, err := auth.NewVerificationChallenge(now)
			require.NoError(t, err)
			require.Len(t, c.Token, auth.VerificationCodeDigits)
			n, err := strconv.Atoi(c.Token)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 100000)
			assert.LessOrEqual(t, n, 999999)
		}
	})

	t.Run("expires in 24 hours", func(t *testing.T) {
		c, err := auth.NewVerificationChallenge(now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(24*time.Hour), c.ExpiresAt)
	})
}

func TestNewResetChallenge(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c1, err := auth.NewResetChallenge(now)
	require.NoError(t, err)
	c2, err := auth.NewResetChallenge(now)
	require.NoError(t, err)

	assert.Len(t, c1.Token, 40)
	assert.Regexp(t, "^[0-9a-f]{40}$", c1.Token)
	assert.NotEqual(t, c1.Token, c2.Token)
	assert.Equal(t, now.Add(time.Hour), c1.ExpiresAt)
}

func TestHashResetToken(t *testing.T) {
	assert.Equal(t, auth.HashResetToken("abc"), auth.HashResetToken("abc"))
	assert.NotEqual(t, auth.HashResetToken("abc"), auth.HashResetToken("abd"))
	assert.Len(t, auth.HashResetToken("abc"), 64)
	assert.NotEqual(t, "abc", auth.HashResetToken("abc"))
}

func TestChallenge_IsExpiredAt(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &auth.Challenge{Token: "x", ExpiresAt: exp}

	assert.False(t, c.IsExpiredAt(exp.Add(-time.Nanosecond)))
	assert.True(t, c.IsExpiredAt(exp), "expiry instant is already expired")
	assert.True(t, c.IsExpiredAt(exp.Add(time.Second)))
}
