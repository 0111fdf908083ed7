// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		names[entry.Name()] = true
		assert.True(t, pattern.MatchString(entry.Name()),
			"file %s should match NNNNNN_name.(up|down).sql", entry.Name())
	}

	assert.True(t, names["000001_principals.up.sql"])
	assert.True(t, names["000001_principals.down.sql"])

	// Every up migration has a matching down.
	for name := range names {
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[base+".down.sql"], "missing down migration for %s", base)
		}
	}
}

func TestMigrationsFS_PrincipalSchema(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000001_principals.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "CONSTRAINT principals_email_key UNIQUE (email)")
	assert.Contains(t, sql, "reset_token_hash")
	assert.NotContains(t, sql, "reset_token ", "reset tokens are stored only as digests")
}

func TestMigrationsFS_ChallengeIndexesAreUnique(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000003_unique_verification_token.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "CREATE UNIQUE INDEX idx_principals_verification_token")
	assert.Contains(t, sql, "WHERE verification_token IS NOT NULL")

	raw, err = migrationsFS.ReadFile("migrations/000002_challenge_indexes.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_reset_token_hash")
}
