// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authentic-auth/authentic/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	stepsCalled    bool
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *mockMigrate) Up() error   { return m.upErr }
func (m *mockMigrate) Down() error { return m.downErr }
func (m *mockMigrate) Steps(_ int) error {
	m.stepsCalled = true
	return m.stepsErr
}
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/authentic")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestPgx5URL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@h/db":   "pgx5://u:p@h/db",
		"postgresql://u:p@h/db": "pgx5://u:p@h/db",
		"pgx5://u:p@h/db":       "pgx5://u:p@h/db",
	}
	for in, want := range tests {
		assert.Equal(t, want, pgx5URL(in), in)
	}
}

func TestMigrator_Operations(t *testing.T) {
	boom := errors.New("database locked")

	tests := []struct {
		name     string
		mock     *mockMigrate
		run      func(m *Migrator) error
		wantCode string
	}{
		{"up", &mockMigrate{}, (*Migrator).Up, ""},
		{"up no change", &mockMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up error", &mockMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &mockMigrate{}, (*Migrator).Down, ""},
		{"down no change", &mockMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down error", &mockMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &mockMigrate{}, func(m *Migrator) error { return m.Steps(2) }, ""},
		{"steps error", &mockMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"force", &mockMigrate{}, func(m *Migrator) error { return m.Force(1) }, ""},
		{"force negative", &mockMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"force error", &mockMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"close", &mockMigrate{}, (*Migrator).Close, ""},
		{"close source error", &mockMigrate{closeSourceErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
		{"close database error", &mockMigrate{closeDBErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
		{"close both errors", &mockMigrate{closeSourceErr: boom, closeDBErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_StepsZeroIsNoOp(t *testing.T) {
	mm := &mockMigrate{stepsErr: errors.New("should not be called")}
	require.NoError(t, (&Migrator{m: mm}).Steps(0))
	assert.False(t, mm.stepsCalled)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("empty database", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		_, _, err := (&Migrator{m: &mockMigrate{versionErr: errors.New("no connection")}}).Version()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	all, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	latest := all[len(all)-1]

	t.Run("fresh database", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		pending, err := m.PendingMigrations()
		require.NoError(t, err)
		assert.Equal(t, all, pending)

		applied, err := m.AppliedMigrations()
		require.NoError(t, err)
		assert.Empty(t, applied)
	})

	t.Run("at latest", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: latest}}
		pending, err := m.PendingMigrations()
		require.NoError(t, err)
		assert.Empty(t, pending)

		applied, err := m.AppliedMigrations()
		require.NoError(t, err)
		assert.Equal(t, all, applied)
	})

	t.Run("after first", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 1}}
		pending, err := m.PendingMigrations()
		require.NoError(t, err)
		assert.NotContains(t, pending, uint(1))
		assert.Len(t, pending, len(all)-1)
	})

	t.Run("version error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("boom")}}
		_, err := m.PendingMigrations()
		require.Error(t, err)
		_, err = m.AppliedMigrations()
		require.Error(t, err)
	})
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_principals", name)

	name, err = MigrationName(9999)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 42

	second, err := migrationVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
