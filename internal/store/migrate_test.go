// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customfields/customfields/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	forced         []int
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func (m *mockMigrate) Force(v int) error {
	m.forced = append(m.forced, v)
	return m.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/fields")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/fields":   "pgx5://u:p@db:5432/fields",
		"postgresql://u:p@db:5432/fields": "pgx5://u:p@db:5432/fields",
		"pgx5://db/fields":                "pgx5://db/fields",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
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
		{name: "up", mock: &mockMigrate{}, run: (*Migrator).Up},
		{name: "up with no change", mock: &mockMigrate{upErr: migrate.ErrNoChange}, run: (*Migrator).Up},
		{name: "up failure", mock: &mockMigrate{upErr: boom}, run: (*Migrator).Up, wantCode: "MIGRATION_UP_FAILED"},
		{name: "down with no change", mock: &mockMigrate{downErr: migrate.ErrNoChange}, run: (*Migrator).Down},
		{name: "down failure", mock: &mockMigrate{downErr: boom}, run: (*Migrator).Down, wantCode: "MIGRATION_DOWN_FAILED"},
		{
			name: "steps with no change",
			mock: &mockMigrate{stepsErr: migrate.ErrNoChange},
			run:  func(m *Migrator) error { return m.Steps(1) },
		},
		{
			name:     "steps failure",
			mock:     &mockMigrate{stepsErr: boom},
			run:      func(m *Migrator) error { return m.Steps(-1) },
			wantCode: "MIGRATION_STEPS_FAILED",
		},
		{
			name:     "force failure",
			mock:     &mockMigrate{forceErr: boom},
			run:      func(m *Migrator) error { return m.Force(1) },
			wantCode: "MIGRATION_FORCE_FAILED",
		},
		{name: "close", mock: &mockMigrate{}, run: (*Migrator).Close},
		{
			name:     "close with source error",
			mock:     &mockMigrate{closeSourceErr: boom},
			run:      (*Migrator).Close,
			wantCode: "MIGRATION_CLOSE_FAILED",
		},
		{
			name:     "close with database error",
			mock:     &mockMigrate{closeDbErr: boom},
			run:      (*Migrator).Close,
			wantCode: "MIGRATION_CLOSE_FAILED",
		},
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

func TestMigrator_CloseKeepsBothErrors(t *testing.T) {
	m := &Migrator{m: &mockMigrate{
		closeSourceErr: errors.New("source gone"),
		closeDbErr:     errors.New("conn reset"),
	}}
	err := m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source gone")
	assert.Contains(t, err.Error(), "conn reset")
}

func TestMigrator_Version(t *testing.T) {
	t.Run("nil version is zero", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 1, dirty: true}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
		assert.True(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("no table")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_ForceRejectsNegativeVersion(t *testing.T) {
	mock := &mockMigrate{}
	err := (&Migrator{m: mock}).Force(-1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, mock.forced)
}

func TestMigrator_Status(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)

	t.Run("fresh database", func(t *testing.T) {
		st, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Status()
		require.NoError(t, err)
		assert.Zero(t, st.Version)
		assert.Empty(t, st.Applied)
		assert.Equal(t, all, st.Pending)
	})

	t.Run("at latest", func(t *testing.T) {
		latest := all[len(all)-1].Version
		st, err := (&Migrator{m: &mockMigrate{versionVal: latest}}).Status()
		require.NoError(t, err)
		assert.Equal(t, all, st.Applied)
		assert.Empty(t, st.Pending)
	})

	t.Run("version failure", func(t *testing.T) {
		_, err := (&Migrator{m: &mockMigrate{versionErr: errors.New("boom")}}).Status()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}
