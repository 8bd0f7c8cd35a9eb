// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadsocial/bread/pkg/errutil"
)

type fakeMigrator struct {
	calls      []string
	forced     int
	version    uint
	dirty      bool
	pending    []uint
	failUp     error
	closeCount int
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.failUp
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, nil
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return nil
}

func (f *fakeMigrator) Pending() ([]uint, error) {
	return f.pending, nil
}

func (f *fakeMigrator) Close() error {
	f.closeCount++
	return nil
}

// useFakeMigrator swaps newMigrator for the duration of the test.
func useFakeMigrator(t *testing.T, fake *fakeMigrator) *string {
	t.Helper()
	var gotURL string
	orig := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		gotURL = databaseURL
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	return &gotURL
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrateUp(t *testing.T) {
	fake := &fakeMigrator{}
	gotURL := useFakeMigrator(t, fake)

	out, err := runRoot(t, "migrate", "up", "--database-url", "postgres://bread@localhost/bread")
	require.NoError(t, err)

	assert.Equal(t, "postgres://bread@localhost/bread", *gotURL)
	assert.Equal(t, []string{"up"}, fake.calls)
	assert.Equal(t, 1, fake.closeCount)
	assert.Contains(t, out, "Migrations applied successfully")
}

func TestMigrateUp_Failure(t *testing.T) {
	fake := &fakeMigrator{failUp: errors.New("dirty database version 1")}
	useFakeMigrator(t, fake)

	_, err := runRoot(t, "migrate", "up", "--database-url", "postgres://localhost/bread")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.Equal(t, 1, fake.closeCount)
}

func TestMigrateDown(t *testing.T) {
	fake := &fakeMigrator{}
	useFakeMigrator(t, fake)

	_, err := runRoot(t, "migrate", "down", "--database-url", "postgres://localhost/bread")
	require.NoError(t, err)
	assert.Equal(t, []string{"down"}, fake.calls)
}

func TestMigrateVersion(t *testing.T) {
	fake := &fakeMigrator{version: 1, dirty: true, pending: []uint{2, 3}}
	useFakeMigrator(t, fake)

	out, err := runRoot(t, "migrate", "version", "--database-url", "postgres://localhost/bread")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 1 (dirty: true)")
	assert.Contains(t, out, "pending: 2")
}

func TestMigrateForce(t *testing.T) {
	fake := &fakeMigrator{}
	useFakeMigrator(t, fake)

	_, err := runRoot(t, "migrate", "force", "1", "--database-url", "postgres://localhost/bread")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.forced)

	_, err = runRoot(t, "migrate", "force", "abc", "--database-url", "postgres://localhost/bread")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	fake := &fakeMigrator{}
	useFakeMigrator(t, fake)

	_, err := runRoot(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, fake.calls)
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "negative returns error", input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
