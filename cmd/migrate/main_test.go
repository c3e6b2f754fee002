package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	target  uint
	forced  int
	version uint
	dirty   bool
	err     error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}

func (f *fakeMigrator) Migrate(version uint) error {
	f.calls = append(f.calls, "migrate")
	f.target = version
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.err
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{err: migrate.ErrNoChange}
	var out bytes.Buffer
	require.NoError(t, run(m, nil, &out))
	assert.Equal(t, []string{"up"}, m.calls)
	assert.Equal(t, "migrations complete\n", out.String())
}

func TestRunDown(t *testing.T) {
	m := &fakeMigrator{}
	var out bytes.Buffer
	require.NoError(t, run(m, []string{"down"}, &out))
	assert.Equal(t, -1, m.steps)

	require.NoError(t, run(m, []string{"down", "3"}, &out))
	assert.Equal(t, -3, m.steps)
	assert.Contains(t, out.String(), "rolled back 3 migration(s)")

	assert.Error(t, run(m, []string{"down", "0"}, &out))
	assert.Error(t, run(m, []string{"down", "x"}, &out))
}

func TestRunGotoAndForce(t *testing.T) {
	m := &fakeMigrator{}
	var out bytes.Buffer
	require.NoError(t, run(m, []string{"goto", "1"}, &out))
	assert.Equal(t, uint(1), m.target)

	require.NoError(t, run(m, []string{"force", "1"}, &out))
	assert.Equal(t, 1, m.forced)

	assert.ErrorContains(t, run(m, []string{"force"}, &out), "requires a version")
	assert.ErrorContains(t, run(m, []string{"goto", "-2"}, &out), "invalid version")
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&fakeMigrator{version: 1, dirty: true}, []string{"version"}, &out))
	assert.Equal(t, "version 1 (dirty=true)\n", out.String())

	out.Reset()
	require.NoError(t, run(&fakeMigrator{err: migrate.ErrNilVersion}, []string{"version"}, &out))
	assert.Equal(t, "no migrations applied\n", out.String())
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run(&fakeMigrator{}, []string{"sideways"}, &out), "unknown command")
	assert.ErrorContains(t, run(&fakeMigrator{err: errors.New("dirty database")}, []string{"up"}, &out), "dirty database")
}
