package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miner.lock")

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = AcquireLock(path)
	assert.Error(t, err, "live lock must not be taken over")
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miner.lock")
	// A PID that no process can have.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	lock.Release()
}

func TestLockReleaseRemovesFileAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miner.lock")

	lock, err := AcquireLock(path)
	require.NoError(t, err)

	lock.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	lock.Release()
}

func TestTouchHealthcheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthcheck")

	before := time.Now().Unix()
	require.NoError(t, TouchHealthcheck(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	stamp, err := strconv.ParseInt(string(data), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stamp, before)
	assert.LessOrEqual(t, stamp, time.Now().Unix())
}
