package flock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charkeep.lock")

	held, err := TryAcquire(path)
	require.NoError(t, err)

	_, err = TryAcquire(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, held.Release())

	again, err := TryAcquire(path)
	require.NoError(t, err, "lock is free after release")
	require.NoError(t, again.Release())
}

func TestTryAcquire_MissingDirectory(t *testing.T) {
	_, err := TryAcquire(filepath.Join(t.TempDir(), "missing", "charkeep.lock"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
