package resilience

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	lock := NewPipelineLock(path, "index_all")

	require.NoError(t, lock.Acquire())
	assert.FileExists(t, path)
	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)
}

func TestPipelineLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	lock := NewPipelineLock(path, "index_all")
	other := NewPipelineLock(path, "index_all")

	require.NoError(t, lock.Acquire())
	defer lock.Release()

	err := other.Acquire()
	assert.Error(t, err)
}

func TestPipelineLock_ReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	stalePayload := `{"pid":1,"name":"old","acquired_at":"2000-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(stalePayload), 0o644))

	lock := NewPipelineLock(path, "index_all")
	require.NoError(t, lock.Acquire())
	defer lock.Release()
	assert.FileExists(t, path)
}

func TestPipelineLock_WithLockReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	lock := NewPipelineLock(path, "index_all")

	err := lock.WithLock(func() error {
		return assertErr
	})
	assert.Equal(t, assertErr, err)
	assert.NoFileExists(t, path)
}

func TestPipelineLock_IsStaleRespectsTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	lock := NewPipelineLock(path, "index_all")
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	stale, err := lock.isStale()
	require.NoError(t, err)
	assert.False(t, stale, "a freshly-acquired lock must not be stale")
}

var assertErr = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }
