package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	t.Run("acquires and releases lock successfully", func(t *testing.T) {
		dir := t.TempDir()
		lock := NewFileLock(dir)

		require.NoError(t, lock.Acquire())

		lockPath := filepath.Join(dir, LockFileName)
		assert.Equal(t, lockPath, lock.Path())
		data, err := os.ReadFile(lockPath)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

		require.NoError(t, lock.Release())

		_, err = os.Stat(lockPath)
		assert.True(t, os.IsNotExist(err), "lock file should be removed after release")
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "taskmap")
		lock := NewFileLock(dir)

		require.NoError(t, lock.Acquire())
		defer lock.Release()

		_, err := os.Stat(lock.Path())
		assert.NoError(t, err)
	})

	t.Run("second lock fails when first is held", func(t *testing.T) {
		dir := t.TempDir()
		lock1 := NewFileLock(dir)
		lock2 := NewFileLock(dir)

		require.NoError(t, lock1.Acquire())
		defer lock1.Release()

		err := lock2.Acquire()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLockHeld)

		var lockErr *LockError
		require.ErrorAs(t, err, &lockErr)
		assert.Equal(t, os.Getpid(), lockErr.PID)
		assert.Contains(t, err.Error(), "another taskmap process")
	})

	t.Run("can acquire lock after previous lock is released", func(t *testing.T) {
		dir := t.TempDir()
		lock1 := NewFileLock(dir)
		lock2 := NewFileLock(dir)

		require.NoError(t, lock1.Acquire())
		require.NoError(t, lock1.Release())

		require.NoError(t, lock2.Acquire())
		defer lock2.Release()
	})

	t.Run("release is idempotent", func(t *testing.T) {
		lock := NewFileLock(t.TempDir())

		require.NoError(t, lock.Acquire())
		require.NoError(t, lock.Release())
		assert.NoError(t, lock.Release())
	})
}

func TestFileLock_StaleLockCleanup(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	const stalePID = 99999999
	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(stalePID)), 0o644))
	if isProcessRunning(stalePID) {
		t.Skip("PID 99999999 is unexpectedly running")
	}

	lock := NewFileLock(dir)
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	assert.Equal(t, os.Getpid(), lock.readPID())
}

func TestFileLock_ReadPID(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		want    int
	}{
		{"valid", ptr("12345"), 12345},
		{"padded", ptr(" 42\n"), 42},
		{"invalid", ptr("not-a-number"), 0},
		{"missing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), []byte(*tt.content), 0o644))
			}
			assert.Equal(t, tt.want, NewFileLock(dir).readPID())
		})
	}
}

func TestLockError(t *testing.T) {
	withPID := &LockError{Err: ErrLockHeld, PID: 7}
	assert.Contains(t, withPID.Error(), "PID 7")
	assert.ErrorIs(t, withPID, ErrLockHeld)

	noPID := &LockError{Err: ErrLockAcquireFailed}
	assert.Equal(t, "cannot open data directory: "+ErrLockAcquireFailed.Error(), noPID.Error())
}

func ptr(s string) *string { return &s }
