// Package lock keeps two syncignore processes from watching the same root.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// FileLock provides cross-process file locking using gofrs/flock.
// The lock is advisory and released automatically when the process exits.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// DefaultDir returns the directory holding lock files (~/.syncignore/locks).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".syncignore", "locks")
	}
	return filepath.Join(home, ".syncignore", "locks")
}

// ForRoot creates a lock for watch root inside dir. The lock file name is
// derived from the root path, so every root gets its own lock.
func ForRoot(dir, root string) *FileLock {
	sum := sha256.Sum256([]byte(root))
	lockPath := filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock for root without blocking. It fails with
// ERR_104_INSTANCE_LOCKED when another process holds it.
func Acquire(dir, root string) (*FileLock, error) {
	l := ForRoot(dir, root)
	acquired, err := l.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, syerrors.New(syerrors.ErrCodeInstanceLocked,
			fmt.Sprintf("another syncignore process is watching %s", root), nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other process or remove the stale lock file")
	}

	// Record who holds the lock; purely informational.
	_ = os.WriteFile(l.path, []byte(fmt.Sprintf("%d %s\n", os.Getpid(), root)), 0o644)
	return l, nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held by another process.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the file lock.
// It's safe to call Unlock multiple times or on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
