package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".run.lock"
)

// RunLock is a cross-process lock guarding ingestion runs. Unlike a
// blocking lock it never waits: a second process simply skips its run.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates a lock at lockPath, or next to the database when
// lockPath is empty.
func NewRunLock(lockPath, dbPath string) (*RunLock, error) {
	if lockPath == "" {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute db path: %w", err)
		}
		lockPath = absPath + lockFileSuffix
	}
	if dir := filepath.Dir(lockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create lock directory: %w", err)
		}
	}
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

func (l *RunLock) Path() string { return l.path }

// TryLock acquires the lock if it is free and reports whether it did.
func (l *RunLock) TryLock() (bool, error) {
	locked, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	return locked, nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}
