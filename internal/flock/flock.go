// Package flock provides an advisory, cross-process lock on a data root.
package flock

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when another holder already has the lock.
var ErrLocked = errors.New("lock is held by another process")

// Lock is an acquired lock on a file. Release it exactly once.
type Lock struct {
	f *os.File
}

// TryAcquire opens or creates path and takes an exclusive lock on it
// without waiting. It returns an error wrapping ErrLocked when the lock is
// contended.
func TryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lock(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in
// place.
func (l *Lock) Release() error {
	unlockErr := unlock(l.f)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.f.Name(), unlockErr)
	}
	return closeErr
}
