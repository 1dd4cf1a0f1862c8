package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/charkeep/internal/adapters/filesystem"
	"github.com/example/charkeep/internal/flock"
	"github.com/example/charkeep/internal/wire"
)

// lockRoot takes the data root lock that serve holds while it runs.
// busy describes the conflict when the lock is already held.
func lockRoot(busy string) (*flock.Lock, error) {
	layout := filesystem.NewLayout(wire.Config().Root)
	if err := os.MkdirAll(layout.Root(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create root: %w", err)
	}
	lock, err := flock.TryAcquire(layout.LockPath())
	if errors.Is(err, flock.ErrLocked) {
		return nil, fmt.Errorf("%s (%s is locked by charkeep serve)", busy, layout.Root())
	}
	return lock, err
}

func releaseRoot(lock *flock.Lock) {
	if err := lock.Release(); err != nil {
		wire.Logger().Warn("failed to release root lock", "error", err)
	}
}
