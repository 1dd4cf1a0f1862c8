// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/charkeep/internal/core/record"
)

// RecordStore defines the secondary port for current-record persistence.
// One blob per record.Key; writes replace the whole blob.
type RecordStore interface {
	// Get returns the current blob or an error wrapping record.ErrNotFound.
	Get(ctx context.Context, key record.Key) ([]byte, error)

	// Exists reports whether a current record is present.
	Exists(ctx context.Context, key record.Key) (bool, error)

	// Put replaces the current record unconditionally.
	Put(ctx context.Context, key record.Key, blob []byte) error

	// List scans the record directory. Order is unspecified.
	List(ctx context.Context) ([]*RecordInfo, error)
}

// RecordInfo describes a current record found on disk.
type RecordInfo struct {
	Key        record.Key
	ModifiedAt time.Time
	Size       int64
}

// BackupStore defines the secondary port for rotated record snapshots.
type BackupStore interface {
	// Snapshot copies the current record into the backups and enforces
	// retention. It returns nil, nil when there is no current record.
	Snapshot(ctx context.Context, key record.Key) (*BackupEntry, error)

	// List returns the backups of a key, newest first.
	List(ctx context.Context, key record.Key) ([]*BackupEntry, error)

	// Restore replaces the current record with the backup at index,
	// keeping the replaced state in the pre-restore sidecar.
	Restore(ctx context.Context, key record.Key, index int) (*BackupEntry, error)
}

// BackupEntry describes one immutable snapshot file.
type BackupEntry struct {
	Key       record.Key
	Name      string
	CreatedAt time.Time
	Seq       int
	Size      int64
}

// MigrationRegistry defines the secondary port for the set of users that
// completed their one-time import.
type MigrationRegistry interface {
	// Load reads the backing log into memory. Called once at startup.
	Load(ctx context.Context) error

	// Contains reports whether userID has migrated.
	Contains(userID string) bool

	// MarkMigrated adds userID, returning true only if it was not present.
	MarkMigrated(ctx context.Context, userID string) (bool, error)

	// All returns the registered user ids, sorted.
	All() []string
}
