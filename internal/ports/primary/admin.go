package primary

import (
	"context"
	"time"
)

// AdminService defines the primary port for operator tooling.
// Errors are returned directly with human-readable messages.
type AdminService interface {
	// ListRecords lists every current record on disk.
	ListRecords(ctx context.Context) ([]*Record, error)

	// ListSessions lists connected sessions.
	ListSessions(ctx context.Context) ([]*Session, error)

	// ListBackups lists the backups of a record, newest first.
	ListBackups(ctx context.Context, userID, recordName string) ([]*Backup, error)

	// Restore replaces a record with one of its backups.
	Restore(ctx context.Context, req RestoreRequest) (*Backup, error)

	// SetMigrationsAllowed toggles the global migration switch.
	SetMigrationsAllowed(ctx context.Context, allowed bool) error

	// MigrationsAllowed reports the global migration switch.
	MigrationsAllowed() bool

	// ForceFlushAll flushes every connected session now.
	ForceFlushAll(ctx context.Context) (*FlushSummary, error)

	// CheckConsistency compares the registry with the record store.
	CheckConsistency(ctx context.Context) (*ConsistencyReport, error)

	// FlushHistory queries the flush journal.
	FlushHistory(ctx context.Context, filters FlushHistoryFilters) ([]*FlushEntry, error)

	// PruneHistory deletes journal entries older than the given number of days.
	PruneHistory(ctx context.Context, olderThanDays int) (int, error)
}

// Record represents a persisted record at the port boundary.
type Record struct {
	UserID     string
	RecordName string
	ModifiedAt time.Time
	Size       int64
	Migrated   bool
}

// Session represents a connected user at the port boundary.
type Session struct {
	Handle        ConnectionHandle
	UserID        string
	DisplayName   string
	RecordName    string
	BufferedBytes int
	Dirty         bool
	ConnectedAt   time.Time
	LastSave      time.Time
}

// Backup represents one backup at the port boundary.
// Index is the position accepted by Restore.
type Backup struct {
	Index     int
	Name      string
	CreatedAt time.Time
	Size      int64
}

// RestoreRequest contains parameters for restoring a backup.
type RestoreRequest struct {
	UserID     string
	RecordName string
	Index      int
}

// FlushSummary reports the outcome of a batch flush.
type FlushSummary struct {
	Trigger   string
	Persisted int
	Skipped   int
	Failed    int
	Errors    []string
}

// ConsistencyReport lists registry/record disagreements.
type ConsistencyReport struct {
	// RecordsWithoutRegistry are records whose user is not registered.
	RecordsWithoutRegistry []Record
	// RegisteredWithoutRecord are registered users with no record.
	RegisteredWithoutRecord []string
}

// Consistent reports whether no disagreement was found.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.RecordsWithoutRegistry) == 0 && len(r.RegisteredWithoutRecord) == 0
}

// FlushEntry represents a journal entry at the port boundary.
type FlushEntry struct {
	ID         string
	Timestamp  string
	Trigger    string
	Handle     ConnectionHandle
	UserID     string
	RecordName string
	Bytes      int
	Outcome    string
	FirstWrite bool
	Error      string
	DurationMS int64
}

// FlushHistoryFilters contains filter options for FlushHistory.
type FlushHistoryFilters struct {
	UserID  string
	Outcome string
	Trigger string
	Limit   int
}
