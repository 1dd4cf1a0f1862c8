package secondary

import "context"

// FlushJournal defines the secondary port for the flush audit trail.
type FlushJournal interface {
	// Append records one flush attempt.
	Append(ctx context.Context, entry *FlushRecord) error

	// List retrieves entries matching the filters, newest first.
	List(ctx context.Context, filters FlushFilters) ([]*FlushRecord, error)

	// PruneOlderThan deletes entries older than the given number of days.
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// FlushRecord represents a flush attempt as stored in the journal.
type FlushRecord struct {
	ID         string
	Timestamp  string
	Trigger    string
	Handle     int64
	UserID     string
	RecordName string
	Bytes      int
	Outcome    string
	FirstWrite bool
	Error      string
	DurationMS int64
}

// FlushFilters contains filter options for querying the journal.
type FlushFilters struct {
	UserID  string
	Outcome string
	Trigger string
	Limit   int
}
