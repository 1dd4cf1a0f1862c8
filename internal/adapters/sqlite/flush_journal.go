// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/charkeep/internal/ports/secondary"
)

// TimestampLayout is fixed-width so stored timestamps sort lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FlushJournal implements secondary.FlushJournal with SQLite.
type FlushJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewFlushJournal creates a new SQLite flush journal.
func NewFlushJournal(db *sql.DB) *FlushJournal {
	return &FlushJournal{db: db, now: time.Now}
}

// Append persists one flush attempt. An empty Timestamp is stamped now.
func (r *FlushJournal) Append(ctx context.Context, entry *secondary.FlushRecord) error {
	if entry.Timestamp == "" {
		entry.Timestamp = r.now().UTC().Format(TimestampLayout)
	}
	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flush_log (id, timestamp, trigger, handle, user_id, record_name, bytes, outcome, first_write, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp,
		entry.Trigger,
		entry.Handle,
		entry.UserID,
		entry.RecordName,
		entry.Bytes,
		entry.Outcome,
		entry.FirstWrite,
		errText,
		entry.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to append flush log: %w", err)
	}

	return nil
}

// List retrieves journal entries matching the filters, newest first.
func (r *FlushJournal) List(ctx context.Context, filters secondary.FlushFilters) ([]*secondary.FlushRecord, error) {
	query := `SELECT id, timestamp, trigger, handle, user_id, record_name, bytes, outcome, first_write, error, duration_ms FROM flush_log WHERE 1=1`
	args := []any{}

	if filters.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filters.UserID)
	}

	if filters.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filters.Outcome)
	}

	if filters.Trigger != "" {
		query += " AND trigger = ?"
		args = append(args, filters.Trigger)
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flush log: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.FlushRecord
	for rows.Next() {
		var errText sql.NullString

		entry := &secondary.FlushRecord{}
		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Trigger,
			&entry.Handle,
			&entry.UserID,
			&entry.RecordName,
			&entry.Bytes,
			&entry.Outcome,
			&entry.FirstWrite,
			&errText,
			&entry.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flush log: %w", err)
		}
		entry.Error = errText.String

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// PruneOlderThan deletes entries older than the given number of days.
func (r *FlushJournal) PruneOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -days).Format(TimestampLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM flush_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune flush log: %w", err)
	}

	count, _ := result.RowsAffected()
	return int(count), nil
}

// Ensure FlushJournal implements the interface
var _ secondary.FlushJournal = (*FlushJournal)(nil)
