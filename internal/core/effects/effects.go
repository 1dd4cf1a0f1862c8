// Package effects defines effect types as data structures representing I/O operations.
// Planners in core produce effects; the app layer interprets them.
// Effects are pure data - they describe what should happen, not how.
package effects

import "github.com/example/charkeep/internal/core/record"

// Effect is the base interface for all effects.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// SnapshotEffect copies the current record into the rotated backups and
// enforces retention.
type SnapshotEffect struct {
	Key record.Key
}

func (e SnapshotEffect) EffectType() string { return "snapshot" }

// WriteRecordEffect replaces the current record with Blob.
type WriteRecordEffect struct {
	Key  record.Key
	Blob []byte
}

func (e WriteRecordEffect) EffectType() string { return "write_record" }

// MarkMigratedEffect registers a user as having completed migration.
type MarkMigratedEffect struct {
	UserID string
}

func (e MarkMigratedEffect) EffectType() string { return "mark_migrated" }

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }
