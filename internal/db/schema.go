package db

import "database/sql"

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// IMPORTANT: Keep this in sync with migrations. Tests load it through
// GetSchemaSQL() so repository code referencing a missing column fails
// immediately with "no such column".
const SchemaSQL = `
-- Flush journal (one row per flush attempt)
CREATE TABLE IF NOT EXISTS flush_log (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	trigger TEXT NOT NULL CHECK(trigger IN ('periodic', 'save', 'disconnect', 'admin', 'shutdown')),
	handle INTEGER NOT NULL DEFAULT 0,
	user_id TEXT NOT NULL,
	record_name TEXT NOT NULL,
	bytes INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL CHECK(outcome IN ('persisted', 'skipped', 'failed')),
	first_write INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_flush_log_timestamp ON flush_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_flush_log_user ON flush_log(user_id);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(conn *sql.DB) error {
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(conn)
	}

	var journalCount int
	err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='flush_log'").Scan(&journalCount)
	if err != nil {
		return err
	}
	if journalCount > 0 {
		// Journal predates version tracking - upgrade in place
		return RunMigrations(conn)
	}

	// Completely fresh install - create modern schema directly
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := createVersionTable(conn); err != nil {
		return err
	}
	// Mark all migrations as applied for fresh installs
	for _, m := range migrations {
		if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema for tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
