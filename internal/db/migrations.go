package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_flush_log",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_flush_log_duration_and_indexes",
		Up:      migrationV2,
	},
}

func createVersionTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// RunMigrations applies every migration newer than the recorded version.
func RunMigrations(conn *sql.DB) error {
	if err := createVersionTable(conn); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(conn *sql.DB) (int, error) {
	var v int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
			error TEXT
		)
	`)
	return err
}

func migrationV2(tx *sql.Tx) error {
	var hasDuration int
	err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('flush_log') WHERE name = 'duration_ms'`).Scan(&hasDuration)
	if err != nil {
		return err
	}
	if hasDuration == 0 {
		if _, err := tx.Exec(`ALTER TABLE flush_log ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_flush_log_timestamp ON flush_log(timestamp)`); err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_flush_log_user ON flush_log(user_id)`)
	return err
}
