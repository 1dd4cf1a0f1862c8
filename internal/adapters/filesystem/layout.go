// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"path/filepath"

	"github.com/example/charkeep/internal/core/record"
)

// LockFile is the root lock taken by the long-running process.
const LockFile = "charkeep.lock"

// Layout resolves on-disk paths below a configured root.
//
//	<root>/characters_server/{base}.fch
//	<root>/characters_server/{base}.fch.pre_restore
//	<root>/characters_server/backups/{base}/{timestamp}.fch
//	<root>/characters_server/migrated_players.txt
//	<root>/charkeep.lock
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

// Root returns the configured root.
func (l Layout) Root() string {
	return l.root
}

// RecordsDir returns the directory holding current records.
func (l Layout) RecordsDir() string {
	return filepath.Join(l.root, record.RecordsDir)
}

// RecordPath returns the current record path of key.
func (l Layout) RecordPath(key record.Key) string {
	return filepath.Join(l.RecordsDir(), key.FileName())
}

// PreRestorePath returns the pre-restore sidecar path of key.
func (l Layout) PreRestorePath(key record.Key) string {
	return l.RecordPath(key) + record.PreRestoreSuffix
}

// BackupsRoot returns the directory holding all per-record backup dirs.
func (l Layout) BackupsRoot() string {
	return filepath.Join(l.RecordsDir(), record.BackupsDir)
}

// BackupDir returns the backup directory of key.
func (l Layout) BackupDir(key record.Key) string {
	return filepath.Join(l.BackupsRoot(), key.Base())
}

// RegistryPath returns the migration registry log path.
func (l Layout) RegistryPath() string {
	return filepath.Join(l.RecordsDir(), record.RegistryFile)
}

// LockPath returns the file serve locks for as long as it runs.
func (l Layout) LockPath() string {
	return filepath.Join(l.root, LockFile)
}
