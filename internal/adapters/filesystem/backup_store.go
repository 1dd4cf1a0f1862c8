package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/core/retention"
	"github.com/example/charkeep/internal/ports/secondary"
)

// BackupStore implements secondary.BackupStore with one directory of
// timestamped snapshot files per record key.
// Calls for one key must be serialized by the caller.
type BackupStore struct {
	fs     afero.Fs
	layout Layout
	limit  int
	now    func() time.Time
	logger hclog.Logger
}

// BackupStoreOptions configures a BackupStore.
type BackupStoreOptions struct {
	// Retention is the maximum number of backups kept per key.
	Retention int
	// Now overrides the clock used to name snapshots.
	Now func() time.Time
	// Logger receives prune notices. Defaults to a null logger.
	Logger hclog.Logger
}

// NewBackupStore creates a backup store rooted at layout.
func NewBackupStore(fs afero.Fs, layout Layout, opts BackupStoreOptions) *BackupStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &BackupStore{
		fs:     fs,
		layout: layout,
		limit:  opts.Retention,
		now:    now,
		logger: logger.Named("backups"),
	}
}

// Snapshot copies the current record of key into its backup directory and
// then prunes the oldest backups beyond the retention limit.
func (s *BackupStore) Snapshot(ctx context.Context, key record.Key) (*secondary.BackupEntry, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}

	current := s.layout.RecordPath(key)
	data, err := afero.ReadFile(s.fs, current)
	if errors.Is(err, os.ErrNotExist) {
		// Nothing to back up.
		return nil, nil
	}
	if err != nil {
		return nil, record.WrapIO("read", current, err)
	}

	dir := s.layout.BackupDir(key)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, record.WrapIO("mkdir", dir, err)
	}

	existing, err := s.names(dir)
	if err != nil {
		return nil, err
	}
	createdAt := s.now()
	name, err := retention.NextName(createdAt, existing)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(s.fs, filepath.Join(dir, name), data); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	_, seq, _ := retention.ParseName(name)

	if err := s.enforceRetention(ctx, key); err != nil {
		return nil, err
	}

	return &secondary.BackupEntry{
		Key:       key,
		Name:      name,
		CreatedAt: createdAt.UTC().Truncate(time.Second),
		Seq:       seq,
		Size:      int64(len(data)),
	}, nil
}

// List returns the backups of key, newest first.
func (s *BackupStore) List(ctx context.Context, key record.Key) ([]*secondary.BackupEntry, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	entries, err := s.scan(key)
	if err != nil {
		return nil, err
	}
	out := make([]*secondary.BackupEntry, len(entries))
	for i, e := range entries {
		out[i] = &secondary.BackupEntry{
			Key:       key,
			Name:      e.Name,
			CreatedAt: e.CreatedAt,
			Seq:       e.Seq,
			Size:      e.Size,
		}
	}
	return out, nil
}

// Restore copies the backup at index over the current record of key.
// The index is validated against a fresh listing. When a current record
// exists it is first copied to the pre-restore sidecar, replacing any
// earlier sidecar. No rotated backup of the replaced state is taken.
func (s *BackupStore) Restore(ctx context.Context, key record.Key, index int) (*secondary.BackupEntry, error) {
	entries, err := s.List(ctx, key)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("%w: index %d, %s has %d backup(s)", record.ErrIndexOutOfRange, index, key, len(entries))
	}
	chosen := entries[index]

	backupPath := filepath.Join(s.layout.BackupDir(key), chosen.Name)
	data, err := afero.ReadFile(s.fs, backupPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("backup %s of %s: %w", chosen.Name, key, record.ErrNotFound)
	}
	if err != nil {
		return nil, record.WrapIO("read", backupPath, err)
	}

	current := s.layout.RecordPath(key)
	hasCurrent, err := fileExists(s.fs, current)
	if err != nil {
		return nil, err
	}
	if hasCurrent {
		if err := copyFileAtomic(s.fs, current, s.layout.PreRestorePath(key)); err != nil {
			return nil, fmt.Errorf("failed to save pre-restore copy: %w", err)
		}
	}

	if err := writeFileAtomic(s.fs, current, data); err != nil {
		return nil, fmt.Errorf("failed to restore backup: %w", err)
	}
	return chosen, nil
}

// enforceRetention deletes the oldest backups of key beyond the limit.
func (s *BackupStore) enforceRetention(ctx context.Context, key record.Key) error {
	entries, err := s.scan(key)
	if err != nil {
		return err
	}
	plan := retention.PlanPrune(entries, s.limit)
	dir := s.layout.BackupDir(key)
	for _, e := range plan.Delete {
		path := filepath.Join(dir, e.Name)
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return record.WrapIO("remove", path, err)
		}
		s.logger.Debug("pruned backup", "record", key.String(), "backup", e.Name)
	}

	remaining, err := s.scan(key)
	if err != nil {
		return err
	}
	return retention.CheckLimit(len(remaining), s.limit)
}

// scan lists recognised backup files of key, newest first.
// Files whose names do not parse as backups are ignored.
func (s *BackupStore) scan(key record.Key) ([]retention.Entry, error) {
	dir := s.layout.BackupDir(key)
	infos, err := afero.ReadDir(s.fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, record.WrapIO("readdir", dir, err)
	}

	entries := make([]retention.Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		createdAt, seq, ok := retention.ParseName(info.Name())
		if !ok {
			continue
		}
		entries = append(entries, retention.Entry{
			Name:      info.Name(),
			CreatedAt: createdAt,
			Seq:       seq,
			Size:      info.Size(),
		})
	}
	retention.SortNewestFirst(entries)
	return entries, nil
}

func (s *BackupStore) names(dir string) (map[string]bool, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, record.WrapIO("readdir", dir, err)
	}
	names := make(map[string]bool, len(infos))
	for _, info := range infos {
		names[info.Name()] = true
	}
	return names, nil
}

// Ensure BackupStore implements the interface
var _ secondary.BackupStore = (*BackupStore)(nil)
