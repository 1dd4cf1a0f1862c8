package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/ctxutil"
	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/ports/secondary"
)

// AdminServiceImpl implements the AdminService interface.
type AdminServiceImpl struct {
	coordinator *LifecycleCoordinator
	records     secondary.RecordStore
	backups     secondary.BackupStore
	registry    secondary.MigrationRegistry
	journal     secondary.FlushJournal
	logger      hclog.Logger
}

// NewAdminService creates a new AdminService with injected dependencies.
// journal may be nil, in which case FlushHistory is always empty.
func NewAdminService(
	coordinator *LifecycleCoordinator,
	records secondary.RecordStore,
	backups secondary.BackupStore,
	registry secondary.MigrationRegistry,
	journal secondary.FlushJournal,
	logger hclog.Logger,
) *AdminServiceImpl {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AdminServiceImpl{
		coordinator: coordinator,
		records:     records,
		backups:     backups,
		registry:    registry,
		journal:     journal,
		logger:      logger,
	}
}

// ListRecords lists every current record on disk.
func (s *AdminServiceImpl) ListRecords(ctx context.Context) ([]*primary.Record, error) {
	infos, err := s.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make([]*primary.Record, len(infos))
	for i, info := range infos {
		out[i] = s.infoToRecord(info)
	}
	return out, nil
}

// ListSessions lists connected sessions ordered by handle.
func (s *AdminServiceImpl) ListSessions(ctx context.Context) ([]*primary.Session, error) {
	sessions := s.coordinator.Sessions()
	out := make([]*primary.Session, len(sessions))
	for i, sess := range sessions {
		out[i] = &primary.Session{
			Handle:        sess.Handle,
			UserID:        sess.UserID,
			DisplayName:   sess.DisplayName,
			RecordName:    sess.Key.RecordName,
			BufferedBytes: len(sess.Blob),
			Dirty:         sess.Dirty,
			ConnectedAt:   sess.ConnectedAt,
			LastSave:      sess.LastSave,
		}
	}
	return out, nil
}

// ListBackups lists the backups of a record, newest first.
func (s *AdminServiceImpl) ListBackups(ctx context.Context, userID, recordName string) ([]*primary.Backup, error) {
	key, err := record.NewKey(userID, recordName)
	if err != nil {
		return nil, err
	}
	entries, err := s.backups.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups of %s: %w", key, err)
	}

	out := make([]*primary.Backup, len(entries))
	for i, e := range entries {
		out[i] = entryToBackup(i, e)
	}
	return out, nil
}

// Restore replaces a record with one of its backups. It runs under the
// same per-record lock as flushes.
func (s *AdminServiceImpl) Restore(ctx context.Context, req primary.RestoreRequest) (*primary.Backup, error) {
	key, err := record.NewKey(req.UserID, req.RecordName)
	if err != nil {
		return nil, err
	}

	var entry *secondary.BackupEntry
	err = s.coordinator.withKeyLock(key.Base(), func() error {
		var err error
		entry, err = s.backups.Restore(ctx, key, req.Index)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restore %s from backup %d: %w", key, req.Index, err)
	}

	s.logger.Info("record restored", "record", key.String(), "backup", entry.Name,
		"index", req.Index, "operator", ctxutil.OperatorFromContext(ctx))
	if s.coordinator.tracker.HoldsKey(key) {
		s.logger.Warn("restored record belongs to a connected user; the next flush will overwrite it",
			"record", key.String())
	}
	return entryToBackup(req.Index, entry), nil
}

// SetMigrationsAllowed toggles the global migration switch.
func (s *AdminServiceImpl) SetMigrationsAllowed(ctx context.Context, allowed bool) error {
	s.coordinator.SetMigrationsAllowed(allowed)
	s.logger.Info("migration switch changed", "allowed", allowed, "operator", ctxutil.OperatorFromContext(ctx))
	return nil
}

// MigrationsAllowed reports the global migration switch.
func (s *AdminServiceImpl) MigrationsAllowed() bool {
	return s.coordinator.MigrationsAllowed()
}

// ForceFlushAll flushes every connected session now. The summary is
// returned even when some flushes failed.
func (s *AdminServiceImpl) ForceFlushAll(ctx context.Context) (*primary.FlushSummary, error) {
	s.logger.Info("forced flush requested", "operator", ctxutil.OperatorFromContext(ctx))
	return s.coordinator.flushAll(ctx, primary.TriggerAdmin)
}

// CheckConsistency compares the registry with the record store. Any
// disagreement is reported, never repaired.
func (s *AdminServiceImpl) CheckConsistency(ctx context.Context) (*primary.ConsistencyReport, error) {
	infos, err := s.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	report := &primary.ConsistencyReport{}
	withRecord := make(map[string]bool)
	for _, info := range infos {
		withRecord[info.Key.UserID] = true
		if !s.registry.Contains(info.Key.UserID) {
			report.RecordsWithoutRegistry = append(report.RecordsWithoutRegistry, *s.infoToRecord(info))
		}
	}
	for _, userID := range s.registry.All() {
		if !withRecord[userID] {
			report.RegisteredWithoutRecord = append(report.RegisteredWithoutRecord, userID)
		}
	}
	sort.Strings(report.RegisteredWithoutRecord)
	return report, nil
}

// FlushHistory queries the flush journal, newest first.
func (s *AdminServiceImpl) FlushHistory(ctx context.Context, filters primary.FlushHistoryFilters) ([]*primary.FlushEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	records, err := s.journal.List(ctx, secondary.FlushFilters{
		UserID:  filters.UserID,
		Outcome: filters.Outcome,
		Trigger: filters.Trigger,
		Limit:   filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flush history: %w", err)
	}

	entries := make([]*primary.FlushEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.FlushEntry{
			ID:         r.ID,
			Timestamp:  r.Timestamp,
			Trigger:    r.Trigger,
			Handle:     primary.ConnectionHandle(r.Handle),
			UserID:     r.UserID,
			RecordName: r.RecordName,
			Bytes:      r.Bytes,
			Outcome:    r.Outcome,
			FirstWrite: r.FirstWrite,
			Error:      r.Error,
			DurationMS: r.DurationMS,
		}
	}
	return entries, nil
}

// PruneHistory deletes journal entries older than the given number of days.
func (s *AdminServiceImpl) PruneHistory(ctx context.Context, olderThanDays int) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	return s.journal.PruneOlderThan(ctx, olderThanDays)
}

// Helper methods

func (s *AdminServiceImpl) infoToRecord(info *secondary.RecordInfo) *primary.Record {
	return &primary.Record{
		UserID:     info.Key.UserID,
		RecordName: info.Key.RecordName,
		ModifiedAt: info.ModifiedAt,
		Size:       info.Size,
		Migrated:   s.registry.Contains(info.Key.UserID),
	}
}

func entryToBackup(index int, e *secondary.BackupEntry) *primary.Backup {
	return &primary.Backup{
		Index:     index,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		Size:      e.Size,
	}
}

// Ensure AdminServiceImpl implements the interface
var _ primary.AdminService = (*AdminServiceImpl)(nil)
