// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/example/charkeep/internal/core/effects"
	"github.com/example/charkeep/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor against the record,
// backup and registry stores.
type DefaultEffectExecutor struct {
	records  secondary.RecordStore
	backups  secondary.BackupStore
	registry secondary.MigrationRegistry
	logger   hclog.Logger
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(records secondary.RecordStore, backups secondary.BackupStore, registry secondary.MigrationRegistry, logger hclog.Logger) *DefaultEffectExecutor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DefaultEffectExecutor{
		records:  records,
		backups:  backups,
		registry: registry,
		logger:   logger,
	}
}

// Execute processes a slice of effects, executing each in sequence.
// It stops at the first failure; later effects never run.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.SnapshotEffect:
		entry, err := e.backups.Snapshot(ctx, typed.Key)
		if err != nil {
			return err
		}
		if entry != nil {
			e.logger.Debug("backup created", "record", typed.Key.String(), "backup", entry.Name)
		}
		return nil
	case effects.WriteRecordEffect:
		return e.records.Put(ctx, typed.Key, typed.Blob)
	case effects.MarkMigratedEffect:
		added, err := e.registry.MarkMigrated(ctx, typed.UserID)
		if err != nil {
			return err
		}
		if added {
			e.logger.Info("user migrated", "user_id", typed.UserID)
		}
		return nil
	case effects.LogEffect:
		e.logger.Log(hclog.LevelFromString(typed.Level), typed.Message, flattenFields(typed.Fields)...)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func flattenFields(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}
