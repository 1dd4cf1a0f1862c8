package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/example/charkeep/internal/core/flush"
	"github.com/example/charkeep/internal/core/migration"
	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/ports/secondary"
)

// DefaultFlushConcurrency bounds parallel flushes in FlushAll.
const DefaultFlushConcurrency = 4

// FlushResult describes one flush attempt.
type FlushResult struct {
	Outcome    string
	FirstWrite bool
	Bytes      int
}

// CoordinatorOptions configures a LifecycleCoordinator.
type CoordinatorOptions struct {
	MigrationsAllowed bool
	FlushConcurrency  int
	// Journal is optional; failures to append are logged only.
	Journal secondary.FlushJournal
	Metrics *Metrics
	Logger  hclog.Logger
	Now     func() time.Time
}

// LifecycleCoordinator turns host events into buffered sessions and
// gated, serialized flushes.
type LifecycleCoordinator struct {
	tracker     *SessionTracker
	records     secondary.RecordStore
	registry    secondary.MigrationRegistry
	executor    EffectExecutor
	journal     secondary.FlushJournal
	metrics     *Metrics
	locks       *keyedLocks
	concurrency int
	logger      hclog.Logger
	now         func() time.Time

	migrationsAllowed atomic.Bool

	// written holds the newest generation persisted per record key.
	// Entries are read and updated only under that key's lock.
	writtenMu sync.Mutex
	written   map[string]uint64
}

// NewLifecycleCoordinator creates a coordinator with injected dependencies.
func NewLifecycleCoordinator(
	tracker *SessionTracker,
	records secondary.RecordStore,
	registry secondary.MigrationRegistry,
	executor EffectExecutor,
	opts CoordinatorOptions,
) *LifecycleCoordinator {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FlushConcurrency <= 0 {
		opts.FlushConcurrency = DefaultFlushConcurrency
	}
	c := &LifecycleCoordinator{
		tracker:     tracker,
		records:     records,
		registry:    registry,
		executor:    executor,
		journal:     opts.Journal,
		metrics:     opts.Metrics,
		locks:       newKeyedLocks(),
		concurrency: opts.FlushConcurrency,
		logger:      opts.Logger,
		now:         opts.Now,
		written:     make(map[string]uint64),
	}
	c.migrationsAllowed.Store(opts.MigrationsAllowed)
	return c
}

// OnPeerConnected starts a session and logs the user's migration status.
// It never writes.
func (c *LifecycleCoordinator) OnPeerConnected(ctx context.Context, handle primary.ConnectionHandle, userID, displayName string) error {
	s, err := c.tracker.OnConnect(handle, userID, displayName)
	if err != nil {
		return fmt.Errorf("failed to track connection %d: %w", handle, err)
	}
	c.metrics.setSessions(c.tracker.Len())

	exists, err := c.records.Exists(ctx, s.Key)
	if err != nil {
		c.logger.Warn("could not classify user", "handle", handle, "user_id", userID, "record", s.Key.String(), "error", err)
		return nil
	}
	status := migration.Classify(migration.GateContext{
		UserID:            userID,
		RecordExists:      exists,
		MigrationsAllowed: c.MigrationsAllowed(),
		AlreadyMigrated:   c.registry.Contains(userID),
	})
	switch status {
	case migration.StatusRecordMissing:
		c.logger.Warn("migrated user has no record", "handle", handle, "user_id", userID, "record", s.Key.String(), "status", status)
	default:
		c.logger.Info("user connected", "handle", handle, "user_id", userID, "record", s.Key.String(), "status", status)
	}
	return nil
}

// OnPayloadCaptured buffers blob for handle.
func (c *LifecycleCoordinator) OnPayloadCaptured(ctx context.Context, handle primary.ConnectionHandle, blob []byte) error {
	if err := c.tracker.OnCapture(handle, blob); err != nil {
		return fmt.Errorf("failed to capture payload: %w", err)
	}
	c.logger.Trace("payload captured", "handle", handle, "bytes", len(blob))
	return nil
}

// OnPeerDisconnected detaches the session and makes exactly one flush
// attempt. The session is gone afterwards whatever the outcome, and the
// flush ignores cancellation of ctx.
func (c *LifecycleCoordinator) OnPeerDisconnected(ctx context.Context, handle primary.ConnectionHandle) error {
	s, err := c.tracker.OnDisconnect(handle)
	if err != nil {
		return fmt.Errorf("failed to detach connection %d: %w", handle, err)
	}
	c.metrics.setSessions(c.tracker.Len())

	_, err = c.Flush(context.WithoutCancel(ctx), s, primary.TriggerDisconnect)
	return err
}

// OnPeriodicTick flushes every session.
func (c *LifecycleCoordinator) OnPeriodicTick(ctx context.Context) error {
	return c.FlushAll(ctx, primary.TriggerPeriodic)
}

// OnExplicitSaveRequested flushes every session.
func (c *LifecycleCoordinator) OnExplicitSaveRequested(ctx context.Context) error {
	return c.FlushAll(ctx, primary.TriggerSave)
}

// SetMigrationsAllowed toggles the global migration switch.
func (c *LifecycleCoordinator) SetMigrationsAllowed(allowed bool) {
	c.migrationsAllowed.Store(allowed)
}

// MigrationsAllowed reports the global migration switch.
func (c *LifecycleCoordinator) MigrationsAllowed() bool {
	return c.migrationsAllowed.Load()
}

// Sessions returns copies of the tracked sessions ordered by handle.
func (c *LifecycleCoordinator) Sessions() []Session {
	return c.tracker.AllSessions()
}

// Flush persists the buffered payload of s, if any. A copy whose
// generation is not newer than what is already on disk for its record is
// skipped, so a delayed flush never replaces a later payload.
func (c *LifecycleCoordinator) Flush(ctx context.Context, s Session, trigger string) (FlushResult, error) {
	if s.Blob == nil || !s.Dirty {
		c.metrics.observeFlush(trigger, primary.OutcomeSkipped, 0)
		return FlushResult{Outcome: primary.OutcomeSkipped}, nil
	}

	start := c.now()
	var result FlushResult
	superseded := false
	err := c.withKeyLock(s.Key.Base(), func() error {
		if c.writtenGeneration(s.Key.Base()) >= s.Generation {
			superseded = true
			return nil
		}
		var err error
		result, err = c.flushLocked(ctx, s)
		return err
	})
	elapsed := c.now().Sub(start)

	if superseded {
		c.logger.Debug("flush superseded by newer payload", "handle", s.Handle, "user_id", s.UserID,
			"record", s.Key.String(), "trigger", trigger, "generation", s.Generation)
		c.metrics.observeFlush(trigger, primary.OutcomeSkipped, 0)
		return FlushResult{Outcome: primary.OutcomeSkipped}, nil
	}

	if err != nil {
		result.Outcome = primary.OutcomeFailed
		err = fmt.Errorf("failed to flush %s (handle %d): %w", s.Key.String(), s.Handle, err)
		c.logger.Error("flush failed", "handle", s.Handle, "user_id", s.UserID, "record", s.Key.String(),
			"trigger", trigger, "bytes", len(s.Blob), "error", err)
	} else {
		c.logger.Debug("flush persisted", "handle", s.Handle, "user_id", s.UserID, "record", s.Key.String(),
			"trigger", trigger, "bytes", result.Bytes, "first_write", result.FirstWrite)
		if result.FirstWrite {
			c.metrics.observeMigration()
		}
	}
	c.metrics.observeFlush(trigger, result.Outcome, elapsed)
	c.appendJournal(ctx, s, trigger, result, err, elapsed)
	return result, err
}

func (c *LifecycleCoordinator) flushLocked(ctx context.Context, s Session) (FlushResult, error) {
	if err := ctx.Err(); err != nil {
		return FlushResult{}, err
	}

	exists, err := c.records.Exists(ctx, s.Key)
	if err != nil {
		return FlushResult{}, err
	}
	plan, err := flush.GeneratePlan(flush.PlanInput{
		Key:               s.Key,
		Blob:              s.Blob,
		RecordExists:      exists,
		MigrationsAllowed: c.MigrationsAllowed(),
		AlreadyMigrated:   c.registry.Contains(s.UserID),
	})
	if err != nil {
		return FlushResult{}, err
	}
	if err := c.executor.Execute(ctx, plan.Effects()); err != nil {
		return FlushResult{}, err
	}
	c.setWrittenGeneration(s.Key.Base(), s.Generation)

	c.tracker.MarkSaved(s.Handle, s.Generation, c.now())
	return FlushResult{
		Outcome:    primary.OutcomePersisted,
		FirstWrite: plan.FirstWrite,
		Bytes:      len(s.Blob),
	}, nil
}

// FlushAll flushes every session with bounded parallelism. Failures do
// not stop the batch; they are returned together.
func (c *LifecycleCoordinator) FlushAll(ctx context.Context, trigger string) error {
	_, err := c.flushAll(ctx, trigger)
	return err
}

func (c *LifecycleCoordinator) flushAll(ctx context.Context, trigger string) (*primary.FlushSummary, error) {
	sessions := c.tracker.AllSessions()
	results := make([]FlushResult, len(sessions))
	errs := make([]error, len(sessions))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, s := range sessions {
		i, s := i, s
		g.Go(func() error {
			results[i], errs[i] = c.Flush(ctx, s, trigger)
			return nil
		})
	}
	_ = g.Wait()

	summary := &primary.FlushSummary{Trigger: trigger}
	var merr *multierror.Error
	for i := range sessions {
		switch results[i].Outcome {
		case primary.OutcomePersisted:
			summary.Persisted++
		case primary.OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		if errs[i] != nil {
			summary.Errors = append(summary.Errors, errs[i].Error())
			merr = multierror.Append(merr, errs[i])
		}
	}
	if summary.Failed > 0 {
		c.logger.Warn("flush batch had failures", "trigger", trigger,
			"persisted", summary.Persisted, "failed", summary.Failed)
	}
	return summary, merr.ErrorOrNil()
}

func (c *LifecycleCoordinator) writtenGeneration(key string) uint64 {
	c.writtenMu.Lock()
	defer c.writtenMu.Unlock()
	return c.written[key]
}

func (c *LifecycleCoordinator) setWrittenGeneration(key string, gen uint64) {
	c.writtenMu.Lock()
	defer c.writtenMu.Unlock()
	c.written[key] = gen
}

func (c *LifecycleCoordinator) withKeyLock(key string, fn func() error) error {
	unlock := c.locks.Lock(key)
	defer unlock()
	return fn()
}

func (c *LifecycleCoordinator) appendJournal(ctx context.Context, s Session, trigger string, result FlushResult, flushErr error, elapsed time.Duration) {
	if c.journal == nil {
		return
	}
	entry := &secondary.FlushRecord{
		ID:         uuid.NewString(),
		Trigger:    trigger,
		Handle:     int64(s.Handle),
		UserID:     s.UserID,
		RecordName: s.Key.RecordName,
		Bytes:      len(s.Blob),
		Outcome:    result.Outcome,
		FirstWrite: result.FirstWrite,
		DurationMS: elapsed.Milliseconds(),
	}
	if flushErr != nil {
		entry.Error = flushErr.Error()
	}
	// Journal writes must not be lost to a canceled batch.
	if err := c.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("failed to journal flush", "record", s.Key.String(), "error", err)
	}
}

// Ensure LifecycleCoordinator implements the interface
var _ primary.HostEvents = (*LifecycleCoordinator)(nil)
