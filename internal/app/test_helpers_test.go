package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/adapters/filesystem"
	"github.com/example/charkeep/internal/core/effects"
	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/ports/secondary"
	"github.com/example/charkeep/internal/testutil"
)

const testRoot = "/srv/engine"

var testStart = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

// Ensure mockFlushJournal implements the interface
var _ secondary.FlushJournal = (*mockFlushJournal)(nil)

// mockFlushJournal implements secondary.FlushJournal for testing.
type mockFlushJournal struct {
	mu        sync.Mutex
	entries   []*secondary.FlushRecord
	appendErr error
}

func newMockFlushJournal() *mockFlushJournal {
	return &mockFlushJournal{}
}

func (m *mockFlushJournal) Append(ctx context.Context, entry *secondary.FlushRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockFlushJournal) List(ctx context.Context, filters secondary.FlushFilters) ([]*secondary.FlushRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.FlushRecord
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filters.UserID != "" && e.UserID != filters.UserID {
			continue
		}
		if filters.Outcome != "" && e.Outcome != filters.Outcome {
			continue
		}
		if filters.Trigger != "" && e.Trigger != filters.Trigger {
			continue
		}
		result = append(result, e)
		if filters.Limit > 0 && len(result) == filters.Limit {
			break
		}
	}
	return result, nil
}

func (m *mockFlushJournal) PruneOlderThan(ctx context.Context, days int) (int, error) {
	return 0, nil
}

func (m *mockFlushJournal) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Outcome
	}
	return out
}

// Ensure blockingExecutor implements the interface
var _ EffectExecutor = (*blockingExecutor)(nil)

// blockingExecutor records concurrent executions per key and can hold
// each execution until released.
type blockingExecutor struct {
	mu      sync.Mutex
	active  map[string]int
	maxSeen map[string]int
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		active:  make(map[string]int),
		maxSeen: make(map[string]int),
		release: make(chan struct{}),
	}
}

func (b *blockingExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var key string
	for _, eff := range effs {
		if w, ok := eff.(effects.WriteRecordEffect); ok {
			key = w.Key.Base()
		}
	}
	b.mu.Lock()
	b.active[key]++
	if b.active[key] > b.maxSeen[key] {
		b.maxSeen[key] = b.active[key]
	}
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.active[key]--
	b.mu.Unlock()
	return nil
}

// fixture wires the coordinator to real filesystem stores on an
// in-memory, fault-injectable filesystem.
type fixture struct {
	fs          *testutil.FaultFS
	clock       *testutil.Clock
	layout      filesystem.Layout
	records     *filesystem.RecordStore
	backups     *filesystem.BackupStore
	registry    *filesystem.MigrationRegistry
	journal     *mockFlushJournal
	metrics     *Metrics
	coordinator *LifecycleCoordinator
	admin       *AdminServiceImpl
}

type fixtureOptions struct {
	retention         int
	migrationsBlocked bool
	executor          EffectExecutor
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	if opts.retention == 0 {
		opts.retention = 5
	}

	fs := testutil.NewFaultFS(afero.NewMemMapFs())
	clock := testutil.NewClock(testStart)
	layout := filesystem.NewLayout(testRoot)
	logger := hclog.NewNullLogger()

	f := &fixture{
		fs:      fs,
		clock:   clock,
		layout:  layout,
		records: filesystem.NewRecordStore(fs, layout),
		backups: filesystem.NewBackupStore(fs, layout, filesystem.BackupStoreOptions{
			Retention: opts.retention,
			Now:       clock.Now,
			Logger:    logger,
		}),
		registry: filesystem.NewMigrationRegistry(fs, layout),
		journal:  newMockFlushJournal(),
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	if err := f.registry.Load(context.Background()); err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	executor := opts.executor
	if executor == nil {
		executor = NewEffectExecutor(f.records, f.backups, f.registry, logger)
	}
	tracker := NewSessionTracker(logger, clock.Now)
	f.coordinator = NewLifecycleCoordinator(tracker, f.records, f.registry, executor, CoordinatorOptions{
		MigrationsAllowed: !opts.migrationsBlocked,
		FlushConcurrency:  2,
		Journal:           f.journal,
		Metrics:           f.metrics,
		Logger:            logger,
		Now:               clock.Now,
	})
	f.admin = NewAdminService(f.coordinator, f.records, f.backups, f.registry, f.journal, logger)
	return f
}

func (f *fixture) key(t *testing.T, userID, name string) record.Key {
	t.Helper()
	key, err := record.NewKey(userID, name)
	if err != nil {
		t.Fatalf("invalid key %s/%s: %v", userID, name, err)
	}
	return key
}

func payload(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func primaryHandle(h int) primary.ConnectionHandle {
	return primary.ConnectionHandle(h)
}
