package filesystem_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/adapters/filesystem"
	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/testutil"
)

var start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type backupFixture struct {
	fs      afero.Fs
	layout  filesystem.Layout
	records *filesystem.RecordStore
	backups *filesystem.BackupStore
	clock   *testutil.Clock
}

func newBackupFixture(t *testing.T, fs afero.Fs, retention int) *backupFixture {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	layout := filesystem.NewLayout(testRoot)
	clock := testutil.NewClock(start)
	return &backupFixture{
		fs:      fs,
		layout:  layout,
		records: filesystem.NewRecordStore(fs, layout),
		backups: filesystem.NewBackupStore(fs, layout, filesystem.BackupStoreOptions{
			Retention: retention,
			Now:       clock.Now,
		}),
		clock: clock,
	}
}

// putAndSnapshot writes payload as the current record and snapshots it.
func (f *backupFixture) putAndSnapshot(t *testing.T, key record.Key, payload string) {
	t.Helper()
	ctx := context.Background()
	if err := f.records.Put(ctx, key, []byte(payload)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := f.backups.Snapshot(ctx, key); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	f.clock.Advance(time.Second)
}

func TestBackupStore_SnapshotWithoutRecordIsNoOp(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	key := mustKey(t, "42", "hero")

	entry, err := f.backups.Snapshot(context.Background(), key)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry, got %+v", entry)
	}
	list, err := f.backups.List(context.Background(), key)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no backups, got %d", len(list))
	}
}

func TestBackupStore_SnapshotAddsExactlyOne(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")

	if err := f.records.Put(ctx, key, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		entry, err := f.backups.Snapshot(ctx, key)
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if entry == nil {
			t.Fatal("expected an entry")
		}
		list, err := f.backups.List(ctx, key)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != i {
			t.Errorf("after %d snapshots got %d backups", i, len(list))
		}
		f.clock.Advance(time.Second)
	}
}

func TestBackupStore_SameSecondSnapshotsGetSequence(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")
	if err := f.records.Put(ctx, key, []byte("v1")); err != nil {
		t.Fatal(err)
	}

	first, err := f.backups.Snapshot(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.backups.Snapshot(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if first.Name != "20261017_090000.fch" || second.Name != "20261017_090000_001.fch" {
		t.Errorf("names = %q, %q", first.Name, second.Name)
	}

	list, err := f.backups.List(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != second.Name {
		t.Errorf("expected newest (sequenced) first, got %+v", list)
	}
}

func TestBackupStore_SameSecondRetentionKeepsJustCreated(t *testing.T) {
	f := newBackupFixture(t, nil, 2)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")

	for i := 1; i <= 4; i++ {
		if err := f.records.Put(ctx, key, []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatal(err)
		}
		created, err := f.backups.Snapshot(ctx, key)
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}

		list, err := f.backups.List(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) > 2 {
			t.Fatalf("snapshot %d: %d backups retained, limit is 2", i, len(list))
		}
		if list[0].Name != created.Name {
			t.Fatalf("snapshot %d: newest is %q, want just-created %q", i, list[0].Name, created.Name)
		}
		data, err := afero.ReadFile(f.fs, f.layout.BackupDir(key)+"/"+created.Name)
		if err != nil {
			t.Fatalf("snapshot %d: just-created backup missing: %v", i, err)
		}
		if string(data) != fmt.Sprintf("v%d", i) {
			t.Errorf("snapshot %d: content = %q", i, data)
		}
	}
}

func TestBackupStore_RetentionKeepsNewest(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")

	for i := 0; i < 5; i++ {
		f.putAndSnapshot(t, key, fmt.Sprintf("v%d", i))
	}
	list, err := f.backups.List(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 backups, got %d", len(list))
	}
	oldest := list[4].Name

	if err := f.records.Put(ctx, key, []byte("v5")); err != nil {
		t.Fatal(err)
	}
	created, err := f.backups.Snapshot(ctx, key)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	list, err = f.backups.List(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("expected retention to keep 5, got %d", len(list))
	}
	if list[0].Name != created.Name {
		t.Errorf("newest = %q, want just-created %q", list[0].Name, created.Name)
	}
	for _, e := range list {
		if e.Name == oldest {
			t.Errorf("oldest backup %q should have been pruned", oldest)
		}
	}
}

func TestBackupStore_RetentionNeverExceedsLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			f := newBackupFixture(t, nil, limit)
			key := mustKey(t, "42", "hero")
			for i := 0; i < 6; i++ {
				f.putAndSnapshot(t, key, fmt.Sprintf("v%d", i))
				list, err := f.backups.List(context.Background(), key)
				if err != nil {
					t.Fatal(err)
				}
				if len(list) > limit {
					t.Fatalf("after snapshot %d: %d backups exceed limit %d", i, len(list), limit)
				}
			}
		})
	}
}

func TestBackupStore_Restore(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")

	// Three backups holding v0, v1, v2; current is v3.
	for i := 0; i < 3; i++ {
		f.putAndSnapshot(t, key, fmt.Sprintf("v%d", i))
	}
	if err := f.records.Put(ctx, key, []byte("v3")); err != nil {
		t.Fatal(err)
	}

	list, err := f.backups.List(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	want, err := afero.ReadFile(f.fs, f.layout.BackupDir(key)+"/"+list[0].Name)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := f.backups.Restore(ctx, key, 0)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Name != list[0].Name {
		t.Errorf("restored %q, want %q", restored.Name, list[0].Name)
	}

	current, err := f.records.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(current, want) || string(current) != "v2" {
		t.Errorf("current = %q, want %q", current, want)
	}
	sidecar, err := afero.ReadFile(f.fs, f.layout.PreRestorePath(key))
	if err != nil {
		t.Fatalf("pre-restore sidecar missing: %v", err)
	}
	if string(sidecar) != "v3" {
		t.Errorf("sidecar = %q, want v3", sidecar)
	}

	after, err := f.backups.List(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 3 {
		t.Errorf("restore must not rotate a new backup, got %d backups", len(after))
	}
}

func TestBackupStore_RestoreOverwritesSidecar(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")
	for i := 0; i < 2; i++ {
		f.putAndSnapshot(t, key, fmt.Sprintf("v%d", i))
	}
	if err := f.records.Put(ctx, key, []byte("current")); err != nil {
		t.Fatal(err)
	}

	if _, err := f.backups.Restore(ctx, key, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.backups.Restore(ctx, key, 0); err != nil {
		t.Fatal(err)
	}

	sidecar, err := afero.ReadFile(f.fs, f.layout.PreRestorePath(key))
	if err != nil {
		t.Fatal(err)
	}
	if string(sidecar) != "v0" {
		t.Errorf("sidecar = %q, want state before the latest restore (v0)", sidecar)
	}
}

func TestBackupStore_RestoreIndexOutOfRange(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")
	for i := 0; i < 2; i++ {
		f.putAndSnapshot(t, key, fmt.Sprintf("v%d", i))
	}
	if err := f.records.Put(ctx, key, []byte("current")); err != nil {
		t.Fatal(err)
	}

	for _, idx := range []int{2, 10, -1} {
		_, err := f.backups.Restore(ctx, key, idx)
		if !errors.Is(err, record.ErrIndexOutOfRange) {
			t.Errorf("Restore(%d) err = %v, want ErrIndexOutOfRange", idx, err)
		}
	}

	current, err := f.records.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != "current" {
		t.Errorf("current mutated to %q", current)
	}
	if ok, _ := afero.Exists(f.fs, f.layout.PreRestorePath(key)); ok {
		t.Error("sidecar must not be created by a rejected restore")
	}
}

func TestBackupStore_RestoreWithoutCurrentRecord(t *testing.T) {
	f := newBackupFixture(t, nil, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")
	f.putAndSnapshot(t, key, "v0")
	if err := f.fs.Remove(f.layout.RecordPath(key)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.backups.Restore(ctx, key, 0); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	current, err := f.records.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != "v0" {
		t.Errorf("current = %q, want v0", current)
	}
	if ok, _ := afero.Exists(f.fs, f.layout.PreRestorePath(key)); ok {
		t.Error("no sidecar expected when there was no current record")
	}
}

func TestBackupStore_SnapshotWriteFailure(t *testing.T) {
	fs := testutil.NewFaultFS(nil)
	f := newBackupFixture(t, fs, 5)
	ctx := context.Background()
	key := mustKey(t, "42", "hero")
	if err := f.records.Put(ctx, key, []byte("v0")); err != nil {
		t.Fatal(err)
	}

	fs.Fail(testutil.OpWrite, "/backups/", nil)
	_, err := f.backups.Snapshot(ctx, key)
	if !record.IsIOError(err) {
		t.Fatalf("expected IOError, got %v", err)
	}
}
