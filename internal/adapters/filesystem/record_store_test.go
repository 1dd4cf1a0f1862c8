package filesystem_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/adapters/filesystem"
	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/testutil"
)

const testRoot = "/srv/game"

func mustKey(t *testing.T, userID, name string) record.Key {
	t.Helper()
	key, err := record.NewKey(userID, name)
	if err != nil {
		t.Fatalf("NewKey(%q, %q) failed: %v", userID, name, err)
	}
	return key
}

func TestRecordStore_PutGetLastWriteWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := filesystem.NewRecordStore(fs, filesystem.NewLayout(testRoot))
	ctx := context.Background()
	key := mustKey(t, "42", "Hero")

	var last []byte
	for i := 0; i < 5; i++ {
		last = []byte(fmt.Sprintf("payload-%d", i))
		if err := store.Put(ctx, key, last); err != nil {
			t.Fatalf("Put #%d failed: %v", i, err)
		}
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, last) {
		t.Errorf("Get = %q, want %q", got, last)
	}

	path := filepath.Join(testRoot, "characters_server", "42_hero.fch")
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Errorf("expected record at %s", path)
	}
	if ok, _ := afero.Exists(fs, path+".tmp"); ok {
		t.Error("temp file should not remain after Put")
	}
}

func TestRecordStore_GetMissing(t *testing.T) {
	store := filesystem.NewRecordStore(afero.NewMemMapFs(), filesystem.NewLayout(testRoot))
	_, err := store.Get(context.Background(), mustKey(t, "1", "nobody"))
	if !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_Exists(t *testing.T) {
	store := filesystem.NewRecordStore(afero.NewMemMapFs(), filesystem.NewLayout(testRoot))
	ctx := context.Background()
	key := mustKey(t, "7", "mage")

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected record to not exist")
	}

	if err := store.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	exists, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected record to exist")
	}
}

func TestRecordStore_PutFailureKeepsPrevious(t *testing.T) {
	fs := testutil.NewFaultFS(nil)
	store := filesystem.NewRecordStore(fs, filesystem.NewLayout(testRoot))
	ctx := context.Background()
	key := mustKey(t, "42", "hero")

	if err := store.Put(ctx, key, []byte("old")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fs.Fail(testutil.OpRename, "42_hero.fch", nil)
	err := store.Put(ctx, key, []byte("new"))
	if !record.IsIOError(err) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if !errors.Is(err, testutil.ErrInjected) {
		t.Errorf("expected injected error to be wrapped, got %v", err)
	}

	fs.Reset()
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "old" {
		t.Errorf("previous record should survive failed write, got %q", got)
	}
}

func TestRecordStore_List(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := filesystem.NewLayout(testRoot)
	store := filesystem.NewRecordStore(fs, layout)
	ctx := context.Background()

	empty, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List on missing dir failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}

	for _, k := range []record.Key{mustKey(t, "1", "alpha"), mustKey(t, "2", "my_beta")} {
		if err := store.Put(ctx, k, []byte(k.Base())); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	// Noise that must not be listed.
	dir := layout.RecordsDir()
	for _, name := range []string{"migrated_players.txt", "1_alpha.fch.pre_restore", "3_gamma.fch.tmp", "orphan.fch"} {
		if err := afero.WriteFile(fs, filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll(filepath.Join(dir, "backups", "1_alpha"), 0o755); err != nil {
		t.Fatal(err)
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, info := range infos {
		got = append(got, info.Key.UserID+"|"+info.Key.RecordName)
	}
	sort.Strings(got)
	want := []string{"1|alpha", "2|my_beta"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}
