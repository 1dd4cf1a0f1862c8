package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/ports/secondary"
)

// RecordStore implements secondary.RecordStore on an afero filesystem.
// Writes for one key must be serialized by the caller.
type RecordStore struct {
	fs     afero.Fs
	layout Layout
}

// NewRecordStore creates a record store rooted at layout.
func NewRecordStore(fs afero.Fs, layout Layout) *RecordStore {
	return &RecordStore{fs: fs, layout: layout}
}

// Get returns the current blob of key.
func (s *RecordStore) Get(ctx context.Context, key record.Key) ([]byte, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	path := s.layout.RecordPath(key)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("record %s: %w", key, record.ErrNotFound)
	}
	if err != nil {
		return nil, record.WrapIO("read", path, err)
	}
	return data, nil
}

// Exists reports whether a current record is present for key.
func (s *RecordStore) Exists(ctx context.Context, key record.Key) (bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return false, err
	}
	return fileExists(s.fs, s.layout.RecordPath(key))
}

// Put replaces the current record of key. It writes a temp file and
// renames it, so a crash mid-write leaves the previous record intact.
func (s *RecordStore) Put(ctx context.Context, key record.Key, blob []byte) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	return writeFileAtomic(s.fs, s.layout.RecordPath(key), blob)
}

// List scans the record directory and returns every current record.
func (s *RecordStore) List(ctx context.Context) ([]*secondary.RecordInfo, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	dir := s.layout.RecordsDir()
	infos, err := afero.ReadDir(s.fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, record.WrapIO("readdir", dir, err)
	}

	var out []*secondary.RecordInfo
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), record.TempSuffix) {
			continue
		}
		key, ok := record.ParseFileName(info.Name())
		if !ok {
			continue
		}
		out = append(out, &secondary.RecordInfo{
			Key:        key,
			ModifiedAt: info.ModTime(),
			Size:       info.Size(),
		})
	}
	return out, nil
}

// Ensure RecordStore implements the interface
var _ secondary.RecordStore = (*RecordStore)(nil)
