package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/ports/secondary"
)

// MigrationRegistry implements secondary.MigrationRegistry as an in-memory
// set mirrored by an append-only, one-id-per-line log.
type MigrationRegistry struct {
	fs   afero.Fs
	path string

	mu       sync.RWMutex
	migrated map[string]struct{}
	// needsNewline is set when the loaded log lacks a trailing newline.
	needsNewline bool
}

// NewMigrationRegistry creates a registry backed by the layout's log file.
// Call Load before use.
func NewMigrationRegistry(fs afero.Fs, layout Layout) *MigrationRegistry {
	return &MigrationRegistry{
		fs:       fs,
		path:     layout.RegistryPath(),
		migrated: make(map[string]struct{}),
	}
}

// Load parses the log into memory, skipping blank and '#' comment lines.
// A missing log is an empty registry.
func (r *MigrationRegistry) Load(ctx context.Context) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return record.WrapIO("read", r.path, err)
	}

	loaded := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		loaded[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return record.WrapIO("parse", r.path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrated = loaded
	r.needsNewline = len(data) > 0 && data[len(data)-1] != '\n'
	return nil
}

// Contains reports whether userID has completed migration.
func (r *MigrationRegistry) Contains(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.migrated[userID]
	return ok
}

// MarkMigrated inserts userID into memory and, only if it was new, appends
// it to the log. The in-memory entry survives an append failure, so the
// rest of the run stays correct even when durability is lost.
func (r *MigrationRegistry) MarkMigrated(ctx context.Context, userID string) (bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return false, err
	}
	userID = strings.TrimSpace(userID)
	if err := record.ValidateUserID(userID); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.migrated[userID]; ok {
		return false, nil
	}
	r.migrated[userID] = struct{}{}

	if err := r.append(userID); err != nil {
		return true, err
	}
	return true, nil
}

// All returns the registered user ids, sorted.
func (r *MigrationRegistry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.migrated))
	for id := range r.migrated {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *MigrationRegistry) append(userID string) error {
	if err := r.fs.MkdirAll(filepath.Dir(r.path), dirPerm); err != nil {
		return record.WrapIO("mkdir", filepath.Dir(r.path), err)
	}
	f, err := r.fs.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return record.WrapIO("open", r.path, err)
	}
	line := userID + "\n"
	if r.needsNewline {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return record.WrapIO("append", r.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return record.WrapIO("sync", r.path, err)
	}
	r.needsNewline = false
	return record.WrapIO("close", r.path, f.Close())
}

// Ensure MigrationRegistry implements the interface
var _ secondary.MigrationRegistry = (*MigrationRegistry)(nil)
