// Package testutil provides test doubles shared across packages.
package testutil

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrInjected is the default error returned by FaultFS.
var ErrInjected = errors.New("injected I/O failure")

// Fault operations.
const (
	OpOpen   = "open"
	OpWrite  = "write"
	OpRename = "rename"
	OpRemove = "remove"
)

type fault struct {
	op       string
	contains string
	err      error
}

// FaultFS wraps an afero.Fs and fails selected operations on paths
// containing a substring. Safe for concurrent use.
type FaultFS struct {
	afero.Fs

	mu     sync.Mutex
	faults []fault
}

// NewFaultFS wraps base. A nil base uses an in-memory filesystem.
func NewFaultFS(base afero.Fs) *FaultFS {
	if base == nil {
		base = afero.NewMemMapFs()
	}
	return &FaultFS{Fs: base}
}

// Fail makes op fail with err on any path containing contains.
// A nil err uses ErrInjected.
func (f *FaultFS) Fail(op, contains string, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fault{op: op, contains: contains, err: err})
}

// Reset clears all faults.
func (f *FaultFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

func (f *FaultFS) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, flt := range f.faults {
		if flt.op == op && strings.Contains(path, flt.contains) {
			return &os.PathError{Op: op, Path: path, Err: flt.err}
		}
	}
	return nil
}

// Open fails reads registered under OpOpen.
func (f *FaultFS) Open(name string) (afero.File, error) {
	if err := f.check(OpOpen, name); err != nil {
		return nil, err
	}
	return f.Fs.Open(name)
}

// OpenFile fails writable opens registered under OpWrite and read-only
// opens registered under OpOpen.
func (f *FaultFS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	op := OpOpen
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE) != 0 {
		op = OpWrite
	}
	if err := f.check(op, name); err != nil {
		return nil, err
	}
	return f.Fs.OpenFile(name, flag, perm)
}

// Create fails under OpWrite.
func (f *FaultFS) Create(name string) (afero.File, error) {
	if err := f.check(OpWrite, name); err != nil {
		return nil, err
	}
	return f.Fs.Create(name)
}

// Rename fails under OpRename when either path matches.
func (f *FaultFS) Rename(oldname, newname string) error {
	if err := f.check(OpRename, newname); err != nil {
		return err
	}
	if err := f.check(OpRename, oldname); err != nil {
		return err
	}
	return f.Fs.Rename(oldname, newname)
}

// Remove fails under OpRemove.
func (f *FaultFS) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}
