package filesystem

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/example/charkeep/internal/core/record"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// writeFileAtomic writes data to a sibling temp file, syncs it and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return record.WrapIO("mkdir", filepath.Dir(path), err)
	}

	tmp := path + record.TempSuffix
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return record.WrapIO("create", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return record.WrapIO("write", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return record.WrapIO("sync", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return record.WrapIO("close", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return record.WrapIO("rename", path, err)
	}
	return nil
}

// copyFileAtomic copies src over dst through writeFileAtomic.
func copyFileAtomic(fs afero.Fs, src, dst string) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return record.WrapIO("read", src, err)
	}
	return writeFileAtomic(fs, dst, data)
}

// fileExists reports whether path exists as a regular file.
func fileExists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, record.WrapIO("stat", path, err)
	}
	return !info.IsDir(), nil
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
