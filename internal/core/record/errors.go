package record

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by stores, services and the admin surface.
var (
	// ErrNotFound is returned when a record, session or backup is absent.
	ErrNotFound = errors.New("not found")

	// ErrIndexOutOfRange is returned when a backup index does not exist.
	ErrIndexOutOfRange = errors.New("backup index out of range")

	// ErrInconsistency marks a disagreement between the migration registry
	// and the record store. It is reported, never repaired automatically.
	ErrInconsistency = errors.New("registry and record store disagree")

	// ErrRetentionViolation means more backups remain than the retention
	// limit allows after enforcement. Seeing it indicates a bug.
	ErrRetentionViolation = errors.New("retention limit exceeded after enforcement")

	// ErrMigrationBlocked is returned when a first write is attempted while
	// migrations are globally disabled.
	ErrMigrationBlocked = errors.New("migration not allowed")

	// ErrInvalidKey is returned for user ids that cannot form a record path.
	ErrInvalidKey = errors.New("invalid record key")
)

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WrapIO returns nil for a nil err, otherwise an *IOError.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// IsIOError reports whether err carries an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
