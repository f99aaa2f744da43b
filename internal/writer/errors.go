package writer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of this package.
var (
	// ErrInitialization indicates the writer could not be set up. It is fatal
	// for the build.
	ErrInitialization = errors.New("typedgql: initialization failed")
	// ErrFileSystem indicates a read, write or delete of a single artifact
	// failed.
	ErrFileSystem = errors.New("typedgql: filesystem error")
)

// InitializationError reports a failure to prepare the virtual output tree.
type InitializationError struct {
	// Stage names the step that failed (e.g. "schema", "output root").
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("typedgql: initialization failed at %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *InitializationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInitialization.
func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// FileSystemError reports a failed filesystem operation on one path.
type FileSystemError struct {
	Op    string
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *FileSystemError) Error() string {
	return fmt.Sprintf("typedgql: %s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *FileSystemError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrFileSystem.
func (e *FileSystemError) Is(target error) bool {
	return target == ErrFileSystem
}
