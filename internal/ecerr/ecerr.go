// Package ecerr defines the tagged error taxonomy shared by every evocore
// package. Public operations never panic across an API boundary; they
// return one of these sentinels wrapped with context via fmt.Errorf("%w").
package ecerr

import "errors"

var (
	// ErrNullArgument marks a required pointer/slice/callback that was nil.
	ErrNullArgument = errors.New("evocore: null argument")
	// ErrInvalidArgument marks a value outside its declared/valid range.
	ErrInvalidArgument = errors.New("evocore: invalid argument")
	// ErrOutOfMemory marks a failed allocation; partial state is unwound
	// before this is returned.
	ErrOutOfMemory = errors.New("evocore: out of memory")
	// ErrNotFound marks a missing lookup (no similar failure record, no
	// context entry, no bucket).
	ErrNotFound = errors.New("evocore: not found")
	// ErrEmpty marks an operation attempted on an empty collection.
	ErrEmpty = errors.New("evocore: empty")
	// ErrFull marks a fixed-capacity collection that has no room left.
	ErrFull = errors.New("evocore: full")
	// ErrIO marks a file open/read/write failure.
	ErrIO = errors.New("evocore: io")
	// ErrFormat marks a malformed or version-mismatched serialized payload.
	ErrFormat = errors.New("evocore: format")
	// ErrUnknown wraps an underlying library failure (e.g. an accelerator
	// backend) that does not fit any other kind.
	ErrUnknown = errors.New("evocore: unknown")
)
