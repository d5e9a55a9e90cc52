// Package apperr defines the engine-wide error taxonomy. Callers match
// with errors.Is; packages wrap these with operation context.
package apperr

import "errors"

var (
	// ErrInvalidScope marks a path that escapes the workspace root or
	// names something that does not exist.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrNotFound marks a missing target, e.g. no ancestor notes file.
	ErrNotFound = errors.New("not found")
	// ErrMalformedRecord marks an unparseable log line. Recovered locally
	// by skipping; never fatal for whole-log operations.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrLockTimeout marks an append that could not acquire the log lock
	// within the configured ceiling. Nothing was written.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrIO marks an unreadable or unwritable file.
	ErrIO = errors.New("io failure")
)
