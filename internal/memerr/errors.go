// ABOUTME: Error taxonomy for the memory core
// ABOUTME: Sentinel errors wrapped with fmt.Errorf and matched via errors.Is
package memerr

import "errors"

var (
	// ErrNotFound means an id, date, or table had no match. Callers usually
	// report it as a zero-count success, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout means lock contention exceeded the configured bound.
	// Retryable by the caller.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrIOFailure covers disk and permission problems.
	ErrIOFailure = errors.New("i/o failure")

	// ErrParseFailure marks a single malformed ledger line. Swallowed at the
	// line level, never fatal to a surrounding read.
	ErrParseFailure = errors.New("parse failure")

	// ErrValidation means a bad field value on create or edit.
	ErrValidation = errors.New("validation failure")

	// ErrIndexMissing means a search was attempted before any sync built the
	// index database.
	ErrIndexMissing = errors.New("index missing")
)
