package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress indicates another run holds the (operation, tenant) lock.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrRecordImmutable occurs when a write targets an invoiced record.
	ErrRecordImmutable = errors.New("invoiced records are immutable")
)
