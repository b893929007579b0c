package workflow

import "errors"

var (
	// ErrRecordNotFound means no record exists for the given type and id.
	ErrRecordNotFound = errors.New("workflow: record not found")

	// ErrConcurrentModification means the optimistic-concurrency write lost
	// the race; the caller should reload and retry.
	ErrConcurrentModification = errors.New("workflow: concurrent modification")

	// ErrStorageUnavailable wraps storage timeouts and IO failures. This core
	// never retries internally; retry policy belongs to the caller.
	ErrStorageUnavailable = errors.New("workflow: storage unavailable")

	// ErrSignatureComputation is reserved for defensive completeness; signing
	// is total over well-formed records, so it should be unreachable.
	ErrSignatureComputation = errors.New("workflow: signature computation failed")
)
