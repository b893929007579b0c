package workflow

import (
	"context"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/record"
)

// Storage is the persistence collaborator. Implementations map their own
// failure modes onto the workflow error kinds: a missing record is
// ErrRecordNotFound, a lost CAS race is ErrConcurrentModification, timeouts
// and IO failures are ErrStorageUnavailable.
type Storage interface {
	LoadRecord(ctx context.Context, t record.Type, id string) (record.Record, error)

	// ExecuteTx runs fn inside one storage transaction. Everything written
	// through the Tx commits or rolls back together; this is the boundary
	// that keeps the record update and its audit entry atomic.
	ExecuteTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional write surface handed to ExecuteTx callbacks.
type Tx interface {
	// SaveRecord persists the record if its stored version still equals
	// expectedVersion (compare-and-swap, never a blind overwrite).
	SaveRecord(ctx context.Context, rec record.Record, expectedVersion int64) error

	// AppendAudit writes one immutable audit entry.
	AppendAudit(ctx context.Context, e audit.Entry) error
}
