package audit

import (
	"context"
	"time"

	"gxpcore.org/internal/record"
)

// Action codes written by this core in addition to the lifecycle action set.
const (
	ActionLoad     = "LOAD"
	ActionExport   = "EXPORT"
	ActionRollback = "ROLLBACK"

	ActionGrantRole      = "GRANT_ROLE"
	ActionRevokeRole     = "REVOKE_ROLE"
	ActionAddRolePerm    = "ADD_ROLE_PERMISSION"
	ActionRemoveRolePerm = "REMOVE_ROLE_PERMISSION"
)

// readOnlyActions may carry an empty digital signature; every other action
// mutates state and must be signed.
var readOnlyActions = map[string]struct{}{
	ActionLoad:   {},
	ActionExport: {},
}

// IsMutating reports whether the action code describes a state mutation.
func IsMutating(action string) bool {
	_, ro := readOnlyActions[action]
	return !ro
}

// requiresSignature reports whether the entry must carry a digital signature:
// every mutation of a regulated record is signed; RBAC bookkeeping and
// read-only events are not.
func requiresSignature(e Entry) bool {
	if !IsMutating(e.Action) {
		return false
	}
	_, err := record.ParseType(e.EntityType)
	return err == nil
}

// Entry is one append-only audit record: who did what, when, with what
// authorization. Once written it is never updated or deleted; history is
// corrected only by a new compensating entry (ActionRollback).
type Entry struct {
	ID         string
	EntityType string
	EntityID   string
	Action     string
	OldValue   string
	NewValue   string
	ActorID    string
	At         time.Time

	SessionID  string
	DeviceInfo string
	IPAddress  string

	DigitalSignature string
	Note             string
}

// Store appends immutable entries. No update or delete is exposed anywhere.
type Store interface {
	Append(ctx context.Context, e Entry) error
}

// Reader queries the trail. Reading lives on a separate interface so that
// write paths cannot accidentally depend on it.
type Reader interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Filter narrows an audit query. Zero fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Limit      int
}
