package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gxpcore.org/internal/obs"
	"gxpcore.org/internal/record"
)

// Authorizer is the single guard consulted before any transition.
type Authorizer interface {
	IsAuthorized(ctx context.Context, userID, permissionCode string) (bool, error)
}

// Engine validates and applies lifecycle transitions, generically over the
// registered record-type descriptors. It returns the updated record without
// persisting it; persistence and audit belong to the orchestrator so that the
// state change and the audit write commit together.
type Engine struct {
	authz       Authorizer
	descriptors map[record.Type]*Descriptor
	now         func() time.Time
}

// Option configures Engine.
type Option func(*Engine)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an engine over the given descriptors.
func NewEngine(authz Authorizer, descs []*Descriptor, opts ...Option) (*Engine, error) {
	if authz == nil {
		return nil, errors.New("lifecycle: authorizer is required")
	}
	if len(descs) == 0 {
		return nil, errors.New("lifecycle: at least one descriptor is required")
	}
	e := &Engine{
		authz:       authz,
		descriptors: make(map[record.Type]*Descriptor, len(descs)),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, d := range descs {
		if _, dup := e.descriptors[d.Type]; dup {
			return nil, fmt.Errorf("lifecycle: duplicate descriptor for %s", d.Type)
		}
		e.descriptors[d.Type] = d
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Descriptor returns the registered descriptor for the record type.
func (e *Engine) Descriptor(t record.Type) (*Descriptor, bool) {
	d, ok := e.descriptors[t]
	return d, ok
}

// Transition checks that action is legal from rec's current status and that
// the actor holds the gating permission, then returns rec with the new status
// and transition timestamp applied. The input record is not mutated.
func (e *Engine) Transition(ctx context.Context, rec record.Record, action record.Action, actorID string) (record.Record, error) {
	desc, ok := e.descriptors[rec.Type]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: no lifecycle for record type %q", ErrInvalidTransition, rec.Type)
	}
	if !desc.HasState(rec.Status) {
		return record.Record{}, fmt.Errorf("%w: status %q is not in the %s alphabet", ErrInvalidTransition, rec.Status, rec.Type)
	}
	next, ok := desc.Next(rec.Status, action)
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s not allowed from %q", ErrInvalidTransition, action, rec.Status)
	}
	// Self-loops are rejected at descriptor build time; keep the runtime
	// guard so a no-op resubmission can never slip through.
	if next == rec.Status {
		return record.Record{}, fmt.Errorf("%w: %s would not change status %q", ErrInvalidTransition, action, rec.Status)
	}

	perm, ok := desc.Permission(action)
	if !ok {
		return record.Record{}, fmt.Errorf("%w: no permission mapped for %s", ErrInvalidTransition, action)
	}
	allowed, err := e.authz.IsAuthorized(ctx, actorID, perm)
	if err != nil {
		return record.Record{}, fmt.Errorf("lifecycle: authorization check: %w", err)
	}
	if !allowed {
		obs.ObserveAuthzDenial(perm)
		return record.Record{}, fmt.Errorf("%w: actor %s lacks %s", ErrUnauthorized, actorID, perm)
	}

	now := e.now()
	updated := rec
	updated.Status = next
	updated.StatusChangedAt = now
	updated.UpdatedAt = now
	return updated, nil
}

// ValidActions returns the actions legal from the given status, sorted. An
// empty slice for a terminal status is by construction, not by lookup failure.
func (e *Engine) ValidActions(t record.Type, s record.Status) []record.Action {
	desc, ok := e.descriptors[t]
	if !ok {
		return nil
	}
	actions := desc.ActionsFrom(s)
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// RequiredPermission resolves the permission code an action needs for a type.
func (e *Engine) RequiredPermission(t record.Type, action record.Action) (string, bool) {
	desc, ok := e.descriptors[t]
	if !ok {
		return "", false
	}
	return desc.Permission(action)
}
