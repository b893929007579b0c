package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/lifecycle"
	"gxpcore.org/internal/obs"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/signature"
	"gxpcore.org/internal/stream"
)

// SessionContext is the forensic context of the current caller, supplied by
// the principal/session collaborator (HTTP layer in this service).
type SessionContext struct {
	SessionID  string
	DeviceInfo string
	IPAddress  string
}

// Orchestrator is the façade callers use to act on regulated records. One
// Execute call authorizes, validates the transition, signs the new state,
// and commits the record update together with its audit entry. All
// collaborators arrive through the constructor; nothing is resolved globally.
type Orchestrator struct {
	storage Storage
	engine  *lifecycle.Engine
	writer  *audit.Writer
	events  *stream.Stream
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEventStream publishes committed audit entries to the given stream.
func WithEventStream(s *stream.Stream) OrchestratorOption {
	return func(o *Orchestrator) { o.events = s }
}

// NewOrchestrator constructs the workflow façade.
func NewOrchestrator(storage Storage, engine *lifecycle.Engine, writer *audit.Writer, opts ...OrchestratorOption) (*Orchestrator, error) {
	if storage == nil {
		return nil, errors.New("workflow storage is required")
	}
	if engine == nil {
		return nil, errors.New("lifecycle engine is required")
	}
	if writer == nil {
		return nil, errors.New("audit writer is required")
	}
	o := &Orchestrator{storage: storage, engine: engine, writer: writer}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Execute performs one workflow action end to end. On any failure at any
// step nothing is persisted and nothing is appended; the returned error
// carries the specific kind (lifecycle.ErrInvalidTransition,
// lifecycle.ErrUnauthorized, ErrConcurrentModification, ErrStorageUnavailable).
func (o *Orchestrator) Execute(ctx context.Context, t record.Type, id string, action record.Action, actorID string, sess SessionContext) (record.Record, error) {
	rec, err := o.storage.LoadRecord(ctx, t, id)
	if err != nil {
		obs.ObserveTransition(string(t), string(action), outcome(err))
		return record.Record{}, err
	}

	updated, err := o.engine.Transition(ctx, rec, action, actorID)
	if err != nil {
		obs.ObserveTransition(string(t), string(action), outcome(err))
		if errors.Is(err, lifecycle.ErrUnauthorized) {
			// Denied attempts are not written to the durable trail; they
			// surface as system events only.
			_ = audit.LogEvent(ctx, "workflow.denied", map[string]any{
				"record_type": string(t),
				"record_id":   id,
				"action":      string(action),
				"actor_id":    actorID,
			})
		}
		return record.Record{}, err
	}

	sig := signature.Sign(updated, sess.SessionID, sess.DeviceInfo)
	if sig == "" {
		obs.ObserveTransition(string(t), string(action), "signature")
		return record.Record{}, ErrSignatureComputation
	}
	updated.DigitalSignature = sig
	updated.SessionID = sess.SessionID
	updated.DeviceInfo = sess.DeviceInfo
	updated.IPAddress = sess.IPAddress
	updated.Version = rec.Version + 1

	entry, err := o.writer.Seal(audit.Entry{
		EntityType:       string(t),
		EntityID:         id,
		Action:           string(action),
		OldValue:         snapshot(rec),
		NewValue:         snapshot(updated),
		ActorID:          actorID,
		SessionID:        sess.SessionID,
		DeviceInfo:       sess.DeviceInfo,
		IPAddress:        sess.IPAddress,
		DigitalSignature: sig,
	})
	if err != nil {
		obs.ObserveTransition(string(t), string(action), "audit")
		return record.Record{}, err
	}

	err = o.storage.ExecuteTx(ctx, func(tx Tx) error {
		if err := tx.SaveRecord(ctx, updated, rec.Version); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		obs.ObserveTransition(string(t), string(action), outcome(err))
		return record.Record{}, err
	}

	obs.ObserveTransition(string(t), string(action), "ok")
	obs.ObserveAuditAppend(entry.Action)
	if o.events != nil {
		o.events.Publish(entry)
	}
	return updated, nil
}

// GetRecord loads a record without auditing the read.
func (o *Orchestrator) GetRecord(ctx context.Context, t record.Type, id string) (record.Record, error) {
	return o.storage.LoadRecord(ctx, t, id)
}

// ValidActions lists the actions legal from the record type's given status.
func (o *Orchestrator) ValidActions(t record.Type, s record.Status) []record.Action {
	return o.engine.ValidActions(t, s)
}

// VerifyRecord recomputes the record's signature from its persisted state and
// forensic context and compares it with the stored value.
func (o *Orchestrator) VerifyRecord(ctx context.Context, t record.Type, id string) (bool, error) {
	rec, err := o.storage.LoadRecord(ctx, t, id)
	if err != nil {
		return false, err
	}
	if rec.DigitalSignature == "" {
		return false, nil
	}
	return signature.Verify(rec, rec.SessionID, rec.DeviceInfo, rec.DigitalSignature), nil
}

// LogReadEvent appends a read-only audit entry (LOAD or EXPORT). Read events
// carry no digital signature; nothing was mutated.
func (o *Orchestrator) LogReadEvent(ctx context.Context, t record.Type, id, action, actorID string, sess SessionContext) (audit.Entry, error) {
	if audit.IsMutating(action) {
		return audit.Entry{}, fmt.Errorf("%w: %s is not a read-only action", audit.ErrInvalidEntry, action)
	}
	entry, err := o.writer.Append(ctx, audit.Entry{
		EntityType: string(t),
		EntityID:   id,
		Action:     action,
		ActorID:    actorID,
		SessionID:  sess.SessionID,
		DeviceInfo: sess.DeviceInfo,
		IPAddress:  sess.IPAddress,
	})
	if err != nil {
		return audit.Entry{}, err
	}
	if o.events != nil {
		o.events.Publish(entry)
	}
	return entry, nil
}

// snapshot renders the compliance-bearing view of a record for audit
// old/new value columns.
func snapshot(rec record.Record) string {
	data, err := json.Marshal(map[string]any{
		"status":            string(rec.Status),
		"version":           rec.Version,
		"assigned_to":       rec.AssignedTo,
		"status_changed_at": rec.StatusChangedAt,
		"digital_signature": rec.DigitalSignature,
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// outcome classifies an error for the transition metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage"
	default:
		return "error"
	}
}
