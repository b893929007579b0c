package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gxpcore.org/internal/ids"
	"gxpcore.org/internal/obs"
)

var (
	ErrInvalidEntry     = errors.New("audit: invalid entry")
	ErrMissingSignature = errors.New("audit: digital signature required for mutating action")
)

// Writer appends audit entries. The writer assigns entry timestamps in UTC at
// append time; caller-supplied timestamps are never trusted, to prevent
// backdating.
type Writer struct {
	store Store
	now   func() time.Time
}

// Option configures Writer.
type Option func(*Writer)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter constructs a Writer over the given store.
func NewWriter(store Store, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	w := &Writer{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Seal validates the entry and stamps its id and append-time UTC timestamp.
// Sealing is separate from Append so the orchestrator can write the sealed
// entry inside the same storage transaction as the record update.
func (w *Writer) Seal(e Entry) (Entry, error) {
	e.EntityType = strings.TrimSpace(e.EntityType)
	e.Action = strings.TrimSpace(e.Action)
	e.ActorID = strings.TrimSpace(e.ActorID)
	if e.EntityType == "" || e.Action == "" {
		return Entry{}, fmt.Errorf("%w: entity type and action are required", ErrInvalidEntry)
	}
	if e.ActorID == "" {
		return Entry{}, fmt.Errorf("%w: actor is required", ErrInvalidEntry)
	}
	if requiresSignature(e) && strings.TrimSpace(e.DigitalSignature) == "" {
		return Entry{}, fmt.Errorf("%w: %s", ErrMissingSignature, e.Action)
	}
	e.ID = ids.New()
	e.At = w.now().UTC()
	return e, nil
}

// Append seals the entry and writes it to the store.
func (w *Writer) Append(ctx context.Context, e Entry) (Entry, error) {
	sealed, err := w.Seal(e)
	if err != nil {
		return Entry{}, err
	}
	if err := w.store.Append(ctx, sealed); err != nil {
		return Entry{}, err
	}
	obs.ObserveAuditAppend(sealed.Action)
	return sealed, nil
}
