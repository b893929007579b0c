package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureStore struct {
	entries []Entry
	fail    error
}

func (s *captureStore) Append(ctx context.Context, e Entry) error {
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, e)
	return nil
}

func newTestWriter(t *testing.T, store Store, at time.Time) *Writer {
	t.Helper()
	w, err := NewWriter(store, WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestSealStampsIDAndTimestamp(t *testing.T) {
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	w := newTestWriter(t, &captureStore{}, at)

	sealed, err := w.Seal(Entry{
		EntityType:       "capa",
		EntityID:         "c1",
		Action:           "APPROVE",
		ActorID:          "u1",
		DigitalSignature: "ABC123",
		// Caller-supplied timestamps are discarded.
		At: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.ID == "" {
		t.Fatal("expected generated id")
	}
	if !sealed.At.Equal(at) {
		t.Fatalf("timestamp %v, want writer clock %v", sealed.At, at)
	}
}

func TestSealRejectsIncompleteEntries(t *testing.T) {
	w := newTestWriter(t, &captureStore{}, time.Now().UTC())
	cases := []struct {
		name string
		e    Entry
	}{
		{"missing entity type", Entry{Action: "APPROVE", ActorID: "u1", DigitalSignature: "X"}},
		{"missing action", Entry{EntityType: "capa", ActorID: "u1", DigitalSignature: "X"}},
		{"missing actor", Entry{EntityType: "capa", Action: "APPROVE", DigitalSignature: "X"}},
	}
	for _, tc := range cases {
		if _, err := w.Seal(tc.e); !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("%s: expected ErrInvalidEntry, got %v", tc.name, err)
		}
	}
}

func TestRecordMutationRequiresSignature(t *testing.T) {
	w := newTestWriter(t, &captureStore{}, time.Now().UTC())

	_, err := w.Seal(Entry{EntityType: "capa", EntityID: "c1", Action: "APPROVE", ActorID: "u1"})
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("unsigned record mutation: expected ErrMissingSignature, got %v", err)
	}

	// Read-only events on records are unsigned by design.
	if _, err := w.Seal(Entry{EntityType: "capa", EntityID: "c1", Action: ActionLoad, ActorID: "u1"}); err != nil {
		t.Fatalf("unsigned LOAD: %v", err)
	}

	// RBAC bookkeeping has no signable record and stays unsigned.
	if _, err := w.Seal(Entry{EntityType: "user", EntityID: "u2", Action: ActionGrantRole, ActorID: "u1"}); err != nil {
		t.Fatalf("unsigned GRANT_ROLE: %v", err)
	}
}

func TestAppendWritesToStore(t *testing.T) {
	store := &captureStore{}
	w := newTestWriter(t, store, time.Now().UTC())

	sealed, err := w.Append(context.Background(), Entry{
		EntityType:       "work_order",
		EntityID:         "w1",
		Action:           "CLOSE",
		ActorID:          "u1",
		DigitalSignature: "FFAA",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(store.entries))
	}
	if store.entries[0].ID != sealed.ID {
		t.Fatal("stored entry differs from sealed entry")
	}
}

func TestAppendPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	w := newTestWriter(t, &captureStore{fail: boom}, time.Now().UTC())
	if _, err := w.Append(context.Background(), Entry{
		EntityType: "user", EntityID: "u2", Action: ActionGrantRole, ActorID: "u1",
	}); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestIsMutating(t *testing.T) {
	if IsMutating(ActionLoad) || IsMutating(ActionExport) {
		t.Fatal("LOAD and EXPORT are read-only")
	}
	if !IsMutating("APPROVE") || !IsMutating(ActionGrantRole) {
		t.Fatal("APPROVE and GRANT_ROLE are mutations")
	}
}
