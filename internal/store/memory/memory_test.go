package memory

import (
	"context"
	"errors"
	"testing"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/workflow"
)

func TestSaveRecordCAS(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutRecord(record.Record{ID: "r1", Type: record.TypeCAPA, Status: "initiated", Version: 2})

	err := s.ExecuteTx(ctx, func(tx workflow.Tx) error {
		return tx.SaveRecord(ctx, record.Record{ID: "r1", Type: record.TypeCAPA, Status: "in_progress", Version: 3}, 2)
	})
	if err != nil {
		t.Fatalf("matching version should save: %v", err)
	}
	rec, err := s.LoadRecord(ctx, record.TypeCAPA, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 3 || rec.Status != "in_progress" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	err = s.ExecuteTx(ctx, func(tx workflow.Tx) error {
		return tx.SaveRecord(ctx, record.Record{ID: "r1", Type: record.TypeCAPA, Status: "closed", Version: 3}, 2)
	})
	if !errors.Is(err, workflow.ErrConcurrentModification) {
		t.Fatalf("stale version should conflict, got %v", err)
	}
	rec, _ = s.LoadRecord(ctx, record.TypeCAPA, "r1")
	if rec.Status != "in_progress" {
		t.Fatalf("conflicting save leaked: %+v", rec)
	}
}

func TestExecuteTxRollsBackStagedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutRecord(record.Record{ID: "r1", Type: record.TypeCAPA, Status: "initiated", Version: 1})

	boom := errors.New("boom")
	err := s.ExecuteTx(ctx, func(tx workflow.Tx) error {
		if err := tx.SaveRecord(ctx, record.Record{ID: "r1", Type: record.TypeCAPA, Status: "closed", Version: 2}, 1); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, audit.Entry{ID: "e1", EntityType: "capa", EntityID: "r1", Action: "CLOSE", ActorID: "u1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	rec, _ := s.LoadRecord(ctx, record.TypeCAPA, "r1")
	if rec.Status != "initiated" || rec.Version != 1 {
		t.Fatalf("record staged past failed tx: %+v", rec)
	}
	entries, _ := s.List(ctx, audit.Filter{EntityID: "r1"})
	if len(entries) != 0 {
		t.Fatalf("audit staged past failed tx: %d entries", len(entries))
	}
}

func TestSaveUnknownRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.ExecuteTx(ctx, func(tx workflow.Tx) error {
		return tx.SaveRecord(ctx, record.Record{ID: "ghost", Type: record.TypeCAPA, Version: 1}, 0)
	})
	if !errors.Is(err, workflow.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRecordsAreKeyedByType(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutRecord(record.Record{ID: "x", Type: record.TypeCAPA, Status: "initiated"})

	if _, err := s.LoadRecord(ctx, record.TypeDocument, "x"); !errors.Is(err, workflow.ErrRecordNotFound) {
		t.Fatalf("same id under another type must miss, got %v", err)
	}
}

func TestAuditListFiltering(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed := []audit.Entry{
		{ID: "1", EntityType: "capa", EntityID: "a", Action: "APPROVE", ActorID: "u1"},
		{ID: "2", EntityType: "capa", EntityID: "b", Action: "REJECT", ActorID: "u2"},
		{ID: "3", EntityType: "document", EntityID: "a", Action: "PUBLISH", ActorID: "u1"},
	}
	for _, e := range seed {
		if err := s.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, audit.Filter{EntityType: "capa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entity_type filter: got %d entries", len(got))
	}
	got, _ = s.List(ctx, audit.Filter{ActorID: "u1", EntityID: "a"})
	if len(got) != 2 {
		t.Fatalf("combined filter: got %d entries", len(got))
	}
	got, _ = s.List(ctx, audit.Filter{Action: "PUBLISH"})
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("action filter: %+v", got)
	}
}
