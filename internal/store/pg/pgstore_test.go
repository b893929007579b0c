package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/workflow"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func recordRow(rec record.Record) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "status", "title", "description", "assigned_to", "reference", "evidence",
		"created_at", "updated_at", "status_changed_at", "due_at",
		"version", "digital_signature", "session_id", "device_info", "ip_address",
	}).AddRow(rec.ID, string(rec.Status), rec.Title, rec.Description, rec.AssignedTo,
		rec.Reference, rec.Evidence, rec.CreatedAt, rec.UpdatedAt, rec.StatusChangedAt,
		rec.DueAt, rec.Version, rec.DigitalSignature, rec.SessionID, rec.DeviceInfo, rec.IPAddress)
}

func TestLoadRecord(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	want := record.Record{
		ID: "c1", Type: record.TypeCAPA, Status: "pending_approval", Title: "Line 3 deviation",
		CreatedAt: now, UpdatedAt: now, StatusChangedAt: now, DueAt: now.Add(72 * time.Hour),
		Version: 2, DigitalSignature: "AB12", SessionID: "s1", DeviceInfo: "ws", IPAddress: "10.0.0.1",
	}
	mock.ExpectQuery("select (.+) from capa_records where id=\\$1").
		WithArgs("c1").WillReturnRows(recordRow(want))

	got, err := s.LoadRecord(context.Background(), record.TypeCAPA, "c1")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if got.ID != want.ID || got.Status != want.Status || got.Version != want.Version {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Type != record.TypeCAPA {
		t.Fatalf("type not set: %q", got.Type)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadRecordNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	empty := sqlmock.NewRows([]string{
		"id", "status", "title", "description", "assigned_to", "reference", "evidence",
		"created_at", "updated_at", "status_changed_at", "due_at",
		"version", "digital_signature", "session_id", "device_info", "ip_address",
	})
	mock.ExpectQuery("select (.+) from work_orders where id=\\$1").
		WithArgs("ghost").WillReturnRows(empty)

	_, err := s.LoadRecord(context.Background(), record.TypeWorkOrder, "ghost")
	if !errors.Is(err, workflow.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestLoadRecordUnknownType(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.LoadRecord(context.Background(), record.Type("invoice"), "x")
	if !errors.Is(err, record.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestExecuteTxCommitsRecordAndAudit(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := record.Record{
		ID: "c1", Type: record.TypeCAPA, Status: "approved",
		UpdatedAt: now, StatusChangedAt: now, Version: 3,
		DigitalSignature: "CAFE", SessionID: "s1", DeviceInfo: "ws", IPAddress: "10.0.0.1",
	}
	entry := audit.Entry{
		ID: "e1", EntityType: "capa", EntityID: "c1", Action: "APPROVE",
		ActorID: "u1", At: now, DigitalSignature: "CAFE",
	}

	mock.ExpectBegin()
	mock.ExpectExec("update capa_records set").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_trail").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ExecuteTx(context.Background(), func(tx workflow.Tx) error {
		if err := tx.SaveRecord(context.Background(), rec, 2); err != nil {
			return err
		}
		return tx.AppendAudit(context.Background(), entry)
	})
	if err != nil {
		t.Fatalf("ExecuteTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRecordVersionConflict(t *testing.T) {
	s, mock := newMockStore(t)
	rec := record.Record{ID: "c1", Type: record.TypeCAPA, Status: "approved", Version: 3}

	mock.ExpectBegin()
	mock.ExpectExec("update capa_records set").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.ExecuteTx(context.Background(), func(tx workflow.Tx) error {
		return tx.SaveRecord(context.Background(), rec, 2)
	})
	if !errors.Is(err, workflow.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRecordGoneRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	rec := record.Record{ID: "d1", Type: record.TypeDocument, Status: "published", Version: 1}

	mock.ExpectBegin()
	mock.ExpectExec("update documents set").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := s.ExecuteTx(context.Background(), func(tx workflow.Tx) error {
		return tx.SaveRecord(context.Background(), rec, 0)
	})
	if !errors.Is(err, workflow.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestExecuteTxRollsBackOnCallbackError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.ExecuteTx(context.Background(), func(tx workflow.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into audit_trail").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Append(context.Background(), audit.Entry{
		ID: "e1", EntityType: "capa", EntityID: "c1", Action: "LOAD", ActorID: "u1", At: now,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := sqlmock.NewRows([]string{
		"id", "entity_type", "entity_id", "action", "old_value", "new_value", "actor_id", "at",
		"session_id", "device_info", "ip_address", "digital_signature", "note",
	}).AddRow("e1", "capa", "c1", "LOAD", "", "", "u1", now, "s1", "ws", "10.0.0.1", "", "")
	mock.ExpectQuery("select (.+) from audit_trail").
		WithArgs("capa", "c1", "", "", 100).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), audit.Filter{EntityType: "capa", EntityID: "c1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" || got[0].Action != "LOAD" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListStorageError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from audit_trail").
		WillReturnError(errors.New("connection refused"))
	_, err := s.List(context.Background(), audit.Filter{})
	if !errors.Is(err, workflow.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
