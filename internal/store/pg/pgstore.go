package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgconn"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/workflow"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store persists records, RBAC tables and the append-only audit trail in
// Postgres. One table per regulated record type, one audit table; schema in
// migrations/.
type Store struct {
	db *sql.DB
}

var (
	_ workflow.Storage = (*Store)(nil)
	_ audit.Store      = (*Store)(nil)
	_ audit.Reader     = (*Store)(nil)
)

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// recordTables maps record types to their tables. Every table carries the
// same compliance columns; domain-only columns live outside this core.
var recordTables = map[record.Type]string{
	record.TypeCAPA:      "capa_records",
	record.TypeDocument:  "documents",
	record.TypeIncident:  "incident_reports",
	record.TypeTraining:  "training_records",
	record.TypeWorkOrder: "work_orders",
}

func tableFor(t record.Type) (string, error) {
	table, ok := recordTables[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", record.ErrUnknownType, t)
	}
	return table, nil
}

const recordColumns = `id, status, title, description, assigned_to, reference, evidence,
	created_at, updated_at, status_changed_at, due_at,
	version, digital_signature, session_id, device_info, ip_address`

func scanRecord(row *sql.Row, t record.Type) (record.Record, error) {
	var (
		rec      record.Record
		dueAt    sql.NullTime
		evidence []byte
	)
	err := row.Scan(&rec.ID, &rec.Status, &rec.Title, &rec.Description, &rec.AssignedTo,
		&rec.Reference, &evidence, &rec.CreatedAt, &rec.UpdatedAt, &rec.StatusChangedAt,
		&dueAt, &rec.Version, &rec.DigitalSignature, &rec.SessionID, &rec.DeviceInfo, &rec.IPAddress)
	if err != nil {
		return record.Record{}, err
	}
	rec.Type = t
	rec.Evidence = evidence
	if dueAt.Valid {
		rec.DueAt = dueAt.Time
	}
	return rec, nil
}

func (s *Store) LoadRecord(ctx context.Context, t record.Type, id string) (record.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return record.Record{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from `+table+` where id=$1`, id)
	rec, err := scanRecord(row, t)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("%w: %s/%s", workflow.ErrRecordNotFound, t, id)
	}
	if err != nil {
		return record.Record{}, storageErr(err)
	}
	return rec, nil
}

// InsertRecord creates a new record row at version 0. Creation is outside
// the lifecycle; the first transition moves it through the state machine.
func (s *Store) InsertRecord(ctx context.Context, rec record.Record) error {
	table, err := tableFor(rec.Type)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into `+table+` (`+recordColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, rec.ID, rec.Status, rec.Title, rec.Description, rec.AssignedTo, rec.Reference,
		rec.Evidence, rec.CreatedAt, rec.UpdatedAt, rec.StatusChangedAt, nullTime(rec.DueAt),
		rec.Version, rec.DigitalSignature, rec.SessionID, rec.DeviceInfo, rec.IPAddress)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("record %s/%s already exists", rec.Type, rec.ID)
		}
		return storageErr(err)
	}
	return nil
}

// ExecuteTx runs fn inside one database transaction; the record update and
// its audit entry commit or roll back together.
func (s *Store) ExecuteTx(ctx context.Context, fn func(tx workflow.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = dbTx.Rollback() }()

	if err := fn(&pgTx{tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) SaveRecord(ctx context.Context, rec record.Record, expectedVersion int64) error {
	table, err := tableFor(rec.Type)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		update `+table+` set
			status=$1, title=$2, description=$3, assigned_to=$4, reference=$5, evidence=$6,
			updated_at=$7, status_changed_at=$8, due_at=$9,
			version=$10, digital_signature=$11, session_id=$12, device_info=$13, ip_address=$14
		where id=$15 and version=$16
	`, rec.Status, rec.Title, rec.Description, rec.AssignedTo, rec.Reference, rec.Evidence,
		rec.UpdatedAt, rec.StatusChangedAt, nullTime(rec.DueAt),
		rec.Version, rec.DigitalSignature, rec.SessionID, rec.DeviceInfo, rec.IPAddress,
		rec.ID, expectedVersion)
	if err != nil {
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		var exists bool
		if err := t.tx.QueryRowContext(ctx,
			`select exists(select 1 from `+table+` where id=$1)`, rec.ID).Scan(&exists); err != nil {
			return storageErr(err)
		}
		if !exists {
			return fmt.Errorf("%w: %s/%s", workflow.ErrRecordNotFound, rec.Type, rec.ID)
		}
		return fmt.Errorf("%w: %s/%s expected version %d",
			workflow.ErrConcurrentModification, rec.Type, rec.ID, expectedVersion)
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	return appendAudit(ctx, t.tx, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendAudit(ctx context.Context, db execer, e audit.Entry) error {
	_, err := db.ExecContext(ctx, `
		insert into audit_trail
			(id, entity_type, entity_id, action, old_value, new_value, actor_id, at,
			 session_id, device_info, ip_address, digital_signature, note)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, e.EntityType, e.EntityID, e.Action, e.OldValue, e.NewValue, e.ActorID, e.At,
		e.SessionID, e.DeviceInfo, e.IPAddress, e.DigitalSignature, e.Note)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Append writes one audit entry outside a workflow transaction (read events,
// RBAC administration).
func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	return appendAudit(ctx, s.db, e)
}

// List queries the trail, newest first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, entity_type, entity_id, action, old_value, new_value, actor_id, at,
		       session_id, device_info, ip_address, digital_signature, note
		from audit_trail
		where ($1 = '' or entity_type = $1)
		  and ($2 = '' or entity_id = $2)
		  and ($3 = '' or actor_id = $3)
		  and ($4 = '' or action = $4)
		order by at desc, id desc
		limit $5
	`, f.EntityType, f.EntityID, f.ActorID, f.Action, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.OldValue,
			&e.NewValue, &e.ActorID, &e.At, &e.SessionID, &e.DeviceInfo, &e.IPAddress,
			&e.DigitalSignature, &e.Note); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// --- helpers ---

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// storageErr maps driver failures onto the workflow error kind so callers
// can decide on retry without knowing the driver.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", workflow.ErrStorageUnavailable, err)
}
