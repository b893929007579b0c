package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"gxpcore.org/internal/rbac"
)

var userCols = []string{"id", "username", "active", "locked", "created_at", "updated_at"}

func TestCreateUser(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "inspector").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "inspector", true, false, now, now))

	u, err := s.CreateUser(context.Background(), "inspector")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID != "u1" || !u.Active || u.Locked {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserDuplicateMapsToConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "inspector").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := s.CreateUser(context.Background(), "inspector")
	if !errors.Is(err, rbac.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from users where id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := s.GetUser(context.Background(), "ghost")
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertGrantForeignKeyMapsToNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into user_roles").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := s.InsertGrant(context.Background(), rbac.Grant{UserID: "u1", RoleID: "ghost"})
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertGrantDuplicateMapsToConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into user_roles").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := s.InsertGrant(context.Background(), rbac.Grant{UserID: "u1", RoleID: "r1"})
	if !errors.Is(err, rbac.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPermissionCodesForUser(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select distinct p.code").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("audit.read").AddRow("capa.approve"))

	codes, err := s.PermissionCodesForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("PermissionCodesForUser: %v", err)
	}
	if len(codes) != 2 || codes[0] != "audit.read" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}
