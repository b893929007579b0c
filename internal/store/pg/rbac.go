package pg

import (
	"context"
	"database/sql"
	"errors"

	"gxpcore.org/internal/ids"
	"gxpcore.org/internal/rbac"
)

var _ rbac.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, username string) (rbac.User, error) {
	var u rbac.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, username, active, locked)
		values ($1, $2, true, false)
		returning id, username, active, locked, created_at, updated_at
	`, ids.New(), username)
	if err := row.Scan(&u.ID, &u.Username, &u.Active, &u.Locked, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.User{}, rbac.ErrConflict
		}
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (rbac.User, error) {
	var u rbac.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, active, locked, created_at, updated_at
		from users where id = $1
	`, userID).Scan(&u.ID, &u.Username, &u.Active, &u.Locked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) SetUserLocked(ctx context.Context, userID string, locked bool) (rbac.User, error) {
	var u rbac.User
	err := s.db.QueryRowContext(ctx, `
		update users set locked = $2, updated_at = now()
		where id = $1
		returning id, username, active, locked, created_at, updated_at
	`, userID, locked).Scan(&u.ID, &u.Username, &u.Active, &u.Locked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]rbac.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username, active, locked, created_at, updated_at
		from users order by username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.User
	for rows.Next() {
		var u rbac.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Active, &u.Locked, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CreateRole(ctx context.Context, code, name, notes string) (rbac.Role, error) {
	var r rbac.Role
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, code, name, notes)
		values ($1, $2, $3, $4)
		returning id, code, name, notes, created_at, updated_at
	`, ids.New(), code, name, notes)
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Role{}, rbac.ErrConflict
		}
		return rbac.Role{}, err
	}
	return r, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (rbac.Role, error) {
	var r rbac.Role
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, notes, created_at, updated_at
		from roles where id = $1
	`, roleID).Scan(&r.ID, &r.Code, &r.Name, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, roleID string, upd rbac.RoleUpdate) (rbac.Role, error) {
	var r rbac.Role
	err := s.db.QueryRowContext(ctx, `
		update roles set
			name = coalesce($2, name),
			notes = coalesce($3, notes),
			updated_at = now()
		where id = $1
		returning id, code, name, notes, created_at, updated_at
	`, roleID, upd.Name, upd.Notes).Scan(&r.ID, &r.Code, &r.Name, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, notes, created_at, updated_at
		from roles order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Role
	for rows.Next() {
		var r rbac.Role
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	for _, p := range perms {
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (id, code, name)
			values ($1, $2, $3)
			on conflict (code) do nothing
		`, ids.New(), p.Code, p.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, created_at from permissions order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertGrant(ctx context.Context, g rbac.Grant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id, granted_by, granted_at, note)
		values ($1, $2, $3, $4, $5)
	`, g.UserID, g.RoleID, g.GrantedBy, g.GrantedAt, g.Note)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return rbac.ErrConflict
		case pgErrForeignKeyViolation:
			return rbac.ErrNotFound
		}
	}
	return err
}

func (s *Store) DeleteGrant(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) GrantsForUser(ctx context.Context, userID string) ([]rbac.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, granted_by, granted_at, note
		from user_roles where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Grant
	for rows.Next() {
		var g rbac.Grant
		if err := rows.Scan(&g.UserID, &g.RoleID, &g.GrantedBy, &g.GrantedAt, &g.Note); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) InsertRolePermission(ctx context.Context, rp rbac.RolePermission) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id, granted_by, granted_at, note)
		values ($1, $2, $3, $4, $5)
	`, rp.RoleID, rp.PermissionID, rp.GrantedBy, rp.GrantedAt, rp.Note)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return rbac.ErrConflict
		case pgErrForeignKeyViolation:
			return rbac.ErrNotFound
		}
	}
	return err
}

func (s *Store) DeleteRolePermission(ctx context.Context, roleID, permissionID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_permissions where role_id = $1 and permission_id = $2
	`, roleID, permissionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) PermissionsForRole(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.code, p.name, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.code
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.code
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join user_roles ur on ur.role_id = rp.role_id
		where ur.user_id = $1
		order by p.code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
