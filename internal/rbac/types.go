package rbac

import "time"

// User is a principal. Users are never hard-deleted while audit entries
// reference them; Locked toggles availability instead.
type User struct {
	ID        string
	Username  string
	Active    bool
	Locked    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role groups permissions under a stable machine code. The id is immutable
// once referenced by a grant or an audit entry; code/name/notes may change.
type Role struct {
	ID        string
	Code      string
	Name      string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is the atomic unit of authorization, e.g. "capa.approve".
type Permission struct {
	ID        string
	Code      string
	Name      string
	CreatedAt time.Time
}

// Grant assigns a role to a user. At most one active grant exists per
// (user, role) pair; revocation deletes the row, the audit trail is the
// historical record.
type Grant struct {
	UserID    string
	RoleID    string
	GrantedBy string
	GrantedAt time.Time
	Note      string
}

// RolePermission links a permission into a role, same uniqueness rule as Grant.
type RolePermission struct {
	RoleID       string
	PermissionID string
	GrantedBy    string
	GrantedAt    time.Time
	Note         string
}

// RoleUpdate carries optional role mutations.
type RoleUpdate struct {
	Name  *string
	Notes *string
}
