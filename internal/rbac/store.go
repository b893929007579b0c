package rbac

import "context"

// Store describes persistence operations required by the authorization
// engine. Implementations must report duplicate grant pairs as ErrConflict
// and missing rows as ErrNotFound; the service layers idempotency on top.
type Store interface {
	CreateUser(ctx context.Context, username string) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	SetUserLocked(ctx context.Context, userID string, locked bool) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateRole(ctx context.Context, code, name, notes string) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)

	InsertGrant(ctx context.Context, g Grant) error
	DeleteGrant(ctx context.Context, userID, roleID string) error
	GrantsForUser(ctx context.Context, userID string) ([]Grant, error)

	InsertRolePermission(ctx context.Context, rp RolePermission) error
	DeleteRolePermission(ctx context.Context, roleID, permissionID string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
	PermissionCodesForUser(ctx context.Context, userID string) ([]string, error)
}
