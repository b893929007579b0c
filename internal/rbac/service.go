package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service is the authorization engine. It resolves whether a principal may
// perform an action based on role->permission and user->role grants, and
// owns grant bookkeeping. Service does not write audit entries; the caller
// (orchestrator or HTTP layer) audits its own mutations.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the authorization engine.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	s := &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureBuiltinPermissions installs the builtin catalog, keeping existing rows.
func (s *Service) EnsureBuiltinPermissions(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

func (s *Service) CreateUser(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return s.store.CreateUser(ctx, username)
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) SetUserLocked(ctx context.Context, userID string, locked bool) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.SetUserLocked(ctx, userID, locked)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) CreateRole(ctx context.Context, code, name, notes string) (Role, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return Role{}, fmt.Errorf("%w: role code and name are required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, code, name, strings.TrimSpace(notes))
}

func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

func (s *Service) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Notes != nil {
		notes := strings.TrimSpace(*upd.Notes)
		upd.Notes = &notes
	}
	return s.store.UpdateRole(ctx, roleID, upd)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// GrantRole assigns a role to a user. Granting an already-held role is a
// no-op, not an error.
func (s *Service) GrantRole(ctx context.Context, userID, roleID, actorID, note string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	err := s.store.InsertGrant(ctx, Grant{
		UserID:    userID,
		RoleID:    roleID,
		GrantedBy: strings.TrimSpace(actorID),
		GrantedAt: s.now(),
		Note:      strings.TrimSpace(note),
	})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// RevokeRole removes a grant. Revoking an absent grant is a no-op.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID, actorID, reason string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	err := s.store.DeleteGrant(ctx, userID, roleID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// AddPermissionToRole links a permission into a role, idempotently.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID, permissionID, actorID, note string) error {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role_id and permission_id are required", ErrInvalidInput)
	}
	err := s.store.InsertRolePermission(ctx, RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		GrantedBy:    strings.TrimSpace(actorID),
		GrantedAt:    s.now(),
		Note:         strings.TrimSpace(note),
	})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// RemovePermissionFromRole unlinks a permission, idempotently.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID, actorID, note string) error {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role_id and permission_id are required", ErrInvalidInput)
	}
	err := s.store.DeleteRolePermission(ctx, roleID, permissionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// GetPermissionsForRole returns the permissions linked to the role.
func (s *Service) GetPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.PermissionsForRole(ctx, roleID)
}

// GetPermissionsNotInRole returns the complement: every known permission not
// linked to the role. Together with GetPermissionsForRole it partitions the
// permission universe.
func (s *Service) GetPermissionsNotInRole(ctx context.Context, roleID string) ([]Permission, error) {
	in, err := s.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	linked := make(map[string]struct{}, len(in))
	for _, p := range in {
		linked[p.ID] = struct{}{}
	}
	out := make([]Permission, 0, len(all))
	for _, p := range all {
		if _, ok := linked[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetRolesForUser returns the roles currently granted to the user.
func (s *Service) GetRolesForUser(ctx context.Context, userID string) ([]Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	grants, err := s.store.GrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(grants))
	for _, g := range grants {
		role, err := s.store.GetRole(ctx, g.RoleID)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// GetAvailableRolesForUser returns the roles not granted to the user.
func (s *Service) GetAvailableRolesForUser(ctx context.Context, userID string) ([]Role, error) {
	held, err := s.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	granted := make(map[string]struct{}, len(held))
	for _, r := range held {
		granted[r.ID] = struct{}{}
	}
	out := make([]Role, 0, len(all))
	for _, r := range all {
		if _, ok := granted[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// IsAuthorized reports whether some role granted to the user carries the
// permission code. Locked and inactive users hold no permissions. This is the
// single guard the lifecycle engine consults; callers must never compare role
// names instead.
func (s *Service) IsAuthorized(ctx context.Context, userID, permissionCode string) (bool, error) {
	userID = strings.TrimSpace(userID)
	permissionCode = strings.TrimSpace(permissionCode)
	if userID == "" || permissionCode == "" {
		return false, fmt.Errorf("%w: user_id and permission code are required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.Active || user.Locked {
		return false, nil
	}
	codes, err := s.store.PermissionCodesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if code == permissionCode {
			return true, nil
		}
	}
	return false, nil
}

// PrincipalFor loads a user with its resolved permission set, for request
// scoped checks that would otherwise hit the store once per permission.
func (s *Service) PrincipalFor(ctx context.Context, userID string) (Principal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	codes, err := s.store.PermissionCodesForUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(user, codes), nil
}
