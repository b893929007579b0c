// Package memory implements the storage collaborators in process, with the
// same error semantics as the Postgres store. It backs tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/ids"
	"gxpcore.org/internal/rbac"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/workflow"
)

type grantKey struct{ userID, roleID string }
type rolePermKey struct{ roleID, permissionID string }
type recordKey struct {
	t  record.Type
	id string
}

// Store holds everything behind one RWMutex. Returned values are copies;
// callers never observe later mutations.
type Store struct {
	mu sync.RWMutex

	users       map[string]rbac.User
	roles       map[string]rbac.Role
	perms       map[string]rbac.Permission
	permsByCode map[string]string
	grants      map[grantKey]rbac.Grant
	rolePerms   map[rolePermKey]rbac.RolePermission

	records map[recordKey]record.Record
	trail   []audit.Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]rbac.User),
		roles:       make(map[string]rbac.Role),
		perms:       make(map[string]rbac.Permission),
		permsByCode: make(map[string]string),
		grants:      make(map[grantKey]rbac.Grant),
		rolePerms:   make(map[rolePermKey]rbac.RolePermission),
		records:     make(map[recordKey]record.Record),
	}
}

var (
	_ rbac.Store       = (*Store)(nil)
	_ audit.Store      = (*Store)(nil)
	_ audit.Reader     = (*Store)(nil)
	_ workflow.Storage = (*Store)(nil)
)

// --- rbac.Store ---

func (s *Store) CreateUser(ctx context.Context, username string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return rbac.User{}, fmt.Errorf("%w: username %s", rbac.ErrConflict, username)
		}
	}
	now := time.Now().UTC()
	u := rbac.User{ID: ids.New(), Username: username, Active: true, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (rbac.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return rbac.User{}, fmt.Errorf("%w: user %s", rbac.ErrNotFound, userID)
	}
	return u, nil
}

func (s *Store) SetUserLocked(ctx context.Context, userID string, locked bool) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return rbac.User{}, fmt.Errorf("%w: user %s", rbac.ErrNotFound, userID)
	}
	u.Locked = locked
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]rbac.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) CreateRole(ctx context.Context, code, name, notes string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Code == code {
			return rbac.Role{}, fmt.Errorf("%w: role code %s", rbac.ErrConflict, code)
		}
	}
	now := time.Now().UTC()
	r := rbac.Role{ID: ids.New(), Code: code, Name: name, Notes: notes, CreatedAt: now, UpdatedAt: now}
	s.roles[r.ID] = r
	return r, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %s", rbac.ErrNotFound, roleID)
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, roleID string, upd rbac.RoleUpdate) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %s", rbac.ErrNotFound, roleID)
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Notes != nil {
		r.Notes = *upd.Notes
	}
	r.UpdatedAt = time.Now().UTC()
	s.roles[roleID] = r
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, p := range perms {
		if _, ok := s.permsByCode[p.Code]; ok {
			continue
		}
		p.ID = ids.New()
		p.CreatedAt = now
		s.perms[p.ID] = p
		s.permsByCode[p.Code] = p.ID
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertGrant(ctx context.Context, g rbac.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{userID: g.UserID, roleID: g.RoleID}
	if _, ok := s.grants[key]; ok {
		return fmt.Errorf("%w: grant %s/%s", rbac.ErrConflict, g.UserID, g.RoleID)
	}
	if _, ok := s.users[g.UserID]; !ok {
		return fmt.Errorf("%w: user %s", rbac.ErrNotFound, g.UserID)
	}
	if _, ok := s.roles[g.RoleID]; !ok {
		return fmt.Errorf("%w: role %s", rbac.ErrNotFound, g.RoleID)
	}
	s.grants[key] = g
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{userID: userID, roleID: roleID}
	if _, ok := s.grants[key]; !ok {
		return fmt.Errorf("%w: grant %s/%s", rbac.ErrNotFound, userID, roleID)
	}
	delete(s.grants, key)
	return nil
}

func (s *Store) GrantsForUser(ctx context.Context, userID string) ([]rbac.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.Grant
	for key, g := range s.grants {
		if key.userID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) InsertRolePermission(ctx context.Context, rp rbac.RolePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rolePermKey{roleID: rp.RoleID, permissionID: rp.PermissionID}
	if _, ok := s.rolePerms[key]; ok {
		return fmt.Errorf("%w: role permission %s/%s", rbac.ErrConflict, rp.RoleID, rp.PermissionID)
	}
	if _, ok := s.roles[rp.RoleID]; !ok {
		return fmt.Errorf("%w: role %s", rbac.ErrNotFound, rp.RoleID)
	}
	if _, ok := s.perms[rp.PermissionID]; !ok {
		return fmt.Errorf("%w: permission %s", rbac.ErrNotFound, rp.PermissionID)
	}
	s.rolePerms[key] = rp
	return nil
}

func (s *Store) DeleteRolePermission(ctx context.Context, roleID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rolePermKey{roleID: roleID, permissionID: permissionID}
	if _, ok := s.rolePerms[key]; !ok {
		return fmt.Errorf("%w: role permission %s/%s", rbac.ErrNotFound, roleID, permissionID)
	}
	delete(s.rolePerms, key)
	return nil
}

func (s *Store) PermissionsForRole(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.Permission
	for key := range s.rolePerms {
		if key.roleID != roleID {
			continue
		}
		if p, ok := s.perms[key.permissionID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) PermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for gk := range s.grants {
		if gk.userID != userID {
			continue
		}
		for rk := range s.rolePerms {
			if rk.roleID != gk.roleID {
				continue
			}
			p, ok := s.perms[rk.permissionID]
			if !ok {
				continue
			}
			if _, dup := seen[p.Code]; dup {
				continue
			}
			seen[p.Code] = struct{}{}
			out = append(out, p.Code)
		}
	}
	return out, nil
}

// --- record storage ---

// PutRecord seeds or replaces a record, bypassing the lifecycle. Intended for
// record creation paths and tests.
func (s *Store) PutRecord(rec record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{t: rec.Type, id: rec.ID}] = rec
}

func (s *Store) LoadRecord(ctx context.Context, t record.Type, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{t: t, id: id}]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s/%s", workflow.ErrRecordNotFound, t, id)
	}
	return rec, nil
}

// ExecuteTx stages all writes and applies them only when fn succeeds. The
// store lock is held for the duration; callbacks only touch the Tx.
func (s *Store) ExecuteTx(ctx context.Context, fn func(tx workflow.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, rec := range tx.saved {
		s.records[recordKey{t: rec.Type, id: rec.ID}] = rec
	}
	s.trail = append(s.trail, tx.entries...)
	return nil
}

type memTx struct {
	store   *Store
	saved   []record.Record
	entries []audit.Entry
}

func (tx *memTx) SaveRecord(ctx context.Context, rec record.Record, expectedVersion int64) error {
	cur, ok := tx.store.records[recordKey{t: rec.Type, id: rec.ID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", workflow.ErrRecordNotFound, rec.Type, rec.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: %s/%s version %d, expected %d",
			workflow.ErrConcurrentModification, rec.Type, rec.ID, cur.Version, expectedVersion)
	}
	tx.saved = append(tx.saved, rec)
	return nil
}

func (tx *memTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	tx.entries = append(tx.entries, e)
	return nil
}

// --- audit.Store / audit.Reader ---

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trail = append(s.trail, e)
	return nil
}

func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.trail {
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
