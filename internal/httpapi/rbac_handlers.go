package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/auth"
	"gxpcore.org/internal/rbac"
)

const (
	entityTypeUser = "user"
	entityTypeRole = "role"
)

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type roleDTO struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type permissionDTO struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func toUserDTO(u rbac.User) userDTO {
	return userDTO{ID: u.ID, Username: u.Username, Active: u.Active, Locked: u.Locked, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func toRoleDTO(r rbac.Role) roleDTO {
	return roleDTO{ID: r.ID, Code: r.Code, Name: r.Name, Notes: r.Notes, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func toPermissionDTOs(perms []rbac.Permission) []permissionDTO {
	out := make([]permissionDTO, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionDTO{ID: p.ID, Code: p.Code, Name: p.Name})
	}
	return out
}

func toRoleDTOs(roles []rbac.Role) []roleDTO {
	out := make([]roleDTO, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleDTO(r))
	}
	return out
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, rbac.PermRBACManage) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := a.rbac.ListUsers(r.Context())
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		out := make([]userDTO, 0, len(users))
		for _, u := range users {
			out = append(out, toUserDTO(u))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.CreateUser(r.Context(), req.Username)
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserDTO(user))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserScoped routes /v1/users/{id}, /v1/users/{id}/lock,
// /v1/users/{id}/roles and /v1/users/{id}/roles/{roleID}.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, rbac.PermRBACManage) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		user, err := a.rbac.GetUser(r.Context(), userID)
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserDTO(user))
	case len(parts) == 2 && parts[1] == "lock":
		a.handleUserLock(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, userID, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleUserLock(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.SetUserLocked(r.Context(), userID, req.Locked)
	if err != nil {
		a.handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		var (
			roles []rbac.Role
			err   error
		)
		if r.URL.Query().Get("available") == "true" {
			roles, err = a.rbac.GetAvailableRolesForUser(r.Context(), userID)
		} else {
			roles, err = a.rbac.GetRolesForUser(r.Context(), userID)
		}
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": toRoleDTOs(roles)})
	case http.MethodPost:
		var req struct {
			RoleID string `json:"role_id"`
			Note   string `json:"note"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		actor, _ := auth.ActorFromContext(r.Context())
		if err := a.rbac.GrantRole(r.Context(), userID, req.RoleID, actor, req.Note); err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		a.auditRBAC(r, entityTypeUser, userID, audit.ActionGrantRole, req.RoleID, req.Note)
		writeJSON(w, http.StatusOK, map[string]any{"status": "granted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actor, _ := auth.ActorFromContext(r.Context())
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if err := a.rbac.RevokeRole(r.Context(), userID, roleID, actor, reason); err != nil {
		a.handleRBACError(w, r, err)
		return
	}
	a.auditRBAC(r, entityTypeUser, userID, audit.ActionRevokeRole, roleID, reason)
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, rbac.PermRBACManage) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		roles, err := a.rbac.ListRoles(r.Context())
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": toRoleDTOs(roles)})
	case http.MethodPost:
		var req struct {
			Code  string `json:"code"`
			Name  string `json:"name"`
			Notes string `json:"notes"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), req.Code, req.Name, req.Notes)
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRoleDTO(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRoleScoped routes /v1/roles/{id}, /v1/roles/{id}/permissions and
// /v1/roles/{id}/permissions/{permissionID}.
func (a *API) handleRoleScoped(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, rbac.PermRBACManage) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	roleID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	case len(parts) == 3 && parts[1] == "permissions":
		a.handleRolePermission(w, r, roleID, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		role, err := a.rbac.GetRole(r.Context(), roleID)
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleDTO(role))
	case http.MethodPatch:
		var req struct {
			Name  *string `json:"name"`
			Notes *string `json:"notes"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), roleID, rbac.RoleUpdate{Name: req.Name, Notes: req.Notes})
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleDTO(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		var (
			perms []rbac.Permission
			err   error
		)
		if r.URL.Query().Get("missing") == "true" {
			perms, err = a.rbac.GetPermissionsNotInRole(r.Context(), roleID)
		} else {
			perms, err = a.rbac.GetPermissionsForRole(r.Context(), roleID)
		}
		if err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": toPermissionDTOs(perms)})
	case http.MethodPost:
		var req struct {
			PermissionID string `json:"permission_id"`
			Note         string `json:"note"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		actor, _ := auth.ActorFromContext(r.Context())
		if err := a.rbac.AddPermissionToRole(r.Context(), roleID, req.PermissionID, actor, req.Note); err != nil {
			a.handleRBACError(w, r, err)
			return
		}
		a.auditRBAC(r, entityTypeRole, roleID, audit.ActionAddRolePerm, req.PermissionID, req.Note)
		writeJSON(w, http.StatusOK, map[string]any{"status": "added"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRolePermission(w http.ResponseWriter, r *http.Request, roleID, permissionID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actor, _ := auth.ActorFromContext(r.Context())
	note := strings.TrimSpace(r.URL.Query().Get("reason"))
	if err := a.rbac.RemovePermissionFromRole(r.Context(), roleID, permissionID, actor, note); err != nil {
		a.handleRBACError(w, r, err)
		return
	}
	a.auditRBAC(r, entityTypeRole, roleID, audit.ActionRemoveRolePerm, permissionID, note)
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, rbac.PermRBACManage) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context())
	if err != nil {
		a.handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": toPermissionDTOs(perms)})
}

// auditRBAC records an authorization change in the trail. RBAC entries are
// unsigned; subject is the grant target, not the acting admin.
func (a *API) auditRBAC(r *http.Request, entityType, entityID, action, subject, note string) {
	actor, _ := auth.ActorFromContext(r.Context())
	sess := sessionFromContext(r.Context())
	entry := audit.Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		NewValue:   subject,
		ActorID:    actor,
		SessionID:  sess.SessionID,
		DeviceInfo: sess.DeviceInfo,
		IPAddress:  sess.IPAddress,
		Note:       note,
	}
	if _, err := a.writer.Append(r.Context(), entry); err != nil {
		audit.LogEvent(r.Context(), "rbac.audit_failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
	}
}

func (a *API) handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
