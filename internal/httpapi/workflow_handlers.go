package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/auth"
	"gxpcore.org/internal/lifecycle"
	"gxpcore.org/internal/rbac"
	"gxpcore.org/internal/record"
	"gxpcore.org/internal/workflow"
)

type recordDTO struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	Reference        string     `json:"reference,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StatusChangedAt  time.Time  `json:"status_changed_at"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	Version          int64      `json:"version"`
	DigitalSignature string     `json:"digital_signature,omitempty"`
}

func toRecordDTO(rec record.Record) recordDTO {
	dto := recordDTO{
		ID:               rec.ID,
		Type:             string(rec.Type),
		Status:           string(rec.Status),
		Title:            rec.Title,
		Description:      rec.Description,
		AssignedTo:       rec.AssignedTo,
		Reference:        rec.Reference,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		StatusChangedAt:  rec.StatusChangedAt,
		Version:          rec.Version,
		DigitalSignature: rec.DigitalSignature,
	}
	if !rec.DueAt.IsZero() {
		due := rec.DueAt
		dto.DueAt = &due
	}
	return dto
}

// handleWorkflowScoped routes /v1/workflow/{type}/{id}[/transitions|/actions|/verify].
func (a *API) handleWorkflowScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/workflow/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	t, err := record.ParseType(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "unknown record type")
		return
	}
	id := parts[1]

	switch {
	case len(parts) == 2:
		a.handleRecordGet(w, r, t, id)
	case len(parts) == 3 && parts[2] == "transitions":
		a.handleTransition(w, r, t, id)
	case len(parts) == 3 && parts[2] == "actions":
		a.handleRecordActions(w, r, t, id)
	case len(parts) == 3 && parts[2] == "verify":
		a.handleRecordVerify(w, r, t, id)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleRecordGet(w http.ResponseWriter, r *http.Request, t record.Type, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, rbac.PermRecordRead) {
		return
	}
	rec, err := a.orch.GetRecord(r.Context(), t, id)
	if err != nil {
		a.handleWorkflowError(w, r, err)
		return
	}
	actor, _ := auth.ActorFromContext(r.Context())
	action := audit.ActionLoad
	if r.URL.Query().Get("export") == "true" {
		if !a.ensurePermission(w, r, rbac.PermRecordExport) {
			return
		}
		action = audit.ActionExport
	}
	if _, err := a.orch.LogReadEvent(r.Context(), t, id, action, actor, sessionFromContext(r.Context())); err != nil {
		a.handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request, t record.Type, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action := record.Action(strings.ToUpper(strings.TrimSpace(req.Action)))
	if action == "" {
		writeError(w, r, http.StatusBadRequest, "action is required")
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	rec, err := a.orch.Execute(r.Context(), t, id, action, actor, sessionFromContext(r.Context()))
	if err != nil {
		a.handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

func (a *API) handleRecordActions(w http.ResponseWriter, r *http.Request, t record.Type, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, rbac.PermRecordRead) {
		return
	}
	rec, err := a.orch.GetRecord(r.Context(), t, id)
	if err != nil {
		a.handleWorkflowError(w, r, err)
		return
	}
	actions := a.orch.ValidActions(t, rec.Status)
	out := make([]string, 0, len(actions))
	for _, act := range actions {
		out = append(out, string(act))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  string(rec.Status),
		"actions": out,
	})
}

func (a *API) handleRecordVerify(w http.ResponseWriter, r *http.Request, t record.Type, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, rbac.PermRecordRead) {
		return
	}
	valid, err := a.orch.VerifyRecord(r.Context(), t, id)
	if err != nil {
		a.handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

func (a *API) handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workflow.ErrRecordNotFound):
		writeError(w, r, http.StatusNotFound, "record not found")
	case errors.Is(err, lifecycle.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, "record was modified concurrently, reload and retry")
	case errors.Is(err, workflow.ErrStorageUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, record.ErrUnknownType):
		writeError(w, r, http.StatusNotFound, "unknown record type")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
