package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/rbac"
)

type auditEntryDTO struct {
	ID               string    `json:"id"`
	EntityType       string    `json:"entity_type"`
	EntityID         string    `json:"entity_id"`
	Action           string    `json:"action"`
	OldValue         string    `json:"old_value,omitempty"`
	NewValue         string    `json:"new_value,omitempty"`
	ActorID          string    `json:"actor_id"`
	At               time.Time `json:"at"`
	SessionID        string    `json:"session_id,omitempty"`
	DeviceInfo       string    `json:"device_info,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
	DigitalSignature string    `json:"digital_signature,omitempty"`
	Note             string    `json:"note,omitempty"`
}

func toAuditEntryDTO(e audit.Entry) auditEntryDTO {
	return auditEntryDTO{
		ID:               e.ID,
		EntityType:       e.EntityType,
		EntityID:         e.EntityID,
		Action:           e.Action,
		OldValue:         e.OldValue,
		NewValue:         e.NewValue,
		ActorID:          e.ActorID,
		At:               e.At,
		SessionID:        e.SessionID,
		DeviceInfo:       e.DeviceInfo,
		IPAddress:        e.IPAddress,
		DigitalSignature: e.DigitalSignature,
		Note:             e.Note,
	}
}

func (a *API) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, rbac.PermAuditRead) {
		return
	}
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid limit")
		return
	}
	f := audit.Filter{
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		EntityID:   strings.TrimSpace(q.Get("entity_id")),
		ActorID:    strings.TrimSpace(q.Get("actor_id")),
		Action:     strings.TrimSpace(q.Get("action")),
		Limit:      limit,
	}
	entries, err := a.trail.List(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
		return
	}
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// handleAuditStream pushes appended entries to the client as server-sent
// events until the client disconnects.
func (a *API) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, rbac.PermAuditRead) {
		return
	}
	if a.events == nil {
		writeError(w, r, http.StatusNotImplemented, "audit streaming is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := a.events.Subscribe(r.Context())
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case e, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(toAuditEntryDTO(e))
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: audit\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
