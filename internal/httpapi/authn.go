package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gxpcore.org/internal/auth"
	"gxpcore.org/internal/workflow"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
	tokenTTL   = 30 * time.Minute
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

type sessionContextKey struct{}

type issueTokenRequest struct {
	UserID string `json:"user_id"`
}

// handleToken issues a bearer token for an already-authenticated user.
// Credential verification (passwords, 2FA) happens upstream; this core only
// binds an identity to a session for signing and audit purposes.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req issueTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unknown user")
		return
	}
	if !user.Active || user.Locked {
		writeError(w, r, http.StatusUnauthorized, "user is not active")
		return
	}
	token, err := auth.GenerateToken(user.ID, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token issuance failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
	})
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			} else {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		principal, err := a.rbac.PrincipalFor(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unknown principal")
			return
		}

		sess := workflow.SessionContext{
			SessionID:  claims.SessionID(),
			DeviceInfo: r.UserAgent(),
			IPAddress:  clientIP(r),
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithActor(ctx, principal.User.ID)
		ctx = context.WithValue(ctx, sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext returns the forensic session context captured by withAuth.
func sessionFromContext(ctx context.Context) workflow.SessionContext {
	if v, ok := ctx.Value(sessionContextKey{}).(workflow.SessionContext); ok {
		return v
	}
	return workflow.SessionContext{}
}

// ensurePermission rejects the request unless the authenticated principal
// carries the permission code.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, code string) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !principal.HasPermission(code) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
