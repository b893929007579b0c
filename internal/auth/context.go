package auth

import (
	"context"

	"gxpcore.org/internal/rbac"
)

type principalContextKey struct{}
type actorContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal rbac.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (rbac.Principal, bool) {
	if ctx == nil {
		return rbac.Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*rbac.Principal)
	if !ok || v == nil {
		return rbac.Principal{}, false
	}
	return *v, true
}

// ContextWithActor stores the acting user id for audit logging.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext returns the acting user id if it was attached.
func ActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
