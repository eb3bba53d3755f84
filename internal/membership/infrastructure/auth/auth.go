package auth

import (
	"context"

	"github.com/axyra/membership/pkg/observability"
)

// ContextAuth resolves the signed-in user from the request context, falling
// back to a configured operator id for CLI and worker processes.
type ContextAuth struct {
	fallback string
}

// NewContextAuth creates an auth context. An empty fallback means requests
// without a user in their context are unauthenticated.
func NewContextAuth(fallback string) *ContextAuth {
	return &ContextAuth{fallback: fallback}
}

// CurrentUserID returns the user id, or "" when nobody is signed in.
func (a *ContextAuth) CurrentUserID(ctx context.Context) string {
	if id := observability.UserIDFromContext(ctx); id != "" {
		return id
	}
	if a == nil {
		return ""
	}
	return a.fallback
}
