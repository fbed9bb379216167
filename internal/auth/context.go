package auth

import (
	"context"

	"adboard-api/internal/domain"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	authContextKey   contextKey = "auth_context"
)

// AuthContext carries the resolved identity of the caller for the lifetime
// of a request, regardless of whether it authenticated via JWT or S2S token.
type AuthContext struct {
	WorkspaceID string
	ActorID     string
	Email       string
	ActorType   string // "user" or "service"
	AuthMethod  string // "jwt" or "s2s"
	Issuer      string
	Client      string // S2S client name, empty for JWT
}

// Principal converts the auth context into a domain principal.
func (a *AuthContext) Principal() domain.Principal {
	if a == nil {
		return domain.Principal{}
	}
	return domain.Principal{
		ID:    a.ActorID,
		Email: a.Email,
	}
}

// GetClaims retrieves JWT claims from context
func GetClaims(ctx context.Context) (*CustomClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*CustomClaims)
	return claims, ok
}

// GetAuthContext retrieves the auth context from context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok
}
