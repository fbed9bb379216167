package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims are the workspace-scoped claims the web app mints into
// every user token.
type CustomClaims struct {
	WorkspaceID string `json:"workspaceId"`
	ActorID     string `json:"actorId"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// Validate rejects tokens missing the claims every workspace route
// depends on.
func (c *CustomClaims) Validate() error {
	if c.WorkspaceID == "" || c.ActorID == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
