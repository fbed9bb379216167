package auth

import "context"

// SetAuthContextForTesting injects an AuthContext directly, letting
// handler tests simulate an authenticated request without minting a
// real token. Not for production code paths.
func SetAuthContextForTesting(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}
