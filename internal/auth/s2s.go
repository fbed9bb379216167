package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"adboard-api/internal/http/httperr"
	"adboard-api/internal/observability/logger"

	"go.uber.org/zap"
)

// S2STokenStore maps static service-to-service tokens to client names.
// Tokens are registered once at startup from config.
type S2STokenStore struct {
	tokens map[string]string // token -> client name
}

func NewS2STokenStore() *S2STokenStore {
	return &S2STokenStore{tokens: make(map[string]string)}
}

// RegisterToken associates a token with a client name. Empty tokens
// (unset env vars) are ignored so the client is simply disabled.
func (s *S2STokenStore) RegisterToken(token, clientName string) {
	if token != "" {
		s.tokens[token] = clientName
	}
}

// ValidateToken returns the client name registered for the token.
func (s *S2STokenStore) ValidateToken(token string) (string, bool) {
	client, ok := s.tokens[token]
	return client, ok
}

// AuthMiddleware authenticates every request from the Authorization
// header. Bearer values shaped like a JWT go through the key resolver;
// anything else is treated as a static S2S token.
func AuthMiddleware(resolver *KeyResolver, s2sStore *S2STokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.GetLogger(r.Context())

			tokenString, authErr := bearerToken(r)
			if authErr != nil {
				logAuthFailure(r, log, "", authErr.Reason, nil)
				httperr.Unauthorized401(w, r.Context(), mapAuthErrorToCode(authErr), authErr.Message)
				return
			}

			var ctx context.Context
			if looksLikeJWT(tokenString) {
				ctx = authenticateJWT(r, resolver, tokenString, log, w)
			} else {
				ctx = authenticateS2S(r, s2sStore, tokenString, log, w)
			}
			if ctx == nil {
				// Response already written
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the Bearer credential from the request.
func bearerToken(r *http.Request) (string, *AuthError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", NewAuthError(AuthFailureMissingAuthorization, "missing authorization header", nil)
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", NewAuthError(AuthFailureInvalidScheme, "invalid authorization scheme, expected Bearer", nil)
	}
	return parts[1], nil
}

// looksLikeJWT reports whether a credential has JWT shape: compact
// serialization with a base64 {"alg"... header.
func looksLikeJWT(token string) bool {
	return strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2
}

func authenticateJWT(r *http.Request, resolver *KeyResolver, tokenString string, log *logger.Logger, w http.ResponseWriter) context.Context {
	ctx := r.Context()

	claims, err := resolver.Resolve(ctx, tokenString)
	if err != nil {
		authErr, _ := IsAuthError(err)
		reason := AuthFailureUnknown
		if authErr != nil {
			reason = authErr.Reason
		}
		logAuthFailure(r, log, "jwt", reason, err, zap.String("token_prefix", maskToken(tokenString)))
		httperr.Unauthorized401(w, ctx, mapAuthErrorToCode(authErr), "invalid or expired token")
		return nil
	}

	authCtx := &AuthContext{
		WorkspaceID: claims.WorkspaceID,
		ActorID:     claims.ActorID,
		Email:       claims.Email,
		ActorType:   "user",
		AuthMethod:  "jwt",
		Issuer:      claims.Issuer,
	}
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	ctx = context.WithValue(ctx, authContextKey, authCtx)

	log.Info(ctx, "authenticated request",
		zap.String("auth_type", "jwt"),
		zap.String("workspace_id", claims.WorkspaceID),
		zap.String("actor_id", claims.ActorID),
		zap.String("issuer", claims.Issuer),
	)
	return ctx
}

func authenticateS2S(r *http.Request, s2sStore *S2STokenStore, tokenString string, log *logger.Logger, w http.ResponseWriter) context.Context {
	ctx := r.Context()

	client, ok := s2sStore.ValidateToken(tokenString)
	if !ok {
		logAuthFailure(r, log, "s2s", AuthFailureInvalidSignature, nil, zap.String("token_prefix", maskToken(tokenString)))
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidSignature, "invalid S2S token")
		return nil
	}

	workspaceID, actorID, err := s2sScopeHeaders(r)
	if err != nil {
		logAuthFailure(r, log, "s2s", AuthFailureUnknown, err, zap.String("client", client))
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "invalid X-Workspace-Id or X-Actor-Id header")
		return nil
	}

	authCtx := &AuthContext{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		ActorType:   "service",
		AuthMethod:  "s2s",
		Client:      client,
	}
	ctx = context.WithValue(ctx, authContextKey, authCtx)

	fields := []logger.Field{
		zap.String("auth_type", "s2s"),
		zap.String("client", client),
	}
	if workspaceID != "" {
		fields = append(fields, zap.String("workspace_id", workspaceID))
	}
	if actorID != "" {
		fields = append(fields, zap.String("actor_id", actorID))
	}
	log.Info(ctx, "authenticated request", fields...)

	return ctx
}

// s2sScopeHeaders reads the optional X-Workspace-Id and X-Actor-Id
// headers a service caller may use to act on behalf of a principal.
// Present-but-blank values are rejected.
func s2sScopeHeaders(r *http.Request) (workspaceID, actorID string, err error) {
	workspaceID = r.Header.Get("X-Workspace-Id")
	actorID = r.Header.Get("X-Actor-Id")

	if workspaceID != "" && strings.TrimSpace(workspaceID) == "" {
		return "", "", fmt.Errorf("X-Workspace-Id must be non-empty")
	}
	if actorID != "" && strings.TrimSpace(actorID) == "" {
		return "", "", fmt.Errorf("X-Actor-Id must be non-empty")
	}
	return workspaceID, actorID, nil
}

func logAuthFailure(r *http.Request, log *logger.Logger, authType string, reason AuthFailureReason, err error, extra ...logger.Field) {
	fields := []logger.Field{
		zap.String("auth_failure_reason", string(reason)),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if authType != "" {
		fields = append(fields, zap.String("auth_type", authType))
	}
	fields = append(fields, extra...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Warn(r.Context(), "authentication failed", fields...)
}

// mapAuthErrorToCode translates failure reasons into the stable error
// codes clients see.
func mapAuthErrorToCode(authErr *AuthError) string {
	if authErr == nil {
		return httperr.ErrCodeInvalidToken
	}
	switch authErr.Reason {
	case AuthFailureMissingAuthorization:
		return httperr.ErrCodeMissingAuthorization
	case AuthFailureInvalidScheme:
		return httperr.ErrCodeInvalidScheme
	case AuthFailureInvalidSignature:
		return httperr.ErrCodeInvalidSignature
	case AuthFailureTokenExpired:
		return httperr.ErrCodeTokenExpired
	case AuthFailureInvalidIssuer:
		return httperr.ErrCodeInvalidIssuer
	case AuthFailureInvalidAudience:
		return httperr.ErrCodeInvalidAudience
	case AuthFailureWorkspaceMismatch:
		return httperr.ErrCodeWorkspaceMismatch
	default:
		return httperr.ErrCodeInvalidToken
	}
}
