package middleware

import (
	"context"
	"net/http"

	"adboard-api/internal/auth"
	"adboard-api/internal/domain"
	"adboard-api/internal/http/httperr"
	"adboard-api/internal/logger"
	"adboard-api/internal/permissions"

	"go.uber.org/zap"
)

const permissionSessionKey contextKey = "permission_session"

// PermissionSessionMiddleware attaches the caller's permission session
// to the request context. It requires an authenticated principal; S2S
// callers without an actor identity are passed through ungated and must
// be restricted by route instead.
func PermissionSessionMiddleware(manager *permissions.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := auth.GetAuthContext(r.Context())
			if !ok || authCtx.ActorID == "" {
				next.ServeHTTP(w, r)
				return
			}

			session := manager.Session(r.Context(), authCtx.Principal())
			ctx := context.WithValue(r.Context(), permissionSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPermissionSession retrieves the permission session from context
func GetPermissionSession(ctx context.Context) (*permissions.Session, bool) {
	session, ok := ctx.Value(permissionSessionKey).(*permissions.Session)
	return session, ok
}

// RequireView gates a route on view access to a feature area.
// An unauthenticated caller or one whose session has no current
// resolution is denied.
func RequireView(key domain.FeatureKey) func(http.Handler) http.Handler {
	return requireFeature(key, false)
}

// RequireEdit gates a route on edit access to a feature area.
func RequireEdit(key domain.FeatureKey) func(http.Handler) http.Handler {
	return requireFeature(key, true)
}

func requireFeature(key domain.FeatureKey, edit bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.GetLogger(r.Context())

			session, ok := GetPermissionSession(r.Context())
			if !ok {
				log.Warn("permission session not found in context",
					zap.String("feature", string(key)),
					zap.String("path", r.URL.Path),
				)
				httperr.Forbidden403(w, r.Context(), httperr.ErrCodeInsufficientScope, "permission denied")
				return
			}

			allowed := session.CanView(key)
			if edit {
				allowed = session.CanEdit(key)
			}

			if !allowed {
				log.Warn("feature access denied",
					zap.String("feature", string(key)),
					zap.Bool("edit", edit),
					zap.String("principal_id", session.Principal().ID),
					zap.String("outcome", string(session.Outcome())),
				)
				httperr.Forbidden403(w, r.Context(), httperr.ErrCodeInsufficientScope, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
