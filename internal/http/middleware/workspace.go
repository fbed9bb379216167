package middleware

import (
	"context"
	"net/http"

	"adboard-api/internal/auth"
	"adboard-api/internal/http/httperr"
	"adboard-api/internal/observability/logger"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const workspaceIDKey contextKey = "workspace_id"

const maxWorkspaceIDLength = 64

// validateWorkspaceIDFormat accepts alphanumerics, hyphen and
// underscore up to 64 characters. Everything else is rejected before
// it can reach a query.
func validateWorkspaceIDFormat(workspaceID string) bool {
	if workspaceID == "" || len(workspaceID) > maxWorkspaceIDLength {
		return false
	}
	for _, c := range workspaceID {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// WorkspaceMiddleware validates workspace access and prevents IDOR attacks.
// The workspace claimed by the caller's token (or S2S header) must match
// the workspace addressed in the path. Callers without a workspace claim
// are admitted; route-level permission gates still apply.
func WorkspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.GetLogger(ctx)

		authCtx, ok := auth.GetAuthContext(ctx)
		if !ok {
			log.Error(ctx, "auth context not found in request",
				logger.Module("http"),
				logger.Action("workspace_guard"),
				zap.String("path", r.URL.Path),
			)
			httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "unauthorized")
			return
		}

		workspaceID := chi.URLParam(r, "workspaceId")
		if workspaceID == "" {
			log.Warn(ctx, "workspace_id not found in path",
				logger.Module("http"),
				logger.Action("workspace_guard"),
			)
			httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "workspace_id not found in path")
			return
		}

		if !validateWorkspaceIDFormat(workspaceID) {
			log.Warn(ctx, "invalid workspace_id format",
				logger.Module("http"),
				logger.Action("workspace_guard"),
				zap.String("workspace_id", workspaceID),
			)
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidWorkspaceID, "invalid workspace_id format")
			return
		}

		// IDOR guard: a caller bound to one workspace must not address
		// another. An empty claim (some S2S calls) skips the check.
		if authCtx.WorkspaceID != "" && authCtx.WorkspaceID != workspaceID {
			log.Warn(ctx, "workspace access denied",
				logger.Module("http"),
				logger.Action("workspace_guard"),
				zap.String("claimed_workspace_id", authCtx.WorkspaceID),
				zap.String("path_workspace_id", workspaceID),
				zap.String("actor_id", authCtx.ActorID),
				zap.String("auth_method", authCtx.AuthMethod),
			)
			httperr.Forbidden403(w, ctx, httperr.ErrCodeWorkspaceMismatch, "workspace access denied")
			return
		}

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("workspace_id", workspaceID))

		ctx = context.WithValue(ctx, workspaceIDKey, workspaceID)
		ctx = logger.SetWorkspaceIDInContext(ctx, workspaceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWorkspaceID retrieves validated workspace ID from context
func GetWorkspaceID(ctx context.Context) (string, bool) {
	workspaceID, ok := ctx.Value(workspaceIDKey).(string)
	return workspaceID, ok
}
