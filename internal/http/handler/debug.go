package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"adboard-api/internal/auth"
	"adboard-api/internal/http/httperr"
	"adboard-api/internal/observability/logger"
)

// DBPool is the slice of the pgx pool the debug endpoints need.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DebugHandler serves the /debug endpoints. They respond 404 unless
// APP_ENV is dev or development, so they cannot leak auth internals
// from a production deployment.
type DebugHandler struct {
	appEnv string
	pool   DBPool
}

func NewDebugHandler(pool DBPool) *DebugHandler {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		// Unset means production. Fail closed.
		appEnv = "production"
	}
	return &DebugHandler{appEnv: appEnv, pool: pool}
}

func (h *DebugHandler) devMode() bool {
	return h.appEnv == "dev" || h.appEnv == "development"
}

// rejectOutsideDev writes 404 and reports true when the handler must
// not run in the current environment.
func (h *DebugHandler) rejectOutsideDev(w http.ResponseWriter, r *http.Request) bool {
	if h.devMode() {
		return false
	}
	ctx := r.Context()
	logger.GetLogger(ctx).Warn(ctx, "debug endpoint accessed in non-dev environment",
		zap.String("app_env", h.appEnv),
		zap.String("remote_addr", r.RemoteAddr),
	)
	http.NotFound(w, r)
	return true
}

// DebugAuthResponse wraps the auth introspection payload.
type DebugAuthResponse struct {
	OK   bool           `json:"ok"`
	Data *DebugAuthData `json:"data"`
}

// DebugAuthData mirrors what the auth and workspace middlewares
// resolved for the current request.
type DebugAuthData struct {
	AuthMethod              string  `json:"authMethod"`
	Client                  *string `json:"client,omitempty"`
	ActorID                 string  `json:"actorId"`
	ActorType               string  `json:"actorType"`
	WorkspaceIDFromToken    *string `json:"workspaceIdFromToken,omitempty"`
	WorkspaceIDFromHeader   *string `json:"workspaceIdFromHeader,omitempty"`
	WorkspaceIDFromPath     *string `json:"workspaceIdFromPath,omitempty"`
	TokenIssuer             *string `json:"tokenIssuer,omitempty"`
	WorkspaceValidationPass bool    `json:"workspaceValidationPass"`
}

// GetAuthDebug reports how the caller authenticated and which workspace
// scopes were resolved.
//
// GET /debug/auth
func (h *DebugHandler) GetAuthDebug(w http.ResponseWriter, r *http.Request) {
	if h.rejectOutsideDev(w, r) {
		return
	}

	ctx := r.Context()
	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	logger.GetLogger(ctx).Info(ctx, "debug auth endpoint accessed",
		zap.String("auth_method", authCtx.AuthMethod),
		zap.String("actor_id", authCtx.ActorID),
		zap.String("workspace_id", authCtx.WorkspaceID),
	)

	data := &DebugAuthData{
		AuthMethod: authCtx.AuthMethod,
		ActorID:    authCtx.ActorID,
		ActorType:  authCtx.ActorType,
		// Reaching the handler means the workspace middleware let the
		// request through.
		WorkspaceValidationPass: true,
	}

	switch authCtx.AuthMethod {
	case "jwt":
		data.WorkspaceIDFromToken = &authCtx.WorkspaceID
		if authCtx.Issuer != "" {
			data.TokenIssuer = &authCtx.Issuer
		}
	case "s2s":
		data.WorkspaceIDFromHeader = &authCtx.WorkspaceID
		if authCtx.Client != "" {
			data.Client = &authCtx.Client
		}
	}

	if pathID := chi.URLParam(r, "workspaceId"); pathID != "" {
		data.WorkspaceIDFromPath = &pathID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(DebugAuthResponse{OK: true, Data: data})
}

// GetAuthDebugWithWorkspace is GetAuthDebug mounted under a workspace
// path so the workspace middleware runs first.
//
// GET /debug/auth/workspaces/{workspaceId}
func (h *DebugHandler) GetAuthDebugWithWorkspace(w http.ResponseWriter, r *http.Request) {
	h.GetAuthDebug(w, r)
}

// PingDB runs SELECT 1 against the pool to verify connectivity.
//
// GET /debug/db/ping
func (h *DebugHandler) PingDB(w http.ResponseWriter, r *http.Request) {
	if h.rejectOutsideDev(w, r) {
		return
	}

	ctx := r.Context()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := h.pool.QueryRow(pingCtx, "SELECT 1").Scan(&result); err != nil {
		fields := []zap.Field{
			zap.String("request_id", logger.GetRequestIDFromContext(ctx)),
			zap.Error(err),
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			fields = append(fields, zap.String("pgcode", pgErr.Code))
		}
		logger.GetLogger(ctx).Error(ctx, "db_ping_failed", fields...)

		httperr.InternalError(w, ctx)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
