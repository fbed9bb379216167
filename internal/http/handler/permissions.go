package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"adboard-api/internal/auth"
	"adboard-api/internal/domain"
	"adboard-api/internal/http/httperr"
	"adboard-api/internal/http/middleware"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/permissions"

	"go.uber.org/zap"
)

// PermissionsHandler exposes the caller's resolved permissions and the
// authentication-event ingress used by the identity provider.
type PermissionsHandler struct {
	manager *permissions.Manager
	events  *auth.Broadcaster
}

func NewPermissionsHandler(manager *permissions.Manager, events *auth.Broadcaster) *PermissionsHandler {
	return &PermissionsHandler{manager: manager, events: events}
}

// FeatureAccess is one feature area's effective access for the caller.
type FeatureAccess struct {
	CanView bool `json:"canView"`
	CanEdit bool `json:"canEdit"`
}

// MyPermissionsResponse is the payload of GET .../me/permissions. The
// dashboard consumes it verbatim to decide which navigation entries
// and edit affordances to render.
type MyPermissionsResponse struct {
	Features   map[string]FeatureAccess `json:"features"`
	IsAdmin    bool                     `json:"isAdmin"`
	Outcome    string                   `json:"outcome"`
	ResolvedAt time.Time                `json:"resolvedAt"`
}

// GetMyPermissions handles GET /v1/workspaces/{workspaceId}/me/permissions
func (h *PermissionsHandler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := middleware.GetPermissionSession(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	keys := domain.AllFeatureKeys()
	features := make(map[string]FeatureAccess, len(keys))
	for _, key := range keys {
		features[string(key)] = FeatureAccess{
			CanView: session.CanView(key),
			CanEdit: session.CanEdit(key),
		}
	}

	writeOK(w, http.StatusOK, MyPermissionsResponse{
		Features:   features,
		IsAdmin:    session.IsAdmin(),
		Outcome:    string(session.Outcome()),
		ResolvedAt: session.ResolvedAt(),
	})
}

// AuthEventRequest is the payload the identity provider posts when a
// principal's authentication state changes.
type AuthEventRequest struct {
	Type  string `json:"type"` // "login", "logout" or "token_refreshed"
	Actor struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"actor"`
}

// PostAuthEvent handles POST /v1/auth/events. S2S only; the event is
// broadcast to subscribers and the caller's permission session follows:
// logout drops it, login and token refresh re-resolve it.
func (h *PermissionsHandler) PostAuthEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok || authCtx.AuthMethod != "s2s" {
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "auth events accept service callers only")
		return
	}

	var req AuthEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "invalid JSON body")
		return
	}

	kind := permissions.SessionEventKind(req.Type)
	switch kind {
	case permissions.EventLogin, permissions.EventLogout, permissions.EventTokenRefreshed:
	default:
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "unknown event type")
		return
	}

	if req.Actor.ID == "" {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "actor.id is required")
		return
	}

	h.events.Publish(permissions.SessionEvent{
		Kind:      kind,
		Principal: domain.Principal{ID: req.Actor.ID, Email: req.Actor.Email},
	})

	log.Info(ctx, "auth event accepted",
		logger.Module("permissions"),
		logger.Action("auth_event"),
		zap.String("event_type", string(kind)),
		zap.String("actor_id", req.Actor.ID),
		zap.String("client", authCtx.Client),
	)

	w.WriteHeader(http.StatusAccepted)
}
