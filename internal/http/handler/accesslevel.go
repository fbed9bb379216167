package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"adboard-api/internal/auth"
	"adboard-api/internal/domain"
	"adboard-api/internal/http/httperr"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AccessLevelHandler struct {
	service *service.AccessLevelService
}

func NewAccessLevelHandler(service *service.AccessLevelService) *AccessLevelHandler {
	return &AccessLevelHandler{service: service}
}

// Create handles POST /v1/workspaces/{workspaceId}/access-levels
func (h *AccessLevelHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	authCtx, _ := auth.GetAuthContext(ctx)

	var req domain.CreateAccessLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "invalid JSON body")
		return
	}

	level, err := h.service.Create(ctx, workspaceID, authCtx.ActorID, &req)
	if err != nil {
		handleAccessLevelError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusCreated, level)
}

// Update handles PUT /v1/workspaces/{workspaceId}/access-levels/{levelId}
func (h *AccessLevelHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	levelID := chi.URLParam(r, "levelId")
	authCtx, _ := auth.GetAuthContext(ctx)

	var req domain.UpdateAccessLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "invalid JSON body")
		return
	}

	level, err := h.service.Update(ctx, workspaceID, authCtx.ActorID, levelID, &req)
	if err != nil {
		handleAccessLevelError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusOK, level)
}

// Delete handles DELETE /v1/workspaces/{workspaceId}/access-levels/{levelId}
func (h *AccessLevelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	levelID := chi.URLParam(r, "levelId")
	authCtx, _ := auth.GetAuthContext(ctx)

	if err := h.service.Delete(ctx, workspaceID, authCtx.ActorID, levelID); err != nil {
		handleAccessLevelError(w, ctx, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /v1/workspaces/{workspaceId}/access-levels/{levelId}
func (h *AccessLevelHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	levelID := chi.URLParam(r, "levelId")

	level, err := h.service.Get(ctx, workspaceID, levelID)
	if err != nil {
		handleAccessLevelError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusOK, level)
}

// List handles GET /v1/workspaces/{workspaceId}/access-levels
func (h *AccessLevelHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")

	levels, err := h.service.List(ctx, workspaceID)
	if err != nil {
		handleAccessLevelError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusOK, levels.Data)
}

// Helpers
func handleAccessLevelError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
	case errors.Is(err, service.ErrNotWorkspaceOwner):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "only the workspace owner can manage access levels")
	case errors.Is(err, service.ErrWorkspaceNotFound):
		httperr.NotFound404(w, ctx, "workspace not found")
	case errors.Is(err, service.ErrAccessLevelNotFound):
		httperr.NotFound404(w, ctx, "access level not found")
	case errors.Is(err, service.ErrAccessLevelLimit):
		httperr.Conflict409(w, ctx, httperr.ErrCodeLimitExceeded, "access level limit reached for this workspace plan")
	default:
		log.Error(ctx, "internal error", zap.Error(err))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}

func writeOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":   true,
		"data": data,
	})
}
