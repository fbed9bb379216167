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

type TeamHandler struct {
	service *service.MembershipService
}

func NewTeamHandler(service *service.MembershipService) *TeamHandler {
	return &TeamHandler{service: service}
}

// Invite handles POST /v1/workspaces/{workspaceId}/team/members
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	authCtx, _ := auth.GetAuthContext(ctx)

	var req domain.InviteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "invalid JSON body")
		return
	}

	membership, err := h.service.Invite(ctx, workspaceID, authCtx.ActorID, &req)
	if err != nil {
		handleTeamError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusCreated, membership)
}

// Accept handles POST /v1/workspaces/{workspaceId}/team/members/{membershipId}/accept
// The caller accepts their own invitation; the invite email must match
// the authenticated principal.
func (h *TeamHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	membershipID := chi.URLParam(r, "membershipId")
	authCtx, _ := auth.GetAuthContext(ctx)

	membership, err := h.service.Accept(ctx, workspaceID, membershipID, authCtx.Principal())
	if err != nil {
		handleTeamError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusOK, membership)
}

// Remove handles DELETE /v1/workspaces/{workspaceId}/team/members/{membershipId}
func (h *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")
	membershipID := chi.URLParam(r, "membershipId")
	authCtx, _ := auth.GetAuthContext(ctx)

	if err := h.service.Remove(ctx, workspaceID, authCtx.ActorID, membershipID); err != nil {
		handleTeamError(w, ctx, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /v1/workspaces/{workspaceId}/team/members
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	workspaceID := chi.URLParam(r, "workspaceId")

	members, err := h.service.List(ctx, workspaceID)
	if err != nil {
		handleTeamError(w, ctx, log, err)
		return
	}

	writeOK(w, http.StatusOK, members.Data)
}

// Helpers
func handleTeamError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
	case errors.Is(err, service.ErrNotWorkspaceOwner):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "only the workspace owner can manage the team")
	case errors.Is(err, service.ErrWorkspaceNotFound):
		httperr.NotFound404(w, ctx, "workspace not found")
	case errors.Is(err, service.ErrMembershipNotFound):
		httperr.NotFound404(w, ctx, "membership not found")
	case errors.Is(err, service.ErrAccessLevelNotFound):
		httperr.NotFound404(w, ctx, "access level not found")
	case errors.Is(err, service.ErrMembershipExists):
		httperr.Conflict409(w, ctx, httperr.ErrCodeConflict, "member already invited to this workspace")
	case errors.Is(err, service.ErrInvalidTransition):
		httperr.Conflict409(w, ctx, httperr.ErrCodeInvalidStatus, "membership is not in a state that allows this action")
	case errors.Is(err, service.ErrMemberLimit):
		httperr.Conflict409(w, ctx, httperr.ErrCodeLimitExceeded, "member limit reached for this workspace plan")
	default:
		log.Error(ctx, "internal error", zap.Error(err))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}
