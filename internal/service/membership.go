package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMembershipNotFound = repo.ErrMembershipNotFound
	ErrMembershipExists   = repo.ErrMembershipExists
	ErrInvalidTransition  = repo.ErrInvalidTransition

	// ErrMemberLimit is returned when the workspace plan's seat quota
	// is exhausted.
	ErrMemberLimit = errors.New("member limit reached for this workspace plan")
)

// MembershipStore is the persistence contract for team memberships.
// Satisfied by *repo.MembershipRepository.
type MembershipStore interface {
	Create(ctx context.Context, m *domain.TeamMembership) error
	Get(ctx context.Context, workspaceID, membershipID string) (*domain.TeamMembership, error)
	Accept(ctx context.Context, workspaceID, membershipID, userID string) error
	Remove(ctx context.Context, workspaceID, membershipID string) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.TeamMembership, error)
	CountByWorkspace(ctx context.Context, workspaceID string) (int, error)
}

// MembershipService drives the invitation lifecycle:
// invited -> active -> removed. Invitation and removal are owner-only;
// accepting binds the signing-in user to the invited email.
type MembershipService struct {
	memberships MembershipStore
	workspaces  WorkspaceStore
	levels      AccessLevelStore
	audit       AuditSink
	notifier    InvalidationPublisher
	log         *logger.Logger
}

// NewMembershipService creates a MembershipService.
func NewMembershipService(memberships MembershipStore, workspaces WorkspaceStore, levels AccessLevelStore, audit AuditSink, notifier InvalidationPublisher, log *logger.Logger) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		workspaces:  workspaces,
		levels:      levels,
		audit:       audit,
		notifier:    notifier,
		log:         log,
	}
}

// Invite creates a membership in invited status. The assigned access
// level, if any, must exist in the same workspace. Seat limits are
// enforced against non-removed memberships.
func (s *MembershipService) Invite(ctx context.Context, workspaceID, actorID string, req *domain.InviteMemberRequest) (*domain.TeamMembership, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	workspace, err := s.requireOwner(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}

	count, err := s.memberships.CountByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("count memberships: %w", err)
	}
	if workspace.MaxMembers > 0 && count >= workspace.MaxMembers {
		return nil, ErrMemberLimit
	}

	if req.AccessLevelID != nil {
		if _, err := s.levels.Get(ctx, workspaceID, *req.AccessLevelID); err != nil {
			if errors.Is(err, repo.ErrAccessLevelNotFound) {
				return nil, ErrAccessLevelNotFound
			}
			return nil, fmt.Errorf("verify access level: %w", err)
		}
	}

	membership := &domain.TeamMembership{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		Email:         req.Email,
		Role:          req.Role,
		Status:        domain.MembershipInvited,
		AccessLevelID: req.AccessLevelID,
		InvitedBy:     &actorID,
	}

	if err := s.memberships.Create(ctx, membership); err != nil {
		if errors.Is(err, repo.ErrMembershipExists) {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.recordAudit(ctx, workspaceID, actorID, "invite", membership.ID)

	return membership, nil
}

// Accept transitions an invitation to active for the signing-in
// principal. The principal's email must match the invitation.
func (s *MembershipService) Accept(ctx context.Context, workspaceID, membershipID string, principal domain.Principal) (*domain.TeamMembership, error) {
	membership, err := s.memberships.Get(ctx, workspaceID, membershipID)
	if err != nil {
		if errors.Is(err, repo.ErrMembershipNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	if !strings.EqualFold(membership.Email, principal.Email) {
		return nil, ErrMembershipNotFound
	}

	if err := s.memberships.Accept(ctx, workspaceID, membershipID, principal.ID); err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("accept membership: %w", err)
	}

	s.recordAudit(ctx, workspaceID, principal.ID, "accept", membershipID)
	s.broadcast(ctx, workspaceID, membershipID)

	return s.memberships.Get(ctx, workspaceID, membershipID)
}

// Remove transitions a membership to removed. The member loses access
// on their next resolution; the invalidation broadcast makes cached
// sessions recompute promptly rather than waiting out the cache TTL.
func (s *MembershipService) Remove(ctx context.Context, workspaceID, actorID, membershipID string) error {
	if _, err := s.requireOwner(ctx, workspaceID, actorID); err != nil {
		return err
	}

	if err := s.memberships.Remove(ctx, workspaceID, membershipID); err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("remove membership: %w", err)
	}

	s.recordAudit(ctx, workspaceID, actorID, "remove", membershipID)
	s.broadcast(ctx, workspaceID, membershipID)

	return nil
}

// List retrieves all non-removed memberships of a workspace.
func (s *MembershipService) List(ctx context.Context, workspaceID string) (*domain.MembershipListResponse, error) {
	members, err := s.memberships.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if members == nil {
		members = []domain.TeamMembership{}
	}
	return &domain.MembershipListResponse{Data: members}, nil
}

func (s *MembershipService) requireOwner(ctx context.Context, workspaceID, actorID string) (*domain.Workspace, error) {
	workspace, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repo.ErrWorkspaceNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	if !workspace.IsOwnedBy(actorID) {
		return nil, ErrNotWorkspaceOwner
	}
	return workspace, nil
}

func (s *MembershipService) recordAudit(ctx context.Context, workspaceID, actorID, action, membershipID string) {
	if err := s.audit.Record(ctx, workspaceID, actorID, action, "team_membership", &membershipID, nil); err != nil {
		s.log.Warn(ctx, "failed to record audit entry",
			logger.Module("team"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}

func (s *MembershipService) broadcast(ctx context.Context, workspaceID, membershipID string) {
	if err := s.notifier.PublishAccessLevelChange(ctx, workspaceID, ""); err != nil {
		s.log.Warn(ctx, "failed to broadcast permission invalidation",
			logger.Module("team"),
			logger.Action("invalidate"),
			zap.String("membership_id", membershipID),
			zap.Error(err),
		)
	}
}
