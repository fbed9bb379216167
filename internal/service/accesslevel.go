package service

import (
	"context"
	"errors"
	"fmt"

	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAccessLevelNotFound = repo.ErrAccessLevelNotFound
	ErrWorkspaceNotFound   = repo.ErrWorkspaceNotFound

	// ErrValidation wraps request validation failures so transports can
	// map them to a 400 without inspecting validator internals.
	ErrValidation = errors.New("validation failed")

	// ErrNotWorkspaceOwner rejects registry and team mutations from
	// anyone but the workspace owner.
	ErrNotWorkspaceOwner = errors.New("only the workspace owner can perform this action")

	// ErrAccessLevelLimit is returned when the workspace plan's
	// access-level quota is exhausted.
	ErrAccessLevelLimit = errors.New("access level limit reached for this workspace plan")
)

// AccessLevelStore is the persistence contract of the registry.
// Satisfied by *repo.AccessLevelRepository.
type AccessLevelStore interface {
	Insert(ctx context.Context, level *domain.AccessLevel) error
	Update(ctx context.Context, level *domain.AccessLevel) error
	Delete(ctx context.Context, workspaceID, levelID string) error
	Get(ctx context.Context, workspaceID, levelID string) (*domain.AccessLevel, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AccessLevel, error)
	CountByWorkspace(ctx context.Context, workspaceID string) (int, error)
}

// WorkspaceStore is the workspace read contract the services need.
// Satisfied by *repo.WorkspaceRepository.
type WorkspaceStore interface {
	Get(ctx context.Context, workspaceID string) (*domain.Workspace, error)
}

// AuditSink records mutations. Satisfied by *repo.AuditRepo.
type AuditSink interface {
	Record(ctx context.Context, workspaceID, actorID, action, resourceType string,
		resourceID *string, metadata map[string]interface{}) error
}

// InvalidationPublisher announces template changes so cached permission
// resolutions built from the old version get recomputed. Satisfied by
// *permissions.InvalidationBus.
type InvalidationPublisher interface {
	PublishAccessLevelChange(ctx context.Context, workspaceID, accessLevelID string) error
}

// AccessLevelService is the registry over named permission templates.
// All mutations are owner-only, audited, and followed by a cache
// invalidation broadcast.
type AccessLevelService struct {
	levels     AccessLevelStore
	workspaces WorkspaceStore
	audit      AuditSink
	notifier   InvalidationPublisher
	log        *logger.Logger
}

// NewAccessLevelService creates an AccessLevelService.
func NewAccessLevelService(levels AccessLevelStore, workspaces WorkspaceStore, audit AuditSink, notifier InvalidationPublisher, log *logger.Logger) *AccessLevelService {
	return &AccessLevelService{
		levels:     levels,
		workspaces: workspaces,
		audit:      audit,
		notifier:   notifier,
		log:        log,
	}
}

// Create stores a new template. Validation runs before any store call,
// so an empty name is rejected without touching the database. The
// stored config may be partial; resolution completes it at read time.
func (s *AccessLevelService) Create(ctx context.Context, workspaceID, actorID string, req *domain.CreateAccessLevelRequest) (*domain.AccessLevel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	workspace, err := s.requireOwner(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}

	count, err := s.levels.CountByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("count access levels: %w", err)
	}
	if workspace.MaxAccessLevels > 0 && count >= workspace.MaxAccessLevels {
		return nil, ErrAccessLevelLimit
	}

	level := &domain.AccessLevel{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Permissions: req.Permissions,
	}
	if level.Permissions == nil {
		level.Permissions = domain.PermissionsConfig{}
	}

	if err := s.levels.Insert(ctx, level); err != nil {
		return nil, fmt.Errorf("create access level: %w", err)
	}

	s.afterMutation(ctx, workspaceID, actorID, "create", level.ID)

	return level, nil
}

// Update overwrites a template. Last writer wins; concurrent edits are
// not detected.
func (s *AccessLevelService) Update(ctx context.Context, workspaceID, actorID, levelID string, req *domain.UpdateAccessLevelRequest) (*domain.AccessLevel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if _, err := s.requireOwner(ctx, workspaceID, actorID); err != nil {
		return nil, err
	}

	level := &domain.AccessLevel{
		ID:          levelID,
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Permissions: req.Permissions,
	}
	if level.Permissions == nil {
		level.Permissions = domain.PermissionsConfig{}
	}

	if err := s.levels.Update(ctx, level); err != nil {
		if errors.Is(err, repo.ErrAccessLevelNotFound) {
			return nil, ErrAccessLevelNotFound
		}
		return nil, fmt.Errorf("update access level: %w", err)
	}

	s.afterMutation(ctx, workspaceID, actorID, "update", levelID)

	return level, nil
}

// Delete removes a template. Members assigned to it fall back to their
// legacy role on the next resolution.
func (s *AccessLevelService) Delete(ctx context.Context, workspaceID, actorID, levelID string) error {
	if _, err := s.requireOwner(ctx, workspaceID, actorID); err != nil {
		return err
	}

	if err := s.levels.Delete(ctx, workspaceID, levelID); err != nil {
		if errors.Is(err, repo.ErrAccessLevelNotFound) {
			return ErrAccessLevelNotFound
		}
		return fmt.Errorf("delete access level: %w", err)
	}

	s.afterMutation(ctx, workspaceID, actorID, "delete", levelID)

	return nil
}

// Get retrieves one template.
func (s *AccessLevelService) Get(ctx context.Context, workspaceID, levelID string) (*domain.AccessLevel, error) {
	level, err := s.levels.Get(ctx, workspaceID, levelID)
	if err != nil {
		if errors.Is(err, repo.ErrAccessLevelNotFound) {
			return nil, ErrAccessLevelNotFound
		}
		return nil, fmt.Errorf("get access level: %w", err)
	}
	return level, nil
}

// List retrieves all templates of a workspace in creation order.
func (s *AccessLevelService) List(ctx context.Context, workspaceID string) (*domain.AccessLevelListResponse, error) {
	levels, err := s.levels.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list access levels: %w", err)
	}
	if levels == nil {
		levels = []domain.AccessLevel{}
	}
	return &domain.AccessLevelListResponse{Data: levels}, nil
}

// requireOwner loads the workspace and rejects actors who do not own
// it. Only owners manage the registry.
func (s *AccessLevelService) requireOwner(ctx context.Context, workspaceID, actorID string) (*domain.Workspace, error) {
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

// afterMutation records the audit entry and broadcasts invalidation.
// Neither failure rolls back the mutation; both are logged.
func (s *AccessLevelService) afterMutation(ctx context.Context, workspaceID, actorID, action, levelID string) {
	if err := s.audit.Record(ctx, workspaceID, actorID, action, "access_level", &levelID, nil); err != nil {
		s.log.Warn(ctx, "failed to record audit entry",
			logger.Module("access_level"),
			logger.Action(action),
			zap.Error(err),
		)
	}

	if err := s.notifier.PublishAccessLevelChange(ctx, workspaceID, levelID); err != nil {
		s.log.Warn(ctx, "failed to broadcast permission invalidation",
			logger.Module("access_level"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}
