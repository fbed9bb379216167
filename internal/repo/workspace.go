package repo

import (
	"context"
	"errors"
	"fmt"

	"adboard-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrWorkspaceNotFound indicates no workspace matched the lookup.
	// This is a legitimate resolution outcome, not a lookup failure.
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// WorkspaceRepository handles database operations for workspaces.
// Concrete struct, no interface; the permissions package defines the
// narrow read contract it consumes.
type WorkspaceRepository struct {
	pool *pgxpool.Pool
}

// NewWorkspaceRepository creates a new WorkspaceRepository instance.
func NewWorkspaceRepository(pool *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{pool: pool}
}

// FindByOwner looks up the workspace owned by the given user. A user
// owns at most one workspace (unique index on owner_id), so this is a
// point lookup.
//
// Returns ErrWorkspaceNotFound when the user owns nothing; any other
// error is an infrastructure failure and is surfaced to the caller.
func (r *WorkspaceRepository) FindByOwner(ctx context.Context, ownerID string) (*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, max_members, max_access_levels, created_at, updated_at
		FROM workspaces
		WHERE owner_id = $1
	`

	var w domain.Workspace
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(
		&w.ID, &w.OwnerID, &w.Name, &w.MaxMembers, &w.MaxAccessLevels,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("query workspace by owner: %w", err)
	}

	return &w, nil
}

// Get retrieves a workspace by id.
func (r *WorkspaceRepository) Get(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, max_members, max_access_levels, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`

	var w domain.Workspace
	err := r.pool.QueryRow(ctx, query, workspaceID).Scan(
		&w.ID, &w.OwnerID, &w.Name, &w.MaxMembers, &w.MaxAccessLevels,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("query workspace: %w", err)
	}

	return &w, nil
}
