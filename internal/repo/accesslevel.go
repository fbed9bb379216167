package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"adboard-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccessLevelNotFound indicates the template does not exist in
	// the workspace.
	ErrAccessLevelNotFound = errors.New("access level not found")
)

// AccessLevelRepository is the backing store for the access-level
// registry: named permission templates scoped to one workspace.
type AccessLevelRepository struct {
	pool *pgxpool.Pool
}

// NewAccessLevelRepository creates a new AccessLevelRepository instance.
func NewAccessLevelRepository(pool *pgxpool.Pool) *AccessLevelRepository {
	return &AccessLevelRepository{pool: pool}
}

// Insert stores a new template. The permissions config is stored as
// given, partial or not; completeness is a read-time concern.
func (r *AccessLevelRepository) Insert(ctx context.Context, level *domain.AccessLevel) error {
	perms, err := json.Marshal(level.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions config: %w", err)
	}

	query := `
		INSERT INTO access_levels (id, workspace_id, name, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query, level.ID, level.WorkspaceID, level.Name, perms).
		Scan(&level.CreatedAt, &level.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert access level: %w", err)
	}

	return nil
}

// Update overwrites a template's name and permissions config. Last
// writer wins; there is no version check.
func (r *AccessLevelRepository) Update(ctx context.Context, level *domain.AccessLevel) error {
	perms, err := json.Marshal(level.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions config: %w", err)
	}

	query := `
		UPDATE access_levels
		SET name = $3, permissions = $4, updated_at = now()
		WHERE workspace_id = $1 AND id = $2
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query, level.WorkspaceID, level.ID, level.Name, perms).
		Scan(&level.CreatedAt, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccessLevelNotFound
		}
		return fmt.Errorf("update access level: %w", err)
	}

	return nil
}

// Delete removes a template. Memberships pointing at it fall back to
// their legacy role on the next resolution (access_level_id is set
// null by the foreign key).
func (r *AccessLevelRepository) Delete(ctx context.Context, workspaceID, levelID string) error {
	query := `DELETE FROM access_levels WHERE workspace_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query, workspaceID, levelID)
	if err != nil {
		return fmt.Errorf("delete access level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccessLevelNotFound
	}

	return nil
}

// Get retrieves a template by id within a workspace.
func (r *AccessLevelRepository) Get(ctx context.Context, workspaceID, levelID string) (*domain.AccessLevel, error) {
	query := `
		SELECT id, workspace_id, name, permissions, created_at, updated_at
		FROM access_levels
		WHERE workspace_id = $1 AND id = $2
	`

	return r.scanOne(r.pool.QueryRow(ctx, query, workspaceID, levelID))
}

// ListByWorkspace retrieves all templates of a workspace in creation
// order.
func (r *AccessLevelRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.AccessLevel, error) {
	query := `
		SELECT id, workspace_id, name, permissions, created_at, updated_at
		FROM access_levels
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query access levels: %w", err)
	}
	defer rows.Close()

	var levels []domain.AccessLevel
	for rows.Next() {
		level, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, *level)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access levels: %w", err)
	}

	return levels, nil
}

// CountByWorkspace counts templates, used for plan limit enforcement.
func (r *AccessLevelRepository) CountByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	query := `SELECT count(*) FROM access_levels WHERE workspace_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count access levels: %w", err)
	}

	return count, nil
}

func (r *AccessLevelRepository) scanOne(row pgx.Row) (*domain.AccessLevel, error) {
	var (
		level domain.AccessLevel
		perms []byte
	)

	err := row.Scan(&level.ID, &level.WorkspaceID, &level.Name, &perms,
		&level.CreatedAt, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccessLevelNotFound
		}
		return nil, fmt.Errorf("scan access level: %w", err)
	}

	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &level.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions config: %w", err)
		}
	}
	if level.Permissions == nil {
		level.Permissions = domain.PermissionsConfig{}
	}

	return &level, nil
}
