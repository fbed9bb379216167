package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adboard-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrMembershipNotFound indicates no membership matched; for the
	// resolver this is a branch of the algorithm, not an error.
	ErrMembershipNotFound = errors.New("team membership not found")

	// ErrMembershipExists indicates the email is already invited to or
	// active in the workspace.
	ErrMembershipExists = errors.New("team membership already exists for this email")

	// ErrInvalidTransition indicates a status change outside the
	// invited -> active -> removed state machine.
	ErrInvalidTransition = errors.New("invalid membership status transition")
)

// MembershipRepository handles database operations for team memberships.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new MembershipRepository instance.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// FindActiveByPrincipal looks up the principal's active membership,
// matching by user id or (case-insensitive) email, with the assigned
// access level left-joined in.
//
// Members are invited by email before they ever sign in, which is why
// the email match exists; once the invitation is accepted the row also
// carries the user id.
//
// Returns ErrMembershipNotFound when the principal has no active
// membership. Any other error is an infrastructure failure.
func (r *MembershipRepository) FindActiveByPrincipal(ctx context.Context, principal domain.Principal) (*domain.MembershipWithAccessLevel, error) {
	query := `
		SELECT
			m.id, m.workspace_id, m.user_id, m.email, m.role, m.status,
			m.access_level_id, m.invited_by, m.invited_at, m.accepted_at,
			m.created_at, m.updated_at,
			a.id, a.name, a.permissions, a.created_at, a.updated_at
		FROM team_memberships m
		LEFT JOIN access_levels a ON a.id = m.access_level_id
		WHERE m.status = 'active'
		  AND (m.user_id = $1 OR lower(m.email) = lower($2))
		ORDER BY m.accepted_at DESC NULLS LAST
		LIMIT 1
	`

	var (
		m        domain.TeamMembership
		alID     *string
		alName   *string
		alPerms  []byte
		alCreate *time.Time
		alUpdate *time.Time
	)

	row := r.pool.QueryRow(ctx, query, principal.ID, principal.Email)
	err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.Email, &m.Role, &m.Status,
		&m.AccessLevelID, &m.InvitedBy, &m.InvitedAt, &m.AcceptedAt,
		&m.CreatedAt, &m.UpdatedAt,
		&alID, &alName, &alPerms, &alCreate, &alUpdate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("query active membership: %w", err)
	}

	result := &domain.MembershipWithAccessLevel{TeamMembership: m}

	if alID != nil {
		level := &domain.AccessLevel{
			ID:          *alID,
			WorkspaceID: m.WorkspaceID,
		}
		if alName != nil {
			level.Name = *alName
		}
		if len(alPerms) > 0 {
			if err := json.Unmarshal(alPerms, &level.Permissions); err != nil {
				return nil, fmt.Errorf("decode access level permissions: %w", err)
			}
		}
		if alCreate != nil {
			level.CreatedAt = *alCreate
		}
		if alUpdate != nil {
			level.UpdatedAt = *alUpdate
		}
		result.AccessLevel = level
	}

	return result, nil
}

// Create inserts a new membership in invited status.
func (r *MembershipRepository) Create(ctx context.Context, m *domain.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (
			id, workspace_id, user_id, email, role, status,
			access_level_id, invited_by, invited_at
		) VALUES ($1, $2, $3, lower($4), $5, $6, $7, $8, now())
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.WorkspaceID, m.UserID, m.Email, m.Role, m.Status,
		m.AccessLevelID, m.InvitedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMembershipExists
		}
		return fmt.Errorf("insert membership: %w", err)
	}

	return nil
}

// Get retrieves a membership by id within a workspace.
func (r *MembershipRepository) Get(ctx context.Context, workspaceID, membershipID string) (*domain.TeamMembership, error) {
	query := `
		SELECT id, workspace_id, user_id, email, role, status,
		       access_level_id, invited_by, invited_at, accepted_at,
		       created_at, updated_at
		FROM team_memberships
		WHERE workspace_id = $1 AND id = $2
	`

	var m domain.TeamMembership
	err := r.pool.QueryRow(ctx, query, workspaceID, membershipID).Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.Email, &m.Role, &m.Status,
		&m.AccessLevelID, &m.InvitedBy, &m.InvitedAt, &m.AcceptedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("query membership: %w", err)
	}

	return &m, nil
}

// Accept transitions an invited membership to active and binds the
// accepting user's id to the row.
func (r *MembershipRepository) Accept(ctx context.Context, workspaceID, membershipID, userID string) error {
	query := `
		UPDATE team_memberships
		SET status = 'active', user_id = $3, accepted_at = now(), updated_at = now()
		WHERE workspace_id = $1 AND id = $2 AND status = 'invited'
	`

	tag, err := r.pool.Exec(ctx, query, workspaceID, membershipID, userID)
	if err != nil {
		return fmt.Errorf("accept membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}

	return nil
}

// Remove transitions a membership to removed. Works from invited or
// active; removed is terminal.
func (r *MembershipRepository) Remove(ctx context.Context, workspaceID, membershipID string) error {
	query := `
		UPDATE team_memberships
		SET status = 'removed', updated_at = now()
		WHERE workspace_id = $1 AND id = $2 AND status IN ('invited', 'active')
	`

	tag, err := r.pool.Exec(ctx, query, workspaceID, membershipID)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}

	return nil
}

// ListByWorkspace retrieves all non-removed memberships of a workspace
// in invitation order.
func (r *MembershipRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.TeamMembership, error) {
	query := `
		SELECT id, workspace_id, user_id, email, role, status,
		       access_level_id, invited_by, invited_at, accepted_at,
		       created_at, updated_at
		FROM team_memberships
		WHERE workspace_id = $1 AND status <> 'removed'
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query workspace memberships: %w", err)
	}
	defer rows.Close()

	var members []domain.TeamMembership
	for rows.Next() {
		var m domain.TeamMembership
		err := rows.Scan(
			&m.ID, &m.WorkspaceID, &m.UserID, &m.Email, &m.Role, &m.Status,
			&m.AccessLevelID, &m.InvitedBy, &m.InvitedAt, &m.AcceptedAt,
			&m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return members, nil
}

// CountByWorkspace counts non-removed memberships, used for plan limit
// enforcement at invite time.
func (r *MembershipRepository) CountByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	query := `
		SELECT count(*)
		FROM team_memberships
		WHERE workspace_id = $1 AND status <> 'removed'
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}

	return count, nil
}
