package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =====================================================
// Access Level Entity (DB Model)
// =====================================================

// AccessLevel is a named, reusable permission template scoped to one
// workspace. Its Permissions config may be partial; completeness is
// guaranteed at resolution time by merging over the default member
// profile, never at write time.
type AccessLevel struct {
	ID          string            `json:"id" db:"id"`
	WorkspaceID string            `json:"workspaceId" db:"workspace_id"`
	Name        string            `json:"name" db:"name"`
	Permissions PermissionsConfig `json:"permissions" db:"permissions"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// =====================================================
// Request Types
// =====================================================

// CreateAccessLevelRequest is the payload for creating a template.
type CreateAccessLevelRequest struct {
	Name        string            `json:"name" validate:"required,min=1,max=120"`
	Permissions PermissionsConfig `json:"permissions"`
}

// Validate sanitizes and validates the request. Runs before any store
// call so an empty name never reaches the database.
func (r *CreateAccessLevelRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	return r.Permissions.Validate()
}

// UpdateAccessLevelRequest is the payload for updating a template.
// There is no optimistic-concurrency check: last writer wins.
type UpdateAccessLevelRequest struct {
	Name        string            `json:"name" validate:"required,min=1,max=120"`
	Permissions PermissionsConfig `json:"permissions"`
}

// Validate sanitizes and validates the request.
func (r *UpdateAccessLevelRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	return r.Permissions.Validate()
}

// AccessLevelListResponse is the list envelope returned to the admin UI.
type AccessLevelListResponse struct {
	Data []AccessLevel `json:"data"`
}
