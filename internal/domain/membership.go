package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =====================================================
// Membership Status (native PostgreSQL ENUM)
// =====================================================

// MembershipStatus tracks the invitation lifecycle of a team member.
// Only active memberships participate in permission resolution.
type MembershipStatus string

const (
	MembershipInvited MembershipStatus = "invited"
	MembershipActive  MembershipStatus = "active"
	MembershipRemoved MembershipStatus = "removed"
)

// IsValid checks if the status is one of the defined constants
func (s MembershipStatus) IsValid() bool {
	switch s {
	case MembershipInvited, MembershipActive, MembershipRemoved:
		return true
	}
	return false
}

// CanTransitionTo validates the invitation state machine:
// invited -> active, invited -> removed, active -> removed.
func (s MembershipStatus) CanTransitionTo(next MembershipStatus) bool {
	switch s {
	case MembershipInvited:
		return next == MembershipActive || next == MembershipRemoved
	case MembershipActive:
		return next == MembershipRemoved
	default:
		return false
	}
}

// Scan implements sql.Scanner for reading the ENUM from PostgreSQL.
func (s *MembershipStatus) Scan(src interface{}) error {
	if src == nil {
		*s = MembershipInvited
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into MembershipStatus", src)
	}

	*s = MembershipStatus(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid MembershipStatus value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM to PostgreSQL.
func (s MembershipStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid MembershipStatus value: %s", string(s))
	}
	return string(s), nil
}

// =====================================================
// Legacy Member Role
// =====================================================

// MemberRole is the legacy per-member role flag that predates named
// access levels. It only matters during resolution when a member has
// no custom access level attached: "admin" then grants full access.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleEditor MemberRole = "editor"
	MemberRoleViewer MemberRole = "viewer"
)

// IsValid checks if the role is one of the defined constants
func (r MemberRole) IsValid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleEditor, MemberRoleViewer:
		return true
	}
	return false
}

// String returns the string representation of the MemberRole
func (r MemberRole) String() string {
	return string(r)
}

// =====================================================
// Team Membership Entity (DB Model)
// =====================================================

// TeamMembership is a principal's participation in one workspace.
// Members can be invited by email before they ever sign in, so the
// membership matches either by user id or by email.
type TeamMembership struct {
	ID          string           `json:"id" db:"id"`
	WorkspaceID string           `json:"workspaceId" db:"workspace_id"`
	UserID      *string          `json:"userId,omitempty" db:"user_id"`
	Email       string           `json:"email" db:"email"`
	Role        MemberRole       `json:"role" db:"role"`
	Status      MembershipStatus `json:"status" db:"status"`

	// AccessLevelID points at the named permission template assigned
	// to this member, if any.
	AccessLevelID *string `json:"accessLevelId,omitempty" db:"access_level_id"`

	InvitedBy  *string    `json:"invitedBy,omitempty" db:"invited_by"`
	InvitedAt  time.Time  `json:"invitedAt" db:"invited_at"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty" db:"accepted_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsPending returns true if the member invitation has not been accepted yet
func (m *TeamMembership) IsPending() bool {
	return m.Status == MembershipInvited
}

// MembershipWithAccessLevel is a membership joined with the permission
// template assigned to it. AccessLevel is nil when the member has no
// custom template, in which case the legacy Role decides resolution.
type MembershipWithAccessLevel struct {
	TeamMembership
	AccessLevel *AccessLevel `json:"accessLevel,omitempty"`
}

// =====================================================
// Request Types
// =====================================================

// InviteMemberRequest is the payload for inviting a member.
type InviteMemberRequest struct {
	Email         string     `json:"email" validate:"required,email"`
	Role          MemberRole `json:"role" validate:"required"`
	AccessLevelID *string    `json:"accessLevelId,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *InviteMemberRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Role.IsValid() {
		return fmt.Errorf("invalid member role: %q", string(r.Role))
	}
	return nil
}

// MembershipListResponse is the list envelope for the team page.
type MembershipListResponse struct {
	Data []TeamMembership `json:"data"`
}
