package domain

import (
	"time"
)

// =====================================================
// Workspace Entity (DB Model)
// =====================================================

// Workspace is the tenant boundary. Every workspace has exactly one
// owner, and a given user owns at most one workspace (enforced by a
// unique index on owner_id).
type Workspace struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"ownerId" db:"owner_id"`
	Name    string `json:"name" db:"name"`

	// Plan limits
	MaxMembers      int `json:"maxMembers" db:"max_members"`
	MaxAccessLevels int `json:"maxAccessLevels" db:"max_access_levels"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsOwnedBy reports whether the given user is the workspace owner.
func (w *Workspace) IsOwnedBy(userID string) bool {
	return w.OwnerID == userID
}
