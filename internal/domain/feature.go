package domain

import (
	"database/sql/driver"
	"fmt"
)

// =====================================================
// Feature Keys (Closed Enumeration)
// =====================================================

// FeatureKey identifies one of the application features subject to
// access control. The set is closed: new features require a new
// constant here plus an entry in the default profiles below.
type FeatureKey string

const (
	FeatureDashboard       FeatureKey = "dashboard"
	FeatureClients         FeatureKey = "clients"
	FeatureDemands         FeatureKey = "demands"
	FeatureProducts        FeatureKey = "products"
	FeatureConnections     FeatureKey = "connections"
	FeatureAnalytics       FeatureKey = "analytics"
	FeatureReports         FeatureKey = "reports"
	FeatureSettingsGeneral FeatureKey = "settings_general"
	FeatureTeam            FeatureKey = "team"
	FeatureNotifications   FeatureKey = "notifications"
	FeatureGovernance      FeatureKey = "governance"
)

// AllFeatureKeys returns every known feature key. The order is stable
// and used anywhere a deterministic iteration matters (API responses,
// profile construction).
func AllFeatureKeys() []FeatureKey {
	return []FeatureKey{
		FeatureDashboard,
		FeatureClients,
		FeatureDemands,
		FeatureProducts,
		FeatureConnections,
		FeatureAnalytics,
		FeatureReports,
		FeatureSettingsGeneral,
		FeatureTeam,
		FeatureNotifications,
		FeatureGovernance,
	}
}

// String returns the string representation of the FeatureKey
func (k FeatureKey) String() string {
	return string(k)
}

// IsValid checks if the key is one of the defined constants
func (k FeatureKey) IsValid() bool {
	switch k {
	case FeatureDashboard, FeatureClients, FeatureDemands, FeatureProducts,
		FeatureConnections, FeatureAnalytics, FeatureReports,
		FeatureSettingsGeneral, FeatureTeam, FeatureNotifications,
		FeatureGovernance:
		return true
	default:
		return false
	}
}

// ParseFeatureKey converts a raw string into a FeatureKey, rejecting
// anything outside the closed enumeration.
func ParseFeatureKey(s string) (FeatureKey, error) {
	k := FeatureKey(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown feature key: %q", s)
	}
	return k, nil
}

// =====================================================
// Permission Levels
// =====================================================

// PermissionLevel is the access granted for one feature.
// Ordering: none < view < edit.
type PermissionLevel string

const (
	PermissionNone PermissionLevel = "none"
	PermissionView PermissionLevel = "view"
	PermissionEdit PermissionLevel = "edit"
)

// IsValid checks if the level is one of the defined constants
func (l PermissionLevel) IsValid() bool {
	switch l {
	case PermissionNone, PermissionView, PermissionEdit:
		return true
	default:
		return false
	}
}

// rank maps levels onto their total order.
func (l PermissionLevel) rank() int {
	switch l {
	case PermissionView:
		return 1
	case PermissionEdit:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether l grants at least the access of other.
// Edit satisfies view; everything satisfies none.
func (l PermissionLevel) AtLeast(other PermissionLevel) bool {
	return l.rank() >= other.rank()
}

// Scan implements sql.Scanner for reading the level from PostgreSQL.
func (l *PermissionLevel) Scan(src interface{}) error {
	if src == nil {
		*l = PermissionNone
		return nil
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PermissionLevel", src)
	}

	*l = PermissionLevel(str)
	if !l.IsValid() {
		return fmt.Errorf("invalid PermissionLevel value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the level to PostgreSQL.
func (l PermissionLevel) Value() (driver.Value, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid PermissionLevel value: %s", string(l))
	}
	return string(l), nil
}

// =====================================================
// Permissions Config
// =====================================================

// PermissionsConfig maps feature keys to permission levels. A config
// loaded from storage may be partial (templates created before a
// feature shipped simply do not mention it); resolution always merges
// a partial config over a total default profile, so consumers only
// ever see total configs.
type PermissionsConfig map[FeatureKey]PermissionLevel

// Level returns the level for a key, defaulting to none for keys the
// config does not mention.
func (c PermissionsConfig) Level(key FeatureKey) PermissionLevel {
	if l, ok := c[key]; ok {
		return l
	}
	return PermissionNone
}

// IsTotal reports whether the config covers every known feature key.
func (c PermissionsConfig) IsTotal() bool {
	for _, key := range AllFeatureKeys() {
		if _, ok := c[key]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a copy that the caller may mutate freely.
func (c PermissionsConfig) Clone() PermissionsConfig {
	out := make(PermissionsConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MergeOverDefaults overlays the config on top of a default profile:
// keys present in c win, keys absent fall back to the default. The
// result is total whenever defaults is total.
func (c PermissionsConfig) MergeOverDefaults(defaults PermissionsConfig) PermissionsConfig {
	out := defaults.Clone()
	for k, v := range c {
		if k.IsValid() && v.IsValid() {
			out[k] = v
		}
	}
	return out
}

// Validate rejects configs containing unknown keys or levels. Partial
// configs are fine; completeness is guaranteed at read time, not here.
func (c PermissionsConfig) Validate() error {
	for k, v := range c {
		if !k.IsValid() {
			return fmt.Errorf("unknown feature key: %q", string(k))
		}
		if !v.IsValid() {
			return fmt.Errorf("invalid permission level %q for feature %q", string(v), string(k))
		}
	}
	return nil
}

// =====================================================
// Fixed Profiles (Policy Constants)
// =====================================================
// These profiles are reviewed policy, not implementation detail. The
// resolver's documented behavior depends on their exact values.

// FullAccessProfile grants edit on every feature. Used for workspace
// owners, legacy admin members, and the fail-open branch.
func FullAccessProfile() PermissionsConfig {
	out := make(PermissionsConfig, len(AllFeatureKeys()))
	for _, key := range AllFeatureKeys() {
		out[key] = PermissionEdit
	}
	return out
}

// DefaultMemberProfile is the view-only profile for active members
// without a custom access level. It is also the base that partial
// stored configs are merged over.
func DefaultMemberProfile() PermissionsConfig {
	return PermissionsConfig{
		FeatureDashboard:       PermissionView,
		FeatureClients:         PermissionView,
		FeatureDemands:         PermissionView,
		FeatureProducts:        PermissionView,
		FeatureConnections:     PermissionNone,
		FeatureAnalytics:       PermissionView,
		FeatureReports:         PermissionView,
		FeatureSettingsGeneral: PermissionNone,
		FeatureTeam:            PermissionNone,
		FeatureNotifications:   PermissionNone,
		FeatureGovernance:      PermissionNone,
	}
}

// RestrictedProfile applies to authenticated principals with neither
// an owned workspace nor an active membership: dashboard only.
func RestrictedProfile() PermissionsConfig {
	out := make(PermissionsConfig, len(AllFeatureKeys()))
	for _, key := range AllFeatureKeys() {
		out[key] = PermissionNone
	}
	out[FeatureDashboard] = PermissionView
	return out
}

// =====================================================
// Resolved Permissions
// =====================================================

// ResolvedPermissions is the immutable outcome of one resolution pass:
// a total config plus the admin flag. It is recomputed per session and
// never persisted.
type ResolvedPermissions struct {
	Config  PermissionsConfig `json:"config"`
	IsAdmin bool              `json:"isAdmin"`
}

// CanView reports whether the feature may be viewed. Admins bypass the
// per-feature map entirely.
func (r *ResolvedPermissions) CanView(key FeatureKey) bool {
	if r == nil {
		return false
	}
	if r.IsAdmin {
		return true
	}
	return r.Config.Level(key).AtLeast(PermissionView)
}

// CanEdit reports whether the feature may be edited.
func (r *ResolvedPermissions) CanEdit(key FeatureKey) bool {
	if r == nil {
		return false
	}
	if r.IsAdmin {
		return true
	}
	return r.Config.Level(key) == PermissionEdit
}

// Equal reports whether two resolved values are identical. Used to
// verify refresh idempotence.
func (r *ResolvedPermissions) Equal(other *ResolvedPermissions) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.IsAdmin != other.IsAdmin || len(r.Config) != len(other.Config) {
		return false
	}
	for k, v := range r.Config {
		if other.Config[k] != v {
			return false
		}
	}
	return true
}
