package permissions

import (
	"context"
	"sync/atomic"
	"time"

	"adboard-api/internal/domain"
)

// resolvedState is one applied resolution result. Swapped atomically
// as a unit so consumers never observe a torn value.
type resolvedState struct {
	permissions *domain.ResolvedPermissions
	outcome     Outcome
	workspaceID string
	generation  uint64
	resolvedAt  time.Time
}

// Session holds the latest resolved permissions for one principal.
//
// Lifecycle: Uninitialized -> Resolving -> Resolved, then back to
// Resolving on every refresh. There is no error state: a failed lookup
// resolves fail-open inside the Resolver, so the terminal state of any
// refresh is always Resolved.
//
// Refreshes may overlap (token refreshes fire in bursts). Each refresh
// takes a generation from a monotonic counter; a result is applied
// only if its generation is still the newest one issued when it
// completes. A superseded result is discarded rather than regressing
// the cache, and there is no explicit cancellation of the in-flight
// lookup it came from.
type Session struct {
	principal domain.Principal
	resolver  *Resolver

	generation atomic.Uint64
	state      atomic.Pointer[resolvedState]
	stale      atomic.Bool
}

// NewSession creates an uninitialized session for a principal. The
// first call to Refresh produces the first resolved value; until then
// CanView and CanEdit report false for everything.
func NewSession(resolver *Resolver, principal domain.Principal) *Session {
	return &Session{
		principal: principal,
		resolver:  resolver,
	}
}

// Principal returns the principal this session authorizes.
func (s *Session) Principal() domain.Principal {
	return s.principal
}

// Refresh re-runs resolution from scratch and atomically replaces the
// cached value, unless a newer refresh was issued in the meantime.
// Returns the permissions visible after this call (which may belong to
// the newer refresh when this one lost the race).
func (s *Session) Refresh(ctx context.Context) *domain.ResolvedPermissions {
	gen := s.generation.Add(1)
	s.stale.Store(false)

	res := s.resolver.Resolve(ctx, s.principal)
	next := &resolvedState{
		permissions: res.Permissions,
		outcome:     res.Outcome,
		workspaceID: res.WorkspaceID,
		generation:  gen,
		resolvedAt:  time.Now(),
	}

	for {
		// Latest-call-wins: apply only if no newer refresh started.
		if s.generation.Load() != gen {
			staleDiscardedTotal.Inc()
			return s.Current()
		}
		cur := s.state.Load()
		if cur != nil && cur.generation > gen {
			staleDiscardedTotal.Inc()
			return cur.permissions
		}
		if s.state.CompareAndSwap(cur, next) {
			return next.permissions
		}
	}
}

// Current returns the last resolved value, or nil before the first
// resolution completes.
func (s *Session) Current() *domain.ResolvedPermissions {
	if st := s.state.Load(); st != nil {
		return st.permissions
	}
	return nil
}

// CanView reports whether the feature may be viewed. Pure read; never
// triggers I/O. False for everything until a resolution completed.
func (s *Session) CanView(key domain.FeatureKey) bool {
	return s.Current().CanView(key)
}

// CanEdit reports whether the feature may be edited. Pure read.
func (s *Session) CanEdit(key domain.FeatureKey) bool {
	return s.Current().CanEdit(key)
}

// IsAdmin reports whether the last resolution granted the admin
// bypass. False before the first resolution.
func (s *Session) IsAdmin() bool {
	if cur := s.Current(); cur != nil {
		return cur.IsAdmin
	}
	return false
}

// ResolvedAt returns when the current value was resolved, zero before
// the first resolution.
func (s *Session) ResolvedAt() time.Time {
	if st := s.state.Load(); st != nil {
		return st.resolvedAt
	}
	return time.Time{}
}

// WorkspaceID returns the workspace the current value depends on,
// empty for restricted/fail-open outcomes or before resolution.
func (s *Session) WorkspaceID() string {
	if st := s.state.Load(); st != nil {
		return st.workspaceID
	}
	return ""
}

// Outcome returns the branch that produced the current value.
func (s *Session) Outcome() Outcome {
	if st := s.state.Load(); st != nil {
		return st.outcome
	}
	return ""
}

// MarkStale flags the cached value for recomputation on next access
// without discarding it. Used when an access level of the session's
// workspace changes.
func (s *Session) MarkStale() {
	s.stale.Store(true)
}

// NeedsRefresh reports whether the session must be re-resolved before
// use: never resolved, explicitly invalidated, or older than maxAge.
func (s *Session) NeedsRefresh(maxAge time.Duration) bool {
	st := s.state.Load()
	if st == nil || s.stale.Load() {
		return true
	}
	return maxAge > 0 && time.Since(st.resolvedAt) > maxAge
}

// Clear drops the resolved value, returning the session to the
// uninitialized state. Called on logout.
func (s *Session) Clear() {
	s.generation.Add(1)
	s.state.Store(nil)
	s.stale.Store(false)
}
