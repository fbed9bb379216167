package permissions

import (
	"context"
	"time"

	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Manager owns the live sessions, one per principal. It is the single
// consumer-facing entry point: HTTP middleware and handlers ask it for
// a session and query that, never the resolver directly.
//
// Sessions are kept in an LRU cache and re-resolved when stale: never
// resolved yet, invalidated by an access-level change in their
// workspace, or older than the configured max age.
type Manager struct {
	resolver *Resolver
	sessions *lru.Cache[string, *Session]
	maxAge   time.Duration
	log      *logger.Logger
}

// NewManager creates a Manager. size bounds the number of concurrently
// cached sessions; maxAge bounds how long a resolved value is served
// without recomputation (0 disables age-based refresh).
func NewManager(resolver *Resolver, size int, maxAge time.Duration, log *logger.Logger) (*Manager, error) {
	cache, err := lru.New[string, *Session](size)
	if err != nil {
		return nil, err
	}

	return &Manager{
		resolver: resolver,
		sessions: cache,
		maxAge:   maxAge,
		log:      log,
	}, nil
}

// Session returns the (freshly resolved, if needed) session for a
// principal. Concurrent callers for the same principal may both
// trigger a refresh; the generation counter guarantees the cache ends
// up with a single consistent winner.
func (m *Manager) Session(ctx context.Context, principal domain.Principal) *Session {
	session, ok := m.sessions.Get(principal.ID)
	if !ok {
		session = NewSession(m.resolver, principal)
		// PeekOrAdd keeps the winner if another goroutine raced us.
		if existing, found, _ := m.sessions.PeekOrAdd(principal.ID, session); found {
			session = existing
		}
	}

	if session.NeedsRefresh(m.maxAge) {
		session.Refresh(ctx)
	}

	return session
}

// InvalidateWorkspace marks every cached session that resolved against
// the given workspace for recomputation. Called when an access level
// of that workspace is created, updated or deleted.
//
// A resolution in flight while the template changes may apply either
// the old or the new template; the stores are not read in one
// transaction. The next access after this call always recomputes.
func (m *Manager) InvalidateWorkspace(workspaceID string) {
	invalidated := 0
	for _, key := range m.sessions.Keys() {
		session, ok := m.sessions.Peek(key)
		if !ok {
			continue
		}
		if session.WorkspaceID() == workspaceID {
			session.MarkStale()
			invalidated++
		}
	}

	if invalidated > 0 {
		m.log.Debug(context.Background(), "invalidated cached permission sessions",
			logger.Module("permissions"),
			logger.Action("invalidate"),
			zap.String("invalidated_workspace_id", workspaceID),
			zap.Int("sessions", invalidated),
		)
	}
}

// HandleEvent applies one authentication-state change: login and
// token-refreshed recompute the principal's permissions, logout drops
// them so every query reports false until the next login.
func (m *Manager) HandleEvent(ctx context.Context, event SessionEvent) {
	switch event.Kind {
	case EventLogout:
		if session, ok := m.sessions.Peek(event.Principal.ID); ok {
			session.Clear()
			m.sessions.Remove(event.Principal.ID)
		}
	case EventLogin, EventTokenRefreshed:
		m.Session(ctx, event.Principal)
	}
}

// Bind subscribes the manager to an auth-event stream. The returned
// function unsubscribes.
func (m *Manager) Bind(stream AuthStream) func() {
	return stream.Subscribe(func(event SessionEvent) {
		m.HandleEvent(context.Background(), event)
	})
}
