package permissions

import "adboard-api/internal/domain"

// SessionEventKind is the kind of authentication-state change that
// triggers recomputation.
type SessionEventKind string

const (
	EventLogin          SessionEventKind = "login"
	EventLogout         SessionEventKind = "logout"
	EventTokenRefreshed SessionEventKind = "token_refreshed"
)

// SessionEvent is one authentication-state change for a principal.
type SessionEvent struct {
	Kind      SessionEventKind
	Principal domain.Principal
}

// AuthStream is the subscription contract over the external
// authentication-state stream. Subscribe registers a handler and
// returns its unsubscribe function.
//
// Re-entrancy rule: handlers may fire concurrently and in bursts; a
// newer event always supersedes the resolution started by an older
// one via the session generation counter, so handlers need no
// ordering guarantees from the stream itself.
type AuthStream interface {
	Subscribe(handler func(SessionEvent)) (unsubscribe func())
}
