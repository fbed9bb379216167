package permissions_test

import (
	"context"
	"testing"
	"time"

	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/permissions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, workspaces *stubWorkspaceDir, memberships *stubMembershipDir, maxAge time.Duration) *permissions.Manager {
	t.Helper()
	log, err := logger.New("test", "error")
	require.NoError(t, err)
	resolver := permissions.NewResolver(workspaces, memberships, log)
	manager, err := permissions.NewManager(resolver, 16, maxAge, log)
	require.NoError(t, err)
	return manager
}

func TestManager_SessionIsCachedAcrossCalls(t *testing.T) {
	workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
		"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
	}}
	memberships := &stubMembershipDir{}
	m := newManager(t, workspaces, memberships, 0)
	principal := domain.Principal{ID: "user_owner"}

	first := m.Session(context.Background(), principal)
	second := m.Session(context.Background(), principal)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, workspaces.calls.Load(), "fresh session must not re-resolve")
	assert.True(t, second.CanEdit(domain.FeatureClients))
}

func TestManager_SessionsAreIsolatedByPrincipal(t *testing.T) {
	workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
		"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
	}}
	memberships := &stubMembershipDir{}
	m := newManager(t, workspaces, memberships, 0)

	owner := m.Session(context.Background(), domain.Principal{ID: "user_owner"})
	stranger := m.Session(context.Background(), domain.Principal{ID: "user_stranger"})

	assert.True(t, owner.CanEdit(domain.FeatureGovernance))
	assert.False(t, stranger.CanView(domain.FeatureGovernance))
	assert.True(t, stranger.CanView(domain.FeatureDashboard))
}

func TestManager_InvalidateWorkspaceForcesReResolution(t *testing.T) {
	memberships := &stubMembershipDir{byPrincipal: map[string]*domain.MembershipWithAccessLevel{
		"user_member": activeMembership("ws_1", "user_member", domain.MemberRoleViewer, nil),
	}}
	m := newManager(t, &stubWorkspaceDir{}, memberships, 0)
	principal := domain.Principal{ID: "user_member"}

	m.Session(context.Background(), principal)
	require.EqualValues(t, 1, memberships.calls.Load())

	// A change in an unrelated workspace leaves the session fresh
	m.InvalidateWorkspace("ws_other")
	m.Session(context.Background(), principal)
	assert.EqualValues(t, 1, memberships.calls.Load())

	// A change in the session's workspace forces recomputation
	m.InvalidateWorkspace("ws_1")
	m.Session(context.Background(), principal)
	assert.EqualValues(t, 2, memberships.calls.Load())
}

func TestManager_InvalidationPicksUpNewTemplate(t *testing.T) {
	memberships := &stubMembershipDir{byPrincipal: map[string]*domain.MembershipWithAccessLevel{
		"user_member": activeMembership("ws_1", "user_member", domain.MemberRoleViewer, nil),
	}}
	m := newManager(t, &stubWorkspaceDir{}, memberships, 0)
	principal := domain.Principal{ID: "user_member"}

	session := m.Session(context.Background(), principal)
	require.False(t, session.CanEdit(domain.FeatureClients))

	// The owner assigns a template granting edit on clients
	memberships.byPrincipal["user_member"] = activeMembership("ws_1", "user_member", domain.MemberRoleViewer,
		&domain.AccessLevel{
			ID:          "lvl_1",
			WorkspaceID: "ws_1",
			Permissions: domain.PermissionsConfig{domain.FeatureClients: domain.PermissionEdit},
		})
	m.InvalidateWorkspace("ws_1")

	session = m.Session(context.Background(), principal)
	assert.True(t, session.CanEdit(domain.FeatureClients))
}

func TestManager_MaxAgeTriggersRefresh(t *testing.T) {
	workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
		"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
	}}
	m := newManager(t, workspaces, &stubMembershipDir{}, time.Millisecond)
	principal := domain.Principal{ID: "user_owner"}

	m.Session(context.Background(), principal)
	require.EqualValues(t, 1, workspaces.calls.Load())

	time.Sleep(5 * time.Millisecond)
	m.Session(context.Background(), principal)
	assert.EqualValues(t, 2, workspaces.calls.Load())
}

func TestManager_HandleEvent(t *testing.T) {
	t.Run("LogoutDropsSession", func(t *testing.T) {
		workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
			"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
		}}
		m := newManager(t, workspaces, &stubMembershipDir{}, 0)
		principal := domain.Principal{ID: "user_owner"}

		session := m.Session(context.Background(), principal)
		require.True(t, session.CanView(domain.FeatureDashboard))

		m.HandleEvent(context.Background(), permissions.SessionEvent{
			Kind:      permissions.EventLogout,
			Principal: principal,
		})

		// The dropped session answers false until its next login
		assert.False(t, session.CanView(domain.FeatureDashboard))
		assert.False(t, session.IsAdmin())
	})

	t.Run("LoginWarmsSession", func(t *testing.T) {
		workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
			"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
		}}
		m := newManager(t, workspaces, &stubMembershipDir{}, 0)
		principal := domain.Principal{ID: "user_owner"}

		m.HandleEvent(context.Background(), permissions.SessionEvent{
			Kind:      permissions.EventLogin,
			Principal: principal,
		})
		require.EqualValues(t, 1, workspaces.calls.Load())

		// The next request finds the already-resolved session
		m.Session(context.Background(), principal)
		assert.EqualValues(t, 1, workspaces.calls.Load())
	})

	t.Run("TokenRefreshRecomputes", func(t *testing.T) {
		memberships := &stubMembershipDir{byPrincipal: map[string]*domain.MembershipWithAccessLevel{
			"user_member": activeMembership("ws_1", "user_member", domain.MemberRoleViewer, nil),
		}}
		m := newManager(t, &stubWorkspaceDir{}, memberships, 0)
		principal := domain.Principal{ID: "user_member"}

		session := m.Session(context.Background(), principal)
		session.MarkStale()

		m.HandleEvent(context.Background(), permissions.SessionEvent{
			Kind:      permissions.EventTokenRefreshed,
			Principal: principal,
		})
		assert.EqualValues(t, 2, memberships.calls.Load())
	})
}

// fakeStream is a minimal AuthStream delivering events synchronously.
type fakeStream struct {
	handler func(permissions.SessionEvent)
}

func (f *fakeStream) Subscribe(handler func(permissions.SessionEvent)) func() {
	f.handler = handler
	return func() { f.handler = nil }
}

func TestManager_BindConsumesStream(t *testing.T) {
	workspaces := &stubWorkspaceDir{byOwner: map[string]*domain.Workspace{
		"user_owner": {ID: "ws_1", OwnerID: "user_owner"},
	}}
	m := newManager(t, workspaces, &stubMembershipDir{}, 0)
	stream := &fakeStream{}

	unbind := m.Bind(stream)
	require.NotNil(t, stream.handler)

	stream.handler(permissions.SessionEvent{
		Kind:      permissions.EventLogin,
		Principal: domain.Principal{ID: "user_owner"},
	})
	assert.EqualValues(t, 1, workspaces.calls.Load())

	unbind()
	assert.Nil(t, stream.handler)
}
