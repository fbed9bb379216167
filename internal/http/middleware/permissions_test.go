package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adboard-api/internal/auth"
	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/permissions"
	"adboard-api/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkspaceDir struct {
	workspace *domain.Workspace
}

func (f *fakeWorkspaceDir) FindByOwner(_ context.Context, ownerID string) (*domain.Workspace, error) {
	if f.workspace != nil && f.workspace.OwnerID == ownerID {
		return f.workspace, nil
	}
	return nil, repo.ErrWorkspaceNotFound
}

type fakeMembershipDir struct {
	membership *domain.MembershipWithAccessLevel
}

func (f *fakeMembershipDir) FindActiveByPrincipal(_ context.Context, _ domain.Principal) (*domain.MembershipWithAccessLevel, error) {
	if f.membership != nil {
		return f.membership, nil
	}
	return nil, repo.ErrMembershipNotFound
}

func newTestManager(t *testing.T, workspaces *fakeWorkspaceDir, memberships *fakeMembershipDir) *permissions.Manager {
	t.Helper()
	log, err := logger.New("test", "error")
	require.NoError(t, err)
	resolver := permissions.NewResolver(workspaces, memberships, log)
	manager, err := permissions.NewManager(resolver, 16, time.Minute, log)
	require.NoError(t, err)
	return manager
}

func gatedRequest(t *testing.T, manager *permissions.Manager, gate func(http.Handler) http.Handler, authCtx *auth.AuthContext) *httptest.ResponseRecorder {
	t.Helper()

	handler := PermissionSessionMiddleware(manager)(gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	ctx := workspaceTestCtx(t, authCtx)

	req := httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws-1/clients", nil)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRequireEdit_OwnerAllowed(t *testing.T) {
	manager := newTestManager(t,
		&fakeWorkspaceDir{workspace: &domain.Workspace{ID: "ws-1", OwnerID: "user-owner"}},
		&fakeMembershipDir{},
	)

	rr := gatedRequest(t, manager, RequireEdit(domain.FeatureClients), &auth.AuthContext{
		WorkspaceID: "ws-1",
		ActorID:     "user-owner",
		ActorType:   "user",
		AuthMethod:  "jwt",
	})

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireEdit_DefaultMemberDenied(t *testing.T) {
	manager := newTestManager(t,
		&fakeWorkspaceDir{},
		&fakeMembershipDir{membership: &domain.MembershipWithAccessLevel{
			TeamMembership: domain.TeamMembership{
				ID:          "mem-1",
				WorkspaceID: "ws-1",
				Role:        domain.MemberRoleViewer,
				Status:      domain.MembershipActive,
			},
		}},
	)

	rr := gatedRequest(t, manager, RequireEdit(domain.FeatureClients), &auth.AuthContext{
		WorkspaceID: "ws-1",
		ActorID:     "user-member",
		ActorType:   "user",
		AuthMethod:  "jwt",
	})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireView_DefaultMemberAllowed(t *testing.T) {
	manager := newTestManager(t,
		&fakeWorkspaceDir{},
		&fakeMembershipDir{membership: &domain.MembershipWithAccessLevel{
			TeamMembership: domain.TeamMembership{
				ID:          "mem-1",
				WorkspaceID: "ws-1",
				Role:        domain.MemberRoleViewer,
				Status:      domain.MembershipActive,
			},
		}},
	)

	rr := gatedRequest(t, manager, RequireView(domain.FeatureClients), &auth.AuthContext{
		WorkspaceID: "ws-1",
		ActorID:     "user-member",
		ActorType:   "user",
		AuthMethod:  "jwt",
	})

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireView_NoSessionDenied(t *testing.T) {
	manager := newTestManager(t, &fakeWorkspaceDir{}, &fakeMembershipDir{})

	// no auth context: PermissionSessionMiddleware attaches no session
	rr := gatedRequest(t, manager, RequireView(domain.FeatureDashboard), nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireView_UnknownPrincipalRestrictedToDashboard(t *testing.T) {
	manager := newTestManager(t, &fakeWorkspaceDir{}, &fakeMembershipDir{})

	authCtx := &auth.AuthContext{
		WorkspaceID: "ws-1",
		ActorID:     "user-stranger",
		ActorType:   "user",
		AuthMethod:  "jwt",
	}

	rr := gatedRequest(t, manager, RequireView(domain.FeatureDashboard), authCtx)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = gatedRequest(t, manager, RequireView(domain.FeatureClients), authCtx)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
