package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adboard-api/internal/auth"
	"adboard-api/internal/domain"
	"adboard-api/internal/http/handler"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/repo"
	"adboard-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMembershipStore struct {
	members map[string]*domain.TeamMembership
	order   []string
}

func (m *memMembershipStore) Create(_ context.Context, membership *domain.TeamMembership) error {
	for _, existing := range m.members {
		if existing.WorkspaceID == membership.WorkspaceID &&
			strings.EqualFold(existing.Email, membership.Email) &&
			existing.Status != domain.MembershipRemoved {
			return repo.ErrMembershipExists
		}
	}
	cp := *membership
	m.members[membership.ID] = &cp
	m.order = append(m.order, membership.ID)
	return nil
}

func (m *memMembershipStore) Get(_ context.Context, workspaceID, membershipID string) (*domain.TeamMembership, error) {
	member, ok := m.members[membershipID]
	if !ok || member.WorkspaceID != workspaceID {
		return nil, repo.ErrMembershipNotFound
	}
	cp := *member
	return &cp, nil
}

func (m *memMembershipStore) Accept(_ context.Context, workspaceID, membershipID, userID string) error {
	member, ok := m.members[membershipID]
	if !ok || member.WorkspaceID != workspaceID {
		return repo.ErrMembershipNotFound
	}
	if member.Status != domain.MembershipInvited {
		return repo.ErrInvalidTransition
	}
	now := time.Now()
	member.Status = domain.MembershipActive
	member.UserID = &userID
	member.AcceptedAt = &now
	return nil
}

func (m *memMembershipStore) Remove(_ context.Context, workspaceID, membershipID string) error {
	member, ok := m.members[membershipID]
	if !ok || member.WorkspaceID != workspaceID {
		return repo.ErrMembershipNotFound
	}
	if member.Status == domain.MembershipRemoved {
		return repo.ErrInvalidTransition
	}
	member.Status = domain.MembershipRemoved
	return nil
}

func (m *memMembershipStore) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.TeamMembership, error) {
	var out []domain.TeamMembership
	for _, id := range m.order {
		member := m.members[id]
		if member.WorkspaceID == workspaceID && member.Status != domain.MembershipRemoved {
			out = append(out, *member)
		}
	}
	return out, nil
}

func (m *memMembershipStore) CountByWorkspace(_ context.Context, workspaceID string) (int, error) {
	n := 0
	for _, member := range m.members {
		if member.WorkspaceID == workspaceID && member.Status != domain.MembershipRemoved {
			n++
		}
	}
	return n, nil
}

func newTeamRouter(t *testing.T) chi.Router {
	t.Helper()
	log, err := logger.New("test", "error")
	require.NoError(t, err)

	store := &memMembershipStore{members: map[string]*domain.TeamMembership{}}
	levels := &memLevelStore{}
	workspaces := &memWorkspaceStore{workspaces: map[string]*domain.Workspace{
		"ws_1": {ID: "ws_1", OwnerID: "user_owner", MaxMembers: 25},
	}}
	svc := service.NewMembershipService(store, workspaces, levels, noopAudit{}, noopNotifier{}, log)
	h := handler.NewTeamHandler(svc)

	r := chi.NewRouter()
	r.Route("/v1/workspaces/{workspaceId}/team/members", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Invite)
		r.Route("/{membershipId}", func(r chi.Router) {
			r.Post("/accept", h.Accept)
			r.Delete("/", h.Remove)
		})
	})
	return r
}

func asInvitee(req *http.Request) *http.Request {
	return req.WithContext(auth.SetAuthContextForTesting(req.Context(), &auth.AuthContext{
		WorkspaceID: "ws_1",
		ActorID:     "user_new",
		Email:       "member@example.com",
		AuthMethod:  "jwt",
	}))
}

func inviteMember(t *testing.T, r chi.Router, email string) domain.TeamMembership {
	t.Helper()
	req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/team/members",
		`{"email":"`+email+`","role":"viewer"}`, nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data domain.TeamMembership `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestTeamHandler_Invite(t *testing.T) {
	t.Run("Created201", func(t *testing.T) {
		r := newTeamRouter(t)
		m := inviteMember(t, r, "member@example.com")

		assert.NotEmpty(t, m.ID)
		assert.Equal(t, domain.MembershipInvited, m.Status)
		assert.Equal(t, "member@example.com", m.Email)
	})

	t.Run("InvalidEmail400", func(t *testing.T) {
		r := newTeamRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/team/members",
			`{"email":"nope","role":"viewer"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("NonOwner403", func(t *testing.T) {
		r := newTeamRouter(t)
		req := asMember(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/team/members",
			`{"email":"member@example.com","role":"viewer"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Duplicate409", func(t *testing.T) {
		r := newTeamRouter(t)
		inviteMember(t, r, "member@example.com")

		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/team/members",
			`{"email":"member@example.com","role":"editor"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "CONFLICT")
	})
}

func TestTeamHandler_Accept(t *testing.T) {
	t.Run("InviteeActivates200", func(t *testing.T) {
		r := newTeamRouter(t)
		m := inviteMember(t, r, "member@example.com")

		req := asInvitee(authedRequest(http.MethodPost,
			"/v1/workspaces/ws_1/team/members/"+m.ID+"/accept", "", nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var envelope struct {
			Data domain.TeamMembership `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, domain.MembershipActive, envelope.Data.Status)
		require.NotNil(t, envelope.Data.UserID)
		assert.Equal(t, "user_new", *envelope.Data.UserID)
	})

	t.Run("WrongEmail404", func(t *testing.T) {
		r := newTeamRouter(t)
		m := inviteMember(t, r, "someone.else@example.com")

		req := asInvitee(authedRequest(http.MethodPost,
			"/v1/workspaces/ws_1/team/members/"+m.ID+"/accept", "", nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DoubleAccept409", func(t *testing.T) {
		r := newTeamRouter(t)
		m := inviteMember(t, r, "member@example.com")

		for i, want := range []int{http.StatusOK, http.StatusConflict} {
			req := asInvitee(authedRequest(http.MethodPost,
				"/v1/workspaces/ws_1/team/members/"+m.ID+"/accept", "", nil))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code, "accept attempt %d", i+1)
		}
	})
}

func TestTeamHandler_RemoveAndList(t *testing.T) {
	r := newTeamRouter(t)
	m := inviteMember(t, r, "member@example.com")
	inviteMember(t, r, "other@example.com")

	req := asOwner(authedRequest(http.MethodDelete,
		"/v1/workspaces/ws_1/team/members/"+m.ID, "", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	listReq := asOwner(authedRequest(http.MethodGet, "/v1/workspaces/ws_1/team/members", "", nil))
	listW := httptest.NewRecorder()
	r.ServeHTTP(listW, listReq)
	require.Equal(t, http.StatusOK, listW.Code)

	var envelope struct {
		Data []domain.TeamMembership `json:"data"`
	}
	require.NoError(t, json.Unmarshal(listW.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "other@example.com", envelope.Data[0].Email)
}
