package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

// In-memory stores driving the real service underneath the handler so
// the tests exercise JSON decoding, URL params and error mapping
// end to end.

type memLevelStore struct {
	levels []domain.AccessLevel
}

func (m *memLevelStore) Insert(_ context.Context, level *domain.AccessLevel) error {
	m.levels = append(m.levels, *level)
	return nil
}

func (m *memLevelStore) Update(_ context.Context, level *domain.AccessLevel) error {
	for i := range m.levels {
		if m.levels[i].ID == level.ID && m.levels[i].WorkspaceID == level.WorkspaceID {
			m.levels[i] = *level
			return nil
		}
	}
	return repo.ErrAccessLevelNotFound
}

func (m *memLevelStore) Delete(_ context.Context, workspaceID, levelID string) error {
	for i := range m.levels {
		if m.levels[i].ID == levelID && m.levels[i].WorkspaceID == workspaceID {
			m.levels = append(m.levels[:i], m.levels[i+1:]...)
			return nil
		}
	}
	return repo.ErrAccessLevelNotFound
}

func (m *memLevelStore) Get(_ context.Context, workspaceID, levelID string) (*domain.AccessLevel, error) {
	for i := range m.levels {
		if m.levels[i].ID == levelID && m.levels[i].WorkspaceID == workspaceID {
			out := m.levels[i]
			return &out, nil
		}
	}
	return nil, repo.ErrAccessLevelNotFound
}

func (m *memLevelStore) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.AccessLevel, error) {
	var out []domain.AccessLevel
	for _, l := range m.levels {
		if l.WorkspaceID == workspaceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLevelStore) CountByWorkspace(_ context.Context, workspaceID string) (int, error) {
	n := 0
	for _, l := range m.levels {
		if l.WorkspaceID == workspaceID {
			n++
		}
	}
	return n, nil
}

type memWorkspaceStore struct {
	workspaces map[string]*domain.Workspace
}

func (m *memWorkspaceStore) Get(_ context.Context, workspaceID string) (*domain.Workspace, error) {
	if ws, ok := m.workspaces[workspaceID]; ok {
		return ws, nil
	}
	return nil, repo.ErrWorkspaceNotFound
}

type noopAudit struct{}

func (noopAudit) Record(_ context.Context, _, _, _, _ string, _ *string, _ map[string]interface{}) error {
	return nil
}

type noopNotifier struct{}

func (noopNotifier) PublishAccessLevelChange(_ context.Context, _, _ string) error { return nil }

func newAccessLevelRouter(t *testing.T) (chi.Router, *memLevelStore) {
	t.Helper()
	log, err := logger.New("test", "error")
	require.NoError(t, err)

	levels := &memLevelStore{}
	workspaces := &memWorkspaceStore{workspaces: map[string]*domain.Workspace{
		"ws_1": {ID: "ws_1", OwnerID: "user_owner", MaxAccessLevels: 20},
	}}
	svc := service.NewAccessLevelService(levels, workspaces, noopAudit{}, noopNotifier{}, log)
	h := handler.NewAccessLevelHandler(svc)

	r := chi.NewRouter()
	r.Route("/v1/workspaces/{workspaceId}/access-levels", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{levelId}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
	return r, levels
}

func asOwner(req *http.Request) *http.Request {
	return req.WithContext(auth.SetAuthContextForTesting(req.Context(), &auth.AuthContext{
		WorkspaceID: "ws_1",
		ActorID:     "user_owner",
		AuthMethod:  "jwt",
	}))
}

func asMember(req *http.Request) *http.Request {
	return req.WithContext(auth.SetAuthContextForTesting(req.Context(), &auth.AuthContext{
		WorkspaceID: "ws_1",
		ActorID:     "user_member",
		AuthMethod:  "jwt",
	}))
}

func TestAccessLevelHandler_Create(t *testing.T) {
	t.Run("Created201", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":"Campaign Editors","permissions":{"clients":"edit","reports":"view"}}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var envelope struct {
			OK   bool               `json:"ok"`
			Data domain.AccessLevel `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.True(t, envelope.OK)
		assert.NotEmpty(t, envelope.Data.ID)
		assert.Equal(t, "Campaign Editors", envelope.Data.Name)
		assert.Equal(t, domain.PermissionEdit, envelope.Data.Permissions.Level(domain.FeatureClients))
	})

	t.Run("ValidationError400", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":"","permissions":{}}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("UnknownFeatureKey400", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":"Broken","permissions":{"payments":"view"}}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NonOwner403", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asMember(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":"Sneaky"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})

	t.Run("UnknownWorkspace404", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_missing/access-levels",
			`{"name":"Anything"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MalformedBody400", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccessLevelHandler_UpdateDeleteGet(t *testing.T) {
	create := func(t *testing.T, r chi.Router) string {
		t.Helper()
		req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
			`{"name":"Original","permissions":{"clients":"view"}}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)

		var envelope struct {
			Data domain.AccessLevel `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		return envelope.Data.ID
	}

	t.Run("UpdateOverwrites", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		id := create(t, r)

		req := asOwner(authedRequest(http.MethodPut, "/v1/workspaces/ws_1/access-levels/"+id,
			`{"name":"Renamed","permissions":{"clients":"none"}}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		getReq := asOwner(authedRequest(http.MethodGet, "/v1/workspaces/ws_1/access-levels/"+id, "", nil))
		getW := httptest.NewRecorder()
		r.ServeHTTP(getW, getReq)

		var envelope struct {
			Data domain.AccessLevel `json:"data"`
		}
		require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &envelope))
		assert.Equal(t, "Renamed", envelope.Data.Name)
		assert.Equal(t, domain.PermissionNone, envelope.Data.Permissions.Level(domain.FeatureClients))
	})

	t.Run("UpdateMissing404", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		req := asOwner(authedRequest(http.MethodPut, "/v1/workspaces/ws_1/access-levels/lvl_missing",
			`{"name":"Whatever"}`, nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Delete204", func(t *testing.T) {
		r, levels := newAccessLevelRouter(t)
		id := create(t, r)

		req := asOwner(authedRequest(http.MethodDelete, "/v1/workspaces/ws_1/access-levels/"+id, "", nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, levels.levels)
	})

	t.Run("ListReturnsCreationOrder", func(t *testing.T) {
		r, _ := newAccessLevelRouter(t)
		for _, name := range []string{"First", "Second"} {
			req := asOwner(authedRequest(http.MethodPost, "/v1/workspaces/ws_1/access-levels",
				`{"name":"`+name+`"}`, nil))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusCreated, w.Code)
		}

		req := asOwner(authedRequest(http.MethodGet, "/v1/workspaces/ws_1/access-levels", "", nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var envelope struct {
			Data []domain.AccessLevel `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		require.Len(t, envelope.Data, 2)
		assert.Equal(t, "First", envelope.Data[0].Name)
		assert.Equal(t, "Second", envelope.Data[1].Name)
	})
}
