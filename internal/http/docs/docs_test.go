package docs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenAPIHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rr := httptest.NewRecorder()

	OpenAPIHandler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/yaml")

	body := rr.Body.String()
	assert.Contains(t, body, "openapi: 3.0.3")
	assert.Contains(t, body, "title: Adboard API")
	assert.Contains(t, body, "/v1/workspaces/{workspaceId}/me/permissions:")
}

func TestScalarDocsHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rr := httptest.NewRecorder()

	ScalarDocsHandler("/openapi.yaml").ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	body := rr.Body.String()
	assert.Contains(t, body, "@scalar/api-reference")
	assert.Contains(t, body, "/openapi.yaml")
}
