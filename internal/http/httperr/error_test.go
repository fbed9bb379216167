package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adboard-api/internal/observability/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	log, err := logger.New("test", "info")
	require.NoError(t, err)
	return logger.SetLoggerInContext(context.Background(), log)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.NotNil(t, response.Error)
	return response
}

func TestWriteError(t *testing.T) {
	ctx := testCtx(t)

	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{"401 unauthorized", http.StatusUnauthorized, ErrCodeInvalidToken, "invalid token provided"},
		{"403 forbidden", http.StatusForbidden, ErrCodeWorkspaceMismatch, "workspace mismatch detected"},
		{"400 bad request", http.StatusBadRequest, ErrCodeInvalidWorkspaceID, "invalid workspace ID format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, ctx, tt.status, tt.code, tt.message)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			response := decodeError(t, rr)
			assert.False(t, response.OK)
			assert.Equal(t, tt.code, response.Error.Code)
			assert.Equal(t, tt.message, response.Error.Message)
		})
	}
}

func TestWriteErrorWithFields(t *testing.T) {
	rr := httptest.NewRecorder()
	fields := map[string]string{
		"name":  "must not be blank",
		"level": "must be one of none, view, edit",
	}

	WriteErrorWithFields(rr, testCtx(t), http.StatusBadRequest, ErrCodeValidationError, "validation failed", fields)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	response := decodeError(t, rr)
	assert.False(t, response.OK)
	assert.Equal(t, fields, response.Error.Fields)
}

func TestStatusHelpers(t *testing.T) {
	ctx := testCtx(t)

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "Unauthorized401",
			write:      func(w http.ResponseWriter) { Unauthorized401(w, ctx, ErrCodeInvalidToken, "token is invalid") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeInvalidToken,
		},
		{
			name:       "Forbidden403",
			write:      func(w http.ResponseWriter) { Forbidden403(w, ctx, ErrCodeForbidden, "access denied") },
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeForbidden,
		},
		{
			name:       "BadRequest400",
			write:      func(w http.ResponseWriter) { BadRequest400(w, ctx, ErrCodeInvalidParameter, "bad parameter") },
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidParameter,
		},
		{
			name:       "NotFound404",
			write:      func(w http.ResponseWriter) { NotFound404(w, ctx, "access level not found") },
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "Conflict409",
			write:      func(w http.ResponseWriter) { Conflict409(w, ctx, ErrCodeConflict, "already invited") },
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.write(rr)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rr).Error.Code)
		})
	}
}

func TestInternalError500_HidesDetailFromClients(t *testing.T) {
	rr := httptest.NewRecorder()
	InternalError500(rr, testCtx(t), "database connection failed")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	response := decodeError(t, rr)
	assert.Equal(t, ErrCodeInternalError, response.Error.Code)
	assert.Equal(t, "Internal Server Error", response.Error.Message)
	assert.NotContains(t, rr.Body.String(), "database connection failed")
}
