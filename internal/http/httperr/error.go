package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"adboard-api/internal/observability/logger"

	"go.uber.org/zap"
)

// ErrorResponse is the envelope every failed request returns.
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable error code clients branch on, a
// human-readable message, and optional per-field validation detail.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"`
}

// 401 authentication failures
const (
	ErrCodeMissingAuthorization = "MISSING_AUTHORIZATION"
	ErrCodeInvalidScheme        = "INVALID_SCHEME"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeInvalidIssuer        = "INVALID_ISSUER"
	ErrCodeInvalidAudience      = "INVALID_AUDIENCE"
)

// 403/404 authorization failures
const (
	ErrCodeWorkspaceMismatch = "WORKSPACE_MISMATCH"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInsufficientScope = "INSUFFICIENT_SCOPE"
	ErrCodeNotFound          = "NOT_FOUND"
)

// 400/409 request failures
const (
	ErrCodeInvalidWorkspaceID     = "INVALID_WORKSPACE_ID"
	ErrCodeInvalidParameter       = "INVALID_PARAMETER"
	ErrCodeInvalidFormat          = "INVALID_FORMAT"
	ErrCodeMissingParameter       = "MISSING_PARAMETER"
	ErrCodeInvalidLimit           = "INVALID_LIMIT"
	ErrCodeValidationError        = "VALIDATION_ERROR"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeInvalidFeatureKey      = "INVALID_FEATURE_KEY"
	ErrCodeInvalidPermissionLevel = "INVALID_PERMISSION_LEVEL"
	ErrCodeLimitExceeded          = "LIMIT_EXCEEDED"
	ErrCodeConflict               = "CONFLICT"
)

const ErrCodeInternalError = "INTERNAL_ERROR"

func writeResponse(w http.ResponseWriter, status int, detail *ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{OK: false, Error: detail})
}

// WriteError logs the failure and writes the error envelope.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	logger.GetLogger(ctx).Error(ctx, "request failed",
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
		zap.String("request_id", logger.GetRequestIDFromContext(ctx)),
	)
	writeResponse(w, status, &ErrorDetail{Code: code, Message: message})
}

// WriteErrorWithFields is WriteError with per-field validation detail.
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	logFields := make([]zap.Field, 0, len(fields)+3)
	logFields = append(logFields,
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)
	for k, v := range fields {
		logFields = append(logFields, zap.String("field_"+k, v))
	}
	logger.GetLogger(ctx).Error(ctx, "request failed with field errors", logFields...)

	writeResponse(w, status, &ErrorDetail{Code: code, Message: message, Fields: fields})
}

func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

func Forbidden403(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusForbidden, code, message)
}

func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

func BadRequest400WithFields(w http.ResponseWriter, ctx context.Context, code, message string, fields map[string]string) {
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, code, message, fields)
}

func NotFound404(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, message)
}

func Conflict409(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusConflict, code, message)
}

// InternalError500 hides the failure detail from clients; in dev the
// request ID is echoed as error_id so the log line can be found.
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	reqID := logger.GetRequestIDFromContext(ctx)

	logger.GetLogger(ctx).Error(ctx, "internal server error",
		zap.String("message", message),
		zap.String("request_id", reqID),
	)

	detail := &ErrorDetail{
		Code:    ErrCodeInternalError,
		Message: "Internal Server Error",
	}
	if os.Getenv("APP_ENV") == "dev" {
		detail.ErrorID = reqID
	}
	writeResponse(w, http.StatusInternalServerError, detail)
}

func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}
