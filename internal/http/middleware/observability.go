package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"adboard-api/internal/http/httperr"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/observability/requestid"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequestIDMiddleware accepts a client-supplied X-Request-Id, minting
// one when absent, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = requestid.NewRequestID()
		}

		ctx := requestid.SetRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-Id", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggingMiddleware emits one summary line per request with
// route, status, and latency, plus a detailed http_error line for 5xx
// responses. Bodies and sensitive headers are never logged.
func RequestLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := logger.SetLoggerInContext(r.Context(), log)
			ctx = logger.InitRootErrorContext(ctx)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			log.Info(ctx, "http request completed",
				logger.Module("http"),
				logger.Action("request"),
				zap.String("method", r.Method),
				zap.String("route", r.URL.Path),
				zap.String("path", r.URL.Path),
				zap.String("query", sanitizeQuery(r.URL.RawQuery)),
				zap.Int("status", wrapped.statusCode),
				zap.Float64("latency_ms", float64(time.Since(start).Milliseconds())),
				zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				zap.String("user_agent", sanitizeUserAgent(r.UserAgent())),
			)

			if wrapped.statusCode >= 500 {
				logServerError(ctx, log, r, wrapped.statusCode)
			}
		})
	}
}

func logServerError(ctx context.Context, log *logger.Logger, r *http.Request, status int) {
	rootErr := logger.GetRootError(ctx)

	fields := []zap.Field{
		logger.Module("http"),
		logger.Action("http_error"),
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("route", getRoutePattern(r)),
		zap.String("path", r.URL.Path),
		zap.String("kind", classifyError(rootErr)),
	}

	if rootErr != nil {
		fields = append(fields, zap.String("err", rootErr.Error()))
		var pgErr *pgconn.PgError
		if errors.As(rootErr, &pgErr) {
			fields = append(fields, zap.String("pgcode", pgErr.Code))
		}
	} else {
		fields = append(fields, zap.String("err", "internal server error (unspecified cause)"))
	}

	log.Error(ctx, "http_error", fields...)
}

// RecoveryMiddleware converts panics into a 500 with the standard
// error envelope, logging the stack so the request can be debugged.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					ctx := r.Context()
					logger.SetRootError(ctx, fmt.Errorf("panic: %v", err))

					log.Error(ctx, "panic_recovered",
						logger.Module("http"),
						logger.Action("panic_recovery"),
						zap.Any("panic", err),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("route", getRoutePattern(r)),
						zap.String("request_id", logger.GetRequestIDFromContext(ctx)),
					)

					httperr.InternalError(w, ctx)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	return rw.ResponseWriter.Write(b)
}

// sanitizeQuery truncates long query strings. Tokens and secrets do
// not travel in query parameters on this API.
func sanitizeQuery(query string) string {
	const maxLen = 200
	if len(query) > maxLen {
		return query[:maxLen] + "..."
	}
	return query
}

// sanitizeRemoteAddr strips the ephemeral port.
func sanitizeRemoteAddr(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}

func sanitizeUserAgent(ua string) string {
	const maxLen = 100
	if len(ua) > maxLen {
		return ua[:maxLen] + "..."
	}
	return ua
}

func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// classifyError buckets 5xx causes for the http_error log line.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "panic") {
		return "panic"
	}
	if strings.Contains(msg, "scan") {
		return "scan"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "db"
	}
	return "unknown"
}

// WithWorkspaceID tags the logging context with a workspace ID.
func WithWorkspaceID(workspaceID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.SetWorkspaceIDInContext(r.Context(), workspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID tags the logging context with a user ID.
func WithUserID(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.SetUserIDInContext(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
