package logger

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// LoggerMiddleware derives a per-request logger carrying the trace,
// span, and request IDs, stores it in the request context, and echoes
// the IDs back in response headers for client-side correlation.
func LoggerMiddleware(baseLogger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			spanContext := trace.SpanFromContext(r.Context()).SpanContext()
			requestID := middleware.GetReqID(r.Context())

			contextLogger := baseLogger.With(
				zap.String("trace_id", spanContext.TraceID().String()),
				zap.String("span_id", spanContext.SpanID().String()),
				zap.String("request_id", requestID),
			)

			ctx := context.WithValue(r.Context(), loggerKey, contextLogger)

			w.Header().Set("X-Trace-Id", spanContext.TraceID().String())
			w.Header().Set("X-Request-Id", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request-scoped logger, falling back to the
// global logger outside a request.
func GetLogger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}
