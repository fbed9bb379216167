package middleware

import (
	"fmt"
	"net/http"
	"time"

	"adboard-api/internal/logger"
	"adboard-api/internal/ratelimit"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const rateLimitWindowSeconds = 60

// RateLimitMiddleware enforces the per-workspace request budget. It
// must run after WorkspaceMiddleware, which provides the workspace ID.
func RateLimitMiddleware(limiter *ratelimit.RedisRateLimiter, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.GetLogger(r.Context())

			workspaceID, ok := GetWorkspaceID(r.Context())
			if !ok {
				log.Error("workspace_id not found in context for rate limiting")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			allowed, remaining, err := limiter.AllowRequest(r.Context(), workspaceID, limitPerMin, rateLimitWindowSeconds)
			if err != nil {
				log.Error("rate limit check failed", zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(rateLimitWindowSeconds*time.Second).Unix()))

			if !allowed {
				trace.SpanFromContext(r.Context()).AddEvent("rate_limit_exceeded")
				log.Warn("rate limit exceeded",
					zap.String("workspace_id", workspaceID),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", rateLimitWindowSeconds))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
