package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"adboard-api/internal/auth"
	"adboard-api/internal/config"
	"adboard-api/internal/domain"
	"adboard-api/internal/http/docs"
	"adboard-api/internal/http/handler"
	"adboard-api/internal/http/middleware"
	applogger "adboard-api/internal/logger"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/permissions"
	"adboard-api/internal/ratelimit"
	"adboard-api/internal/repo"
	"adboard-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RouterDeps carries everything buildRouter needs.
type RouterDeps struct {
	Cfg             *config.Config
	Log             *logger.Logger
	ZapLog          *zap.Logger
	Resolver        *auth.KeyResolver
	S2SStore        *auth.S2STokenStore
	IdempotencyRepo *repo.IdempotencyRepo
	RateLimiter     *ratelimit.RedisRateLimiter
	Metrics         *telemetry.Metrics
	Pool            *pgxpool.Pool // readiness check and debug handler
	Redis           *redis.Client // readiness check

	PermissionManager *permissions.Manager

	// Handlers
	AccessLevelHandler *handler.AccessLevelHandler
	TeamHandler        *handler.TeamHandler
	PermissionsHandler *handler.PermissionsHandler
	DebugHandler       *handler.DebugHandler
}

// buildRouter assembles the chi.Router with all middlewares and routes.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestIDMiddleware)
	if deps.ZapLog != nil {
		r.Use(applogger.LoggerMiddleware(deps.ZapLog))
	}
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)
	r.Method(http.MethodGet, "/metrics", metricsGuard(deps.Cfg.MetricsToken, promhttp.Handler()))

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if deps.Pool != nil {
			if err := deps.Pool.Ping(ctx); err != nil {
				deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
				return
			}
		}

		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				deps.Log.Error(ctx, "readiness check failed: redis unavailable", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"error","message":"redis unavailable"}`))
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	// Debug routes (dev-only)
	if deps.Cfg.AppEnv == "dev" || deps.Cfg.AppEnv == "development" {
		r.Route("/debug", func(r chi.Router) {
			if deps.DebugHandler != nil {
				r.With(auth.AuthMiddleware(deps.Resolver, deps.S2SStore)).Get("/auth", deps.DebugHandler.GetAuthDebug)
				r.With(auth.AuthMiddleware(deps.Resolver, deps.S2SStore)).Get("/auth/workspaces/{workspaceId}", deps.DebugHandler.GetAuthDebugWithWorkspace)
				r.Get("/db/ping", deps.DebugHandler.PingDB)
			}
		})
	}

	// Authentication-state event ingress (S2S callers only; the
	// handler enforces the auth method)
	if deps.PermissionsHandler != nil {
		r.With(auth.AuthMiddleware(deps.Resolver, deps.S2SStore)).
			Post("/v1/auth/events", deps.PermissionsHandler.PostAuthEvent)
	}

	// Protected routes with workspace isolation and permission gates
	r.Route("/v1/workspaces/{workspaceId}", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.Resolver, deps.S2SStore))
		r.Use(middleware.WorkspaceMiddleware)
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.Cfg.RateLimitPerWorkspacePerMin))
		}
		if deps.PermissionManager != nil {
			r.Use(middleware.PermissionSessionMiddleware(deps.PermissionManager))
		}

		// Caller's own resolved permissions; no feature gate, any
		// authenticated member of the workspace may ask
		if deps.PermissionsHandler != nil {
			r.Get("/me/permissions", deps.PermissionsHandler.GetMyPermissions)
		}

		// Access levels (permission templates); governance feature
		if deps.AccessLevelHandler != nil {
			r.Route("/access-levels", func(r chi.Router) {
				r.With(middleware.RequireView(domain.FeatureGovernance)).
					Get("/", deps.AccessLevelHandler.List)
				r.With(middleware.RequireEdit(domain.FeatureGovernance), middleware.IdempotencyMiddleware(deps.IdempotencyRepo)).
					Post("/", deps.AccessLevelHandler.Create)
				r.Route("/{levelId}", func(r chi.Router) {
					r.With(middleware.RequireView(domain.FeatureGovernance)).
						Get("/", deps.AccessLevelHandler.Get)
					r.With(middleware.RequireEdit(domain.FeatureGovernance), middleware.IdempotencyMiddleware(deps.IdempotencyRepo)).
						Put("/", deps.AccessLevelHandler.Update)
					r.With(middleware.RequireEdit(domain.FeatureGovernance)).
						Delete("/", deps.AccessLevelHandler.Delete)
				})
			})
		}

		// Team membership lifecycle
		if deps.TeamHandler != nil {
			r.Route("/team/members", func(r chi.Router) {
				r.With(middleware.RequireView(domain.FeatureTeam)).
					Get("/", deps.TeamHandler.List)
				r.With(middleware.RequireEdit(domain.FeatureTeam), middleware.IdempotencyMiddleware(deps.IdempotencyRepo)).
					Post("/", deps.TeamHandler.Invite)
				r.Route("/{membershipId}", func(r chi.Router) {
					// Accept is the invitee acting on their own invite;
					// they have no team permission yet, so no gate here
					r.Post("/accept", deps.TeamHandler.Accept)
					r.With(middleware.RequireEdit(domain.FeatureTeam)).
						Delete("/", deps.TeamHandler.Remove)
				})
			})
		}
	})

	return r
}

// metricsGuard shields the Prometheus endpoint behind a shared token.
// An empty token leaves the endpoint open for cluster-internal scrapes.
// The token is accepted either via X-Metrics-Token or a Bearer header.
func metricsGuard(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Metrics-Token")
		if provided == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				provided = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"UNAUTHORIZED","message":"unauthorized"}}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
