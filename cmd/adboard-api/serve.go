package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adboard-api/internal/auth"
	"adboard-api/internal/config"
	"adboard-api/internal/database"
	"adboard-api/internal/http/handler"
	applogger "adboard-api/internal/logger"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/permissions"
	"adboard-api/internal/ratelimit"
	"adboard-api/internal/repo"
	"adboard-api/internal/service"
	"adboard-api/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the Adboard API HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize loggers: the context-aware tier for services and the
	// plain zap tier for request logging middleware.
	log, err := logger.New(cfg.OTELServiceName, "info")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	zapLog, err := applogger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create request logger: %w", err)
	}
	defer zapLog.Sync()

	log.Info(ctx, "starting adboard api",
		zap.String("version", "1.0.0"),
		zap.String("service", cfg.OTELServiceName),
	)

	// Run database migrations
	log.Info(ctx, "running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations completed successfully")

	// Initialize telemetry strictly as opt-in
	var tracerProvider *sdktrace.TracerProvider
	var meterProvider *sdkmetric.MeterProvider
	var metrics *telemetry.Metrics

	if cfg.TelemetryEnabled() {
		log.Info(ctx, "initializing telemetry", zap.String("endpoint", cfg.OTELExporterEndpoint))

		tp, err := telemetry.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint, cfg.OTELSamplingRatio)
		if err != nil {
			log.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			tracerProvider = tp
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown tracer provider", zap.Error(err))
				}
			}()
		}

		mp, m, err := telemetry.InitMetrics(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint)
		if err != nil {
			log.Warn(ctx, "failed to initialize metrics, continuing without metrics", zap.Error(err))
		} else {
			meterProvider = mp
			metrics = m
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := meterProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown meter provider", zap.Error(err))
				}
			}()
		}

		log.Info(ctx, "telemetry initialized", zap.Bool("tracing", tracerProvider != nil), zap.Bool("metrics", metrics != nil))
	} else {
		log.Info(ctx, "telemetry disabled (opt-in only or missing endpoint)")
	}

	// Connect to database
	log.Info(ctx, "connecting to database")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info(ctx, "database connected")

	// Connect to Redis
	log.Info(ctx, "connecting to redis")
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info(ctx, "redis connected")

	// Initialize JWT key store and resolver
	log.Info(ctx, "initializing JWT authentication")
	keyStore := auth.NewKeyStore()

	// JWT_HS256_SECRET must be Base64-encoded
	secretBytes, err := base64.StdEncoding.DecodeString(cfg.JWTHS256Secret)
	if err != nil {
		return fmt.Errorf("JWT_HS256_SECRET must be valid Base64-encoded: %w", err)
	}
	if len(secretBytes) < 32 {
		return fmt.Errorf("JWT_HS256_SECRET decoded bytes must be at least 32 bytes (256 bits), got %d bytes", len(secretBytes))
	}

	allowedIssuers := cfg.GetAllowedIssuers()
	if len(allowedIssuers) == 0 {
		return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	// All first-party issuers share the same HMAC secret
	for _, issuer := range allowedIssuers {
		keyStore.LoadHS256Key(issuer, "v1", secretBytes)
	}

	clockSkew := time.Duration(cfg.JWTClockSkewSeconds) * time.Second

	resolver := auth.NewKeyResolver(allowedIssuers, []string{cfg.JWTAudience})
	for _, issuer := range allowedIssuers {
		hs256Validator := auth.NewHS256Validator(keyStore, issuer, clockSkew)
		resolver.RegisterValidator(issuer, hs256Validator)
	}

	log.Info(ctx, "JWT authentication initialized",
		zap.Strings("allowed_issuers", allowedIssuers),
		zap.Int("clock_skew_seconds", cfg.JWTClockSkewSeconds),
	)

	// Initialize S2S token store
	s2sStore := auth.NewS2STokenStore()
	if cfg.S2STokenReporting != "" {
		s2sStore.RegisterToken(cfg.S2STokenReporting, "reporting")
		log.Info(ctx, "S2S token registered", zap.String("client", "reporting"))
	}
	if cfg.S2STokenBilling != "" {
		s2sStore.RegisterToken(cfg.S2STokenBilling, "billing")
		log.Info(ctx, "S2S token registered", zap.String("client", "billing"))
	}

	// Initialize repositories
	idempotencyRepo := repo.NewIdempotencyRepo(pool)
	workspaceRepo := repo.NewWorkspaceRepository(pool)
	membershipRepo := repo.NewMembershipRepository(pool)
	accessLevelRepo := repo.NewAccessLevelRepository(pool)
	auditRepo := repo.NewAuditRepo(pool)

	// Permission resolution pipeline: resolver computes effective
	// permissions, manager caches per-principal sessions, and the
	// invalidation bus fans out mutations across instances.
	permResolver := permissions.NewResolver(workspaceRepo, membershipRepo, log)
	permManager, err := permissions.NewManager(
		permResolver,
		cfg.PermissionsCacheSize,
		time.Duration(cfg.PermissionsCacheTTLSeconds)*time.Second,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create permission manager: %w", err)
	}

	invalidationBus := permissions.NewInvalidationBus(redisClient, log)
	busCtx, busCancel := context.WithCancel(ctx)
	defer busCancel()
	go func() {
		if err := invalidationBus.Listen(busCtx, permManager); err != nil && busCtx.Err() == nil {
			log.Error(busCtx, "invalidation bus stopped", zap.Error(err))
		}
	}()

	// Auth events from trusted services invalidate cached sessions
	authEvents := auth.NewBroadcaster()
	unbind := permManager.Bind(authEvents)
	defer unbind()

	// Initialize services
	accessLevelService := service.NewAccessLevelService(accessLevelRepo, workspaceRepo, auditRepo, invalidationBus, log)
	membershipService := service.NewMembershipService(membershipRepo, workspaceRepo, accessLevelRepo, auditRepo, invalidationBus, log)

	// Initialize handlers
	accessLevelHandler := handler.NewAccessLevelHandler(accessLevelService)
	teamHandler := handler.NewTeamHandler(membershipService)
	permissionsHandler := handler.NewPermissionsHandler(permManager, authEvents)
	debugHandler := handler.NewDebugHandler(pool)

	// Initialize rate limiter
	var rateLimitCounter metric.Int64Counter
	if metrics != nil {
		rateLimitCounter = metrics.RateLimitRejections
	}
	rateLimiter := ratelimit.NewRedisRateLimiter(redisClient, rateLimitCounter)

	// Build router
	r := buildRouter(RouterDeps{
		Cfg:               cfg,
		Log:               log,
		ZapLog:            zapLog,
		Resolver:          resolver,
		S2SStore:          s2sStore,
		IdempotencyRepo:   idempotencyRepo,
		RateLimiter:       rateLimiter,
		Metrics:           metrics,
		Pool:              pool,
		Redis:             redisClient,
		PermissionManager: permManager,

		AccessLevelHandler: accessLevelHandler,
		TeamHandler:        teamHandler,
		PermissionsHandler: permissionsHandler,
		DebugHandler:       debugHandler,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info(ctx, "starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete")
	return nil
}
