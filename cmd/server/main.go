package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/catalog"
	"github.com/fluentlabs/lernplan/internal/config"
	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/handlers"
	"github.com/fluentlabs/lernplan/internal/logger"
	"github.com/fluentlabs/lernplan/internal/middleware"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/orchestrator"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/queue"
	"github.com/fluentlabs/lernplan/internal/router"
	"github.com/fluentlabs/lernplan/internal/services/agent"
	"github.com/fluentlabs/lernplan/internal/telemetry"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "lernplan-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	if err := database.Migrate(context.Background(), db); err != nil {
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Connect to Redis for the content cache and rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ for the event queue (required)
	// Retry connection with exponential backoff to handle RabbitMQ startup delays
	const maxRetries = 10
	const initialDelay = 2 * time.Second
	var eventQueue queue.EventQueue
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		eventQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := eventQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			break
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt)) // Exponential backoff
		if delay > 30*time.Second {
			delay = 30 * time.Second // Cap at 30 seconds
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
			zap.Int("max_retries", maxRetries),
			zap.Error(lastErr),
		)
	}

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	progressRepo := database.NewProgressRepository(db)

	// Load the topic catalog
	topicCatalog, err := catalog.Load(cfg.TopicCatalogPath)
	if err != nil {
		zapLogger.Fatal("failed_to_load_topic_catalog",
			zap.String("path", cfg.TopicCatalogPath),
			zap.Error(err),
		)
	}
	zapLogger.Info("loaded_topic_catalog",
		zap.String("path", cfg.TopicCatalogPath),
	)

	// Progress tracker
	tracker := progress.NewTracker(userRepo, progressRepo, topicCatalog, progress.Policy{
		Alpha:          cfg.MasteryAlpha,
		WeakThreshold:  cfg.WeakThreshold,
		IntervalBase:   cfg.IntervalBase,
		IntervalFactor: cfg.IntervalFactor,
		IntervalMax:    cfg.IntervalMax,
		MixDuePct:      cfg.MixDuePct,
		MixWeakPct:     cfg.MixWeakPct,
		MixNewPct:      cfg.MixNewPct,
	}, zapLogger)

	// Agent router with per-capability fallback chains. The static
	// provider is last in every chain so lessons degrade instead of fail.
	agentRouter := router.New(zapLogger, router.Options{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		ProviderTimeout:  cfg.ProviderTimeout,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerWindow:    cfg.BreakerWindow,
		BreakerCooldown:  cfg.BreakerCooldown,
	})
	for _, capability := range models.Capabilities {
		if cfg.OpenAIKey != "" {
			agentRouter.AddProvider(agent.NewOpenAIProvider(
				cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, capability, zapLogger, debugMode))
		}
		agentRouter.AddProvider(agent.NewStaticProvider(capability))
	}
	if cfg.OpenAIKey == "" {
		zapLogger.Warn("openai_key_not_configured_serving_static_content_only")
	}

	// Content cache. Similarity lookup needs an embedder and a threshold.
	var index cache.SimilarityIndex
	var embedder cache.Embedder
	if cfg.SimilarityThreshold > 0 && cfg.OpenAIKey != "" {
		index = cache.NewMemoryIndex()
		embedder = agent.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.AIBaseURL, cfg.EmbeddingModel)
		zapLogger.Info("similarity_lookup_enabled",
			zap.Float64("threshold", cfg.SimilarityThreshold),
		)
	}
	contentCache := cache.New(cache.NewRedisStore(redisClient), index, embedder, zapLogger, cache.Options{
		TTL:                 cfg.CacheTTL,
		SimilarityThreshold: cfg.SimilarityThreshold,
	})

	// Lesson orchestrator
	orch := orchestrator.New(tracker, contentCache, agentRouter, orchestrator.Options{
		DailyTopicCount: cfg.DailyTopicCount,
		LessonTimeout:   cfg.LessonTimeout,
	}, zapLogger)

	// Token verifier for the auth middleware
	if cfg.AuthJWKSURL == "" {
		zapLogger.Fatal("auth_jwks_url_not_configured")
	}
	verifier, err := middleware.NewTokenVerifier(context.Background(), cfg.AuthJWKSURL, cfg.AuthIssuer)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_token_verifier", zap.Error(err))
	}

	// Initialize handlers
	lessonHandler := handlers.NewLessonHandler(orch, eventQueue)
	userHandler := handlers.NewUserHandler(userRepo)
	healthChecker := handlers.NewHealthChecker(db, eventQueue, redisClient)

	// Setup router
	r := mux.NewRouter()

	// Apply middleware (order matters - executed in reverse order of registration)
	zapLogger.Info("setting_up_middleware")

	// Outermost middleware (executes first):
	// 0. OpenTelemetry tracing (if enabled)
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("lernplan-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Security headers (should be set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. CORS for the configured frontend origins
	r.Use(middleware.CORS(cfg.FrontendURL))
	// Rate limit middleware (applied selectively to specific routes, not globally)
	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RatelimitRate)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	// 3. Request size limits (protects against DoS)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// 4. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 5. Request timeout; lesson assembly gets its own deadline inside
	r.Use(middleware.Timeout(cfg.LessonTimeout + 30*time.Second))
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Audit logging (for security events)
	r.Use(middleware.Audit(zapLogger))
	// 8. Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API routes (protected)
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.Auth(db, verifier))
	apiRouter.Use(rateLimitMW)
	lessonHandler.RegisterRoutes(apiRouter)

	usersRouter := apiRouter.PathPrefix("/users").Subrouter()
	userHandler.RegisterRoutes(usersRouter)

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS middleware should have already set headers, just return 204
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.LessonTimeout + 30*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Start DLQ garbage collector if the queue implementation supports it
	// Run every hour, retain messages for 24 hours
	if dlqPurger, ok := eventQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info (sanitized for security)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
