package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/catalog"
	"github.com/fluentlabs/lernplan/internal/config"
	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/logger"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/queue"
	"github.com/fluentlabs/lernplan/internal/router"
	"github.com/fluentlabs/lernplan/internal/services/agent"
	"github.com/fluentlabs/lernplan/internal/workers"
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
	debugMode := cfg.WorkerDebugMode || *debugFlag

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

	zapLogger.Info("Starting worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
	)

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to database")

	// Redis backs the shared content cache, so warmed content is visible
	// to the API server
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Invalid redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("Failed to close redis connection", zap.Error(err))
		}
	}()

	// Initialize repositories and the topic catalog
	userRepo := database.NewUserRepository(db)
	progressRepo := database.NewProgressRepository(db)

	topicCatalog, err := catalog.Load(cfg.TopicCatalogPath)
	if err != nil {
		zapLogger.Fatal("Failed to load topic catalog",
			zap.String("path", cfg.TopicCatalogPath),
			zap.Error(err),
		)
	}

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

	// Initialize RabbitMQ queue
	eventQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := eventQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ",
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	// Agent router for warmup generation; static providers keep warmup
	// useful when the LLM is unreachable
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

	var index cache.SimilarityIndex
	var embedder cache.Embedder
	if cfg.SimilarityThreshold > 0 && cfg.OpenAIKey != "" {
		index = cache.NewMemoryIndex()
		embedder = agent.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.AIBaseURL, cfg.EmbeddingModel)
	}
	contentCache := cache.New(cache.NewRedisStore(redisClient), index, embedder, zapLogger, cache.Options{
		TTL:                 cfg.CacheTTL,
		SimilarityThreshold: cfg.SimilarityThreshold,
	})

	// Create the outcome recorder
	recorder := workers.NewOutcomeRecorder(tracker, contentCache, agentRouter, eventQueue)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start consuming messages
	msgChan, errChan, err := eventQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	zapLogger.Info("Worker started, consuming messages from queue")

	// Process messages
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("Message channel closed")
					return
				}

				// Process event
				if err := recorder.ProcessEvent(ctx, msg); err != nil {
					zapLogger.Error("Failed to process event",
						zap.Error(err),
						zap.String("event_id", msg.GetEvent().ID.String()),
						zap.String("event_type", string(msg.GetEvent().Type)),
					)
				}
			}
		}
	}()

	// Handle errors
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("Queue error", zap.Error(err))
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	zapLogger.Info("Shutdown signal received, stopping worker...")

	// Cancel context to stop processing
	cancel()

	zapLogger.Info("Worker stopped")
}
