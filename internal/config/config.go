package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	// Provider settings
	OpenAIKey       string
	AIModel         string
	AIBaseURL       string
	EmbeddingModel  string
	ProviderTimeout time.Duration

	// Auth
	AuthJWKSURL string
	AuthIssuer  string

	// Lesson assembly
	DailyTopicCount int
	LessonTimeout   time.Duration
	MixDuePct       int
	MixWeakPct      int
	MixNewPct       int

	// Mastery and scheduling policy
	MasteryAlpha     float64
	WeakThreshold    float64
	IntervalBase     time.Duration
	IntervalFactor   float64
	IntervalMax      time.Duration
	TopicCatalogPath string

	// Cache
	CacheTTL            time.Duration
	CacheMaxEntries     int
	SimilarityThreshold float64 // 0 disables the similarity path

	// Router resilience
	RetryMaxAttempts int
	BreakerFailures  int
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration

	RatelimitRate   string
	EnableHSTS      bool
	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		AIModel:         getEnv("AI_MODEL", ""),
		AIBaseURL:       getEnv("AI_BASE_URL", ""),
		EmbeddingModel:  getEnv("AI_EMBEDDING_MODEL", ""),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		AuthJWKSURL: getEnv("AUTH_JWKS_URL", ""),
		AuthIssuer:  getEnv("AUTH_ISSUER", ""),

		DailyTopicCount: getEnvInt("DAILY_TOPIC_COUNT", 5),
		LessonTimeout:   getEnvDuration("LESSON_TIMEOUT", 2*time.Minute),
		MixDuePct:       getEnvInt("MIX_DUE_PCT", 50),
		MixWeakPct:      getEnvInt("MIX_WEAK_PCT", 30),
		MixNewPct:       getEnvInt("MIX_NEW_PCT", 20),

		MasteryAlpha:     getEnvFloat("MASTERY_ALPHA", 0.3),
		WeakThreshold:    getEnvFloat("WEAK_THRESHOLD", 0.6),
		IntervalBase:     getEnvDuration("REVIEW_INTERVAL_BASE", 24*time.Hour),
		IntervalFactor:   getEnvFloat("REVIEW_INTERVAL_FACTOR", 2.0),
		IntervalMax:      getEnvDuration("REVIEW_INTERVAL_MAX", 60*24*time.Hour),
		TopicCatalogPath: getEnv("TOPIC_CATALOG_PATH", "catalog.yaml"),

		CacheTTL:            getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:     getEnvInt("CACHE_MAX_ENTRIES", 10000),
		SimilarityThreshold: getEnvFloat("CACHE_SIMILARITY_THRESHOLD", 0),

		RetryMaxAttempts: getEnvInt("PROVIDER_RETRY_ATTEMPTS", 3),
		BreakerFailures:  getEnvInt("BREAKER_FAILURES", 5),
		BreakerWindow:    getEnvDuration("BREAKER_WINDOW", 30*time.Second),
		BreakerCooldown:  getEnvDuration("BREAKER_COOLDOWN", 60*time.Second),

		RatelimitRate:   getEnv("RATELIMIT_RATE", "10-S"),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.MixDuePct+cfg.MixWeakPct+cfg.MixNewPct != 100 {
		return nil, fmt.Errorf("topic mix percentages must sum to 100 (got %d/%d/%d)",
			cfg.MixDuePct, cfg.MixWeakPct, cfg.MixNewPct)
	}

	if cfg.MasteryAlpha <= 0 || cfg.MasteryAlpha > 1 {
		return nil, fmt.Errorf("MASTERY_ALPHA must be in (0, 1], got %v", cfg.MasteryAlpha)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
