package config

import (
	"os"
	"strconv"
	"time"
)

// DefaultAppKey is the fallback shared secret used when APP_KEY is not
// configured. It exists so local development works out of the box; it is
// a weak default, not a security guarantee. Production deployments must
// set APP_KEY or APP_KEY_HASH.
const DefaultAppKey = "insightrun-dev-key"

type Config struct {
	Addr     string
	LogLevel string

	// Auth gate
	AppKey     string
	AppKeyHash string

	// Upstream LLM provider
	UpstreamAPIKey  string
	UpstreamBaseURL string
	MaxTokens       int
	Temperature     float64

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int
	RedisURL        string

	// Analytics sinks
	AnalyticsEndpoint string
	AnalyticsAPIKey   string
	DatabaseURL       string
	EventsQueueURL    string

	// Operator notifications
	AlertsTopicARN string

	// AWS / secrets
	AWSRegion             string
	AppKeySecretName      string
	UpstreamKeySecretName string

	// Observability
	OTLPEndpoint string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:                  getEnv("ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		AppKey:                getEnv("APP_KEY", DefaultAppKey),
		AppKeyHash:            getEnv("APP_KEY_HASH", ""),
		UpstreamAPIKey:        getEnv("UPSTREAM_API_KEY", ""),
		UpstreamBaseURL:       getEnv("UPSTREAM_BASE_URL", "https://api.openai.com/v1"),
		MaxTokens:             getIntEnv("UPSTREAM_MAX_TOKENS", 1024),
		Temperature:           getFloatEnv("UPSTREAM_TEMPERATURE", 0.7),
		RateLimitWindow:       getDurationEnv("RATE_LIMIT_WINDOW", 3600*time.Second),
		RateLimitMax:          getIntEnv("RATE_LIMIT_MAX", 100),
		RedisURL:              getEnv("REDIS_URL", ""),
		AnalyticsEndpoint:     getEnv("ANALYTICS_ENDPOINT", ""),
		AnalyticsAPIKey:       getEnv("ANALYTICS_API_KEY", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		EventsQueueURL:        getEnv("EVENTS_QUEUE_URL", ""),
		AlertsTopicARN:        getEnv("ALERTS_TOPIC_ARN", ""),
		AWSRegion:             getEnv("AWS_REGION", ""),
		AppKeySecretName:      getEnv("APP_KEY_SECRET_NAME", ""),
		UpstreamKeySecretName: getEnv("UPSTREAM_KEY_SECRET_NAME", ""),
		OTLPEndpoint:          getEnv("OTLP_ENDPOINT", ""),
		ShutdownTimeout:       getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
