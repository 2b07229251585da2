package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"ADDR", "LOG_LEVEL", "APP_KEY", "APP_KEY_HASH",
	"UPSTREAM_API_KEY", "UPSTREAM_BASE_URL", "UPSTREAM_MAX_TOKENS",
	"UPSTREAM_TEMPERATURE", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX",
	"REDIS_URL", "ANALYTICS_ENDPOINT", "ANALYTICS_API_KEY",
	"DATABASE_URL", "EVENTS_QUEUE_URL", "ALERTS_TOPIC_ARN",
	"AWS_REGION", "APP_KEY_SECRET_NAME", "UPSTREAM_KEY_SECRET_NAME",
	"OTLP_ENDPOINT", "SHUTDOWN_TIMEOUT",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Addr", cfg.Addr, ":8080"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"AppKey", cfg.AppKey, DefaultAppKey},
		{"AppKeyHash", cfg.AppKeyHash, ""},
		{"UpstreamAPIKey", cfg.UpstreamAPIKey, ""},
		{"UpstreamBaseURL", cfg.UpstreamBaseURL, "https://api.openai.com/v1"},
		{"RedisURL", cfg.RedisURL, ""},
		{"AnalyticsEndpoint", cfg.AnalyticsEndpoint, ""},
		{"DatabaseURL", cfg.DatabaseURL, ""},
		{"EventsQueueURL", cfg.EventsQueueURL, ""},
		{"AlertsTopicARN", cfg.AlertsTopicARN, ""},
		{"OTLPEndpoint", cfg.OTLPEndpoint, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Temperature)
	}
	if cfg.RateLimitWindow != time.Hour {
		t.Errorf("RateLimitWindow = %v, want 1h", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 100 {
		t.Errorf("RateLimitMax = %d, want 100", cfg.RateLimitMax)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv()

	os.Setenv("ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("APP_KEY", "prod-key")
	os.Setenv("UPSTREAM_API_KEY", "sk-test-key")
	os.Setenv("UPSTREAM_BASE_URL", "https://custom.openai.com/v1")
	os.Setenv("UPSTREAM_MAX_TOKENS", "512")
	os.Setenv("UPSTREAM_TEMPERATURE", "0.2")
	os.Setenv("RATE_LIMIT_WINDOW", "60")
	os.Setenv("RATE_LIMIT_MAX", "10")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("AWS_REGION", "us-east-1")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Addr", cfg.Addr, ":9090"},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"AppKey", cfg.AppKey, "prod-key"},
		{"UpstreamAPIKey", cfg.UpstreamAPIKey, "sk-test-key"},
		{"UpstreamBaseURL", cfg.UpstreamBaseURL, "https://custom.openai.com/v1"},
		{"RedisURL", cfg.RedisURL, "redis://localhost:6379"},
		{"DatabaseURL", cfg.DatabaseURL, "postgres://localhost/test"},
		{"AWSRegion", cfg.AWSRegion, "us-east-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.RateLimitMax != 10 {
		t.Errorf("RateLimitMax = %d, want 10", cfg.RateLimitMax)
	}
}

func TestGetIntEnv_InvalidFallsBack(t *testing.T) {
	os.Setenv("TEST_INT_VAR", "not-a-number")
	defer os.Unsetenv("TEST_INT_VAR")

	if got := getIntEnv("TEST_INT_VAR", 42); got != 42 {
		t.Errorf("getIntEnv with invalid value = %d, want default 42", got)
	}
}

func TestGetDurationEnv_Seconds(t *testing.T) {
	os.Setenv("TEST_DUR_VAR", "90")
	defer os.Unsetenv("TEST_DUR_VAR")

	if got := getDurationEnv("TEST_DUR_VAR", time.Hour); got != 90*time.Second {
		t.Errorf("getDurationEnv = %v, want 90s", got)
	}
}
