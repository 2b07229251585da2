package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbenaiss/InsightRun/internal/analytics"
	"github.com/mbenaiss/InsightRun/internal/api"
	"github.com/mbenaiss/InsightRun/internal/auth"
	"github.com/mbenaiss/InsightRun/internal/config"
	"github.com/mbenaiss/InsightRun/internal/notifications"
	"github.com/mbenaiss/InsightRun/internal/quota"
	"github.com/mbenaiss/InsightRun/internal/repository"
	"github.com/mbenaiss/InsightRun/internal/secrets"
	"github.com/mbenaiss/InsightRun/internal/telemetry"
	"github.com/mbenaiss/InsightRun/internal/upstream"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting AI proxy", "addr", cfg.Addr, "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, api.ServiceName, version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	loadSecrets(ctx, cfg)

	if cfg.AppKey == config.DefaultAppKey && cfg.AppKeyHash == "" {
		slog.Warn("APP_KEY not configured, using weak default app key")
	}
	if cfg.UpstreamAPIKey == "" {
		slog.Error("UPSTREAM_API_KEY not configured")
		os.Exit(1)
	}

	var store quota.Store
	var checkers []api.HealthChecker
	if cfg.RedisURL != "" {
		redisStore, err := quota.NewRedisStore(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		checkers = append(checkers, api.NewPingChecker("redis", redisStore.Ping))
		slog.Info("using redis quota store")
	} else {
		store = quota.NewMemoryStore()
		slog.Info("using in-memory quota store")
	}

	limiter := quota.NewLimiter(store, cfg.RateLimitWindow, cfg.RateLimitMax)

	sinks := buildSinks(ctx, cfg, &checkers)
	var emitter *analytics.Emitter
	if len(sinks) > 0 {
		emitter = analytics.NewEmitter(analytics.MultiSink(sinks))
	} else {
		slog.Warn("no analytics sink configured, generation events will be dropped")
		emitter = analytics.NewEmitter(nil)
	}

	var notifier notifications.Notifier
	if cfg.AlertsTopicARN != "" && cfg.AWSRegion != "" {
		notifier, err = notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.AlertsTopicARN)
		if err != nil {
			slog.Warn("failed to initialize sns notifier", "error", err)
			notifier = nil
		} else {
			slog.Info("sns notifier enabled", "topic", cfg.AlertsTopicARN)
		}
	}

	upstreamClient := upstream.New(cfg.UpstreamAPIKey, cfg.UpstreamBaseURL, cfg.MaxTokens, cfg.Temperature)

	handler := api.NewHandler(api.HandlerConfig{
		Verifier: auth.NewVerifier(cfg.AppKey, cfg.AppKeyHash),
		Limiter:  limiter,
		Upstream: upstreamClient,
		Emitter:  emitter,
		Notifier: notifier,
		Checkers: checkers,
		Version:  version,
	})

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: streamed completions can legitimately run for
		// minutes; the upstream client bounds how long we wait for data.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	slog.Info("server stopped")
}

// loadSecrets overrides env-sourced secrets with values from AWS Secrets
// Manager when secret names are configured.
func loadSecrets(ctx context.Context, cfg *config.Config) {
	if cfg.AWSRegion == "" || (cfg.AppKeySecretName == "" && cfg.UpstreamKeySecretName == "") {
		return
	}

	store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Warn("failed to initialize secrets manager", "error", err)
		return
	}

	if cfg.AppKeySecretName != "" {
		if value, err := store.GetSecret(ctx, cfg.AppKeySecretName); err != nil {
			slog.Warn("failed to load app key secret", "error", err)
		} else {
			cfg.AppKey = value
		}
	}

	if cfg.UpstreamKeySecretName != "" {
		if value, err := store.GetSecret(ctx, cfg.UpstreamKeySecretName); err != nil {
			slog.Warn("failed to load upstream key secret", "error", err)
		} else {
			cfg.UpstreamAPIKey = value
		}
	}
}

func buildSinks(ctx context.Context, cfg *config.Config, checkers *[]api.HealthChecker) []analytics.Sink {
	var sinks []analytics.Sink

	if cfg.AnalyticsEndpoint != "" {
		sinks = append(sinks, analytics.NewHTTPSink(cfg.AnalyticsEndpoint, cfg.AnalyticsAPIKey))
		slog.Info("analytics http sink enabled", "endpoint", cfg.AnalyticsEndpoint)
	}

	if cfg.EventsQueueURL != "" && cfg.AWSRegion != "" {
		sqsSink, err := analytics.NewSQSSink(ctx, cfg.AWSRegion, cfg.EventsQueueURL)
		if err != nil {
			slog.Warn("failed to initialize sqs sink", "error", err)
		} else {
			sinks = append(sinks, sqsSink)
			slog.Info("analytics sqs sink enabled", "queue", cfg.EventsQueueURL)
		}
	}

	if cfg.DatabaseURL != "" {
		repo, err := repository.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			slog.Warn("failed to connect to postgres", "error", err)
		} else {
			sinks = append(sinks, repo)
			*checkers = append(*checkers, api.NewPingChecker("postgres", repo.Ping))
			slog.Info("analytics postgres sink enabled")
		}
	}

	return sinks
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
