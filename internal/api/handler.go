package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbenaiss/InsightRun/internal/analytics"
	"github.com/mbenaiss/InsightRun/internal/auth"
	"github.com/mbenaiss/InsightRun/internal/domain"
	"github.com/mbenaiss/InsightRun/internal/identity"
	"github.com/mbenaiss/InsightRun/internal/metrics"
	"github.com/mbenaiss/InsightRun/internal/notifications"
	"github.com/mbenaiss/InsightRun/internal/quota"
	"github.com/mbenaiss/InsightRun/internal/relay"
	"github.com/mbenaiss/InsightRun/internal/telemetry"
	"github.com/mbenaiss/InsightRun/internal/upstream"
)

const ServiceName = "insightrun-ai-proxy"

type HandlerConfig struct {
	Verifier *auth.Verifier
	Limiter  *quota.Limiter
	Upstream *upstream.Client
	Emitter  *analytics.Emitter
	Notifier notifications.Notifier
	Checkers []HealthChecker
	Version  string
}

type Handler struct {
	verifier *auth.Verifier
	limiter  *quota.Limiter
	upstream *upstream.Client
	emitter  *analytics.Emitter
	notifier notifications.Notifier
	version  string
	mux      *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		upstream: cfg.Upstream,
		emitter:  cfg.Emitter,
		notifier: cfg.Notifier,
		version:  cfg.Version,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/ready", handleHealthReady(cfg.Checkers, 5*time.Second))
	h.mux.HandleFunc("POST /api/chat", h.requireAppKey(h.withQuota(h.handleChat)))
	h.mux.HandleFunc("POST /api/chat/stream", h.requireAppKey(h.withQuota(h.handleChatStream)))
	h.mux.HandleFunc("GET /api/stats", h.handleStats)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   ServiceName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity.Resolve(r.Header)

	count, err := h.limiter.Consult(ctx, id)
	if err != nil {
		slog.Error("failed to read quota", "error", err, "identity", id)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read quota", nil)
		return
	}

	resetIn, err := h.limiter.ResetIn(ctx, id)
	if err != nil {
		slog.Error("failed to read quota ttl", "error", err, "identity", id)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read quota", nil)
		return
	}

	remaining := h.limiter.Limit() - count
	if remaining < 0 {
		remaining = 0
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestsRemaining": remaining,
		"limit":             h.limiter.Limit(),
		"resetIn":           int(resetIn.Seconds()),
		"identifier":        id,
		"ip":                identity.ClientIP(r.Header),
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	h.serveChat(w, r, "/api/chat", false)
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	h.serveChat(w, r, "/api/chat/stream", true)
}

// serveChat runs the shared pipeline for both chat endpoints. The raw
// flag selects verbatim passthrough of the upstream bytes instead of
// reconstructed content frames; parsing for accounting is identical.
func (h *Handler) serveChat(w http.ResponseWriter, r *http.Request, route string, raw bool) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(r.Context(), "proxy.chat")
	defer span.End()

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordRequest(route, "400", time.Since(start).Seconds())
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}

	if msg, ok := validateChatRequest(req); !ok {
		metrics.RecordRequest(route, "400", time.Since(start).Seconds())
		writeError(w, http.StatusBadRequest, "bad_request", msg, map[string]interface{}{
			"maxPromptLength": domain.MaxPromptLength,
		})
		return
	}

	id := identity.Resolve(r.Header)
	traceID := uuid.New().String()
	telemetry.AddRequestAttributes(span, id, req.Model, traceID)

	body, err := h.upstream.StreamChat(ctx, req.Model, req.SystemPrompt, req.Prompt)
	if err != nil {
		metrics.RecordUpstreamError()
		metrics.RecordRequest(route, "500", time.Since(start).Seconds())
		telemetry.AddErrorAttribute(span, err)
		slog.Error("upstream request failed", "error", err, "identity", id, "model", req.Model)
		notifications.Notify(h.notifier, notifications.Notification{
			Type:     notifications.NotificationUpstreamDown,
			Identity: id,
			Message:  "upstream completion request failed",
		})

		var upstreamErr *domain.UpstreamError
		if errors.As(err, &upstreamErr) {
			writeError(w, http.StatusInternalServerError, "upstream_error", "upstream provider returned an error", map[string]interface{}{
				"upstreamStatus": upstreamErr.StatusCode,
				"upstreamBody":   upstreamErr.Body,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "upstream_error", "failed to reach upstream provider", nil)
		return
	}
	defer body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		metrics.RecordRequest(route, "500", time.Since(start).Seconds())
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	acc := relay.NewAccumulator()
	var relayErr error
	if raw {
		relayErr = relay.Passthrough(w, flusher, body, acc)
	} else {
		relayErr = relay.Pump(w, flusher, body, acc)
	}
	if relayErr != nil {
		// A broken client pipe or an interrupted upstream read. The
		// response can no longer be amended; partial accounting below is
		// still worth emitting.
		slog.Warn("stream interrupted", "error", relayErr, "identity", id, "trace_id", traceID)
		telemetry.AddErrorAttribute(span, relayErr)
	}

	usage := acc.Usage()
	latency := time.Since(start)

	telemetry.AddTokenAttributes(span, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	metrics.RecordRequest(route, "200", latency.Seconds())
	metrics.RecordTokens(req.Model, usage.PromptTokens, usage.CompletionTokens)

	cost := analytics.EstimateCost(req.Model, usage)
	metrics.RecordCost(req.Model, cost)

	slog.Info("chat request completed",
		"route", route,
		"identity", id,
		"trace_id", traceID,
		"model", req.Model,
		"total_tokens", usage.TotalTokens,
		"latency_ms", latency.Milliseconds(),
	)

	h.emitter.Emit(domain.GenerationEvent{
		DistinctID:       id,
		TraceID:          traceID,
		Model:            req.Model,
		Input:            req.SystemPrompt + "\n\n" + req.Prompt,
		Output:           acc.Output(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		LatencySeconds:   latency.Seconds(),
		CostUSD:          cost,
		IP:               identity.ClientIP(r.Header),
		Timestamp:        time.Now().UTC(),
	})
}

func validateChatRequest(req domain.ChatRequest) (string, bool) {
	switch {
	case req.Prompt == "":
		return "missing required field: prompt", false
	case req.SystemPrompt == "":
		return "missing required field: systemPrompt", false
	case req.Model == "":
		return "missing required field: model", false
	case len(req.Prompt) > domain.MaxPromptLength:
		return "prompt exceeds maximum length", false
	}
	return "", true
}
