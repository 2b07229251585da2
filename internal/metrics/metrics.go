package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightrun_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightrun_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightrun_tokens_total",
			Help: "Total number of tokens processed",
		},
		[]string{"model", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightrun_cost_usd_total",
			Help: "Estimated total cost in USD",
		},
		[]string{"model"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insightrun_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
	)

	UpstreamErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insightrun_upstream_errors_total",
			Help: "Total number of upstream provider errors",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insightrun_active_streams",
			Help: "Number of active streaming connections",
		},
	)

	GenerationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightrun_generation_events_total",
			Help: "Total number of generation events emitted",
		},
		[]string{"status"},
	)
)

func RecordRequest(route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(route, status).Inc()
	RequestDuration.WithLabelValues(route).Observe(durationSec)
}

func RecordTokens(model string, promptTokens, completionTokens int) {
	TokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

func RecordCost(model string, costUSD float64) {
	CostTotal.WithLabelValues(model).Add(costUSD)
}

func RecordRateLimitHit() {
	RateLimitHits.Inc()
}

func RecordUpstreamError() {
	UpstreamErrors.Inc()
}

func RecordGenerationEvent(status string) {
	GenerationEvents.WithLabelValues(status).Inc()
}
