// Package analytics ships generation events to an analytics backend.
// Emission is fire-and-forget: it runs after the client response is
// already delivered and its failures are logged, never surfaced.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mbenaiss/InsightRun/internal/domain"
	"github.com/mbenaiss/InsightRun/internal/httputil"
	"github.com/mbenaiss/InsightRun/internal/metrics"
)

// Sink accepts a generation event. Implementations must flush
// immediately; the execution environment may terminate shortly after the
// response completes.
type Sink interface {
	Capture(ctx context.Context, ev domain.GenerationEvent) error
}

// Emitter fires events at a sink in the background. captureTimeout
// bounds the detached call so a dead sink cannot pile up goroutines.
type Emitter struct {
	sink           Sink
	captureTimeout time.Duration
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, captureTimeout: 10 * time.Second}
}

// Emit schedules the event for delivery and returns immediately. Errors
// are caught and logged inside the detached goroutine; nothing blocks on
// or observes the outcome.
func (e *Emitter) Emit(ev domain.GenerationEvent) {
	if e == nil || e.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.captureTimeout)
		defer cancel()

		if err := e.sink.Capture(ctx, ev); err != nil {
			metrics.RecordGenerationEvent("error")
			slog.Error("failed to emit generation event",
				"error", err,
				"trace_id", ev.TraceID,
				"distinct_id", ev.DistinctID,
			)
			return
		}
		metrics.RecordGenerationEvent("ok")
	}()
}

// HTTPSink posts events to an analytics capture endpoint as JSON.
type HTTPSink struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPSink(endpoint, apiKey string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   httputil.NewClient(httputil.ClientConfig{Timeout: 10 * time.Second}),
	}
}

func (s *HTTPSink) Capture(ctx context.Context, ev domain.GenerationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// MultiSink fans an event out to every configured sink. One sink failing
// does not stop the others; the first error is reported.
type MultiSink []Sink

func (m MultiSink) Capture(ctx context.Context, ev domain.GenerationEvent) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Capture(ctx, ev); err != nil {
			slog.Warn("analytics sink failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// MemorySink records events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.GenerationEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]domain.GenerationEvent, 0)}
}

func (s *MemorySink) Capture(ctx context.Context, ev domain.GenerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemorySink) Events() []domain.GenerationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.GenerationEvent, len(s.events))
	copy(result, s.events)
	return result
}
