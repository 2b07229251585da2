package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mbenaiss/InsightRun/internal/domain"
)

func testEvent() domain.GenerationEvent {
	return domain.GenerationEvent{
		DistinctID:     "user-1",
		TraceID:        "trace-1",
		Model:          "gpt-4o-mini",
		Input:          "system\n\nprompt",
		Output:         "Hello",
		TotalTokens:    30,
		LatencySeconds: 1.5,
		Timestamp:      time.Now().UTC(),
	}
}

func TestHTTPSink_Capture(t *testing.T) {
	var received domain.GenerationEvent
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "ph-key")
	if err := sink.Capture(context.Background(), testEvent()); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	if received.DistinctID != "user-1" || received.Output != "Hello" {
		t.Errorf("received event = %+v", received)
	}
	if gotAuth != "Bearer ph-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
}

func TestHTTPSink_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "")
	if err := sink.Capture(context.Background(), testEvent()); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

type failingSink struct{}

func (failingSink) Capture(ctx context.Context, ev domain.GenerationEvent) error {
	return errors.New("sink down")
}

func TestMultiSink_OneFailureDoesNotStopOthers(t *testing.T) {
	mem := NewMemorySink()
	multi := MultiSink{failingSink{}, mem}

	err := multi.Capture(context.Background(), testEvent())
	if err == nil {
		t.Error("expected first sink's error to be reported")
	}
	if len(mem.Events()) != 1 {
		t.Errorf("second sink received %d events, want 1", len(mem.Events()))
	}
}

func TestEmitter_FailureIsIsolated(t *testing.T) {
	// A failing sink must never panic or propagate; Emit returns
	// immediately and the error is only logged.
	emitter := NewEmitter(failingSink{})
	emitter.Emit(testEvent())

	emitter = NewEmitter(nil)
	emitter.Emit(testEvent())
}

func TestEmitter_DeliversInBackground(t *testing.T) {
	mem := NewMemorySink()
	emitter := NewEmitter(mem)

	emitter.Emit(testEvent())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mem.Events()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event was not delivered")
}

func TestEstimateCost(t *testing.T) {
	// Known model: per-direction pricing.
	usage := domain.Usage{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}
	got := EstimateCost("gpt-4o-mini", usage)
	want := 0.00015 + 0.0006
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("EstimateCost(gpt-4o-mini) = %v, want %v", got, want)
	}

	// Unknown model: flat per-token fallback over the total.
	got = EstimateCost("mystery-model", usage)
	want = 2000 * defaultCostPerToken
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("EstimateCost(unknown) = %v, want %v", got, want)
	}
}
