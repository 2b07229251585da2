package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbenaiss/InsightRun/internal/domain"
)

func TestStreamChat_RequestShape(t *testing.T) {
	var captured domain.UpstreamRequest
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := New("sk-test", srv.URL, 1024, 0.7)

	body, err := client.StreamChat(context.Background(), "gpt-4o-mini", "be helpful", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()
	io.ReadAll(body)

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if !captured.Stream {
		t.Error("stream must always be true")
	}
	if captured.MaxTokens != 1024 || captured.Temperature != 0.7 {
		t.Errorf("sampling params = (%d, %v), want pinned (1024, 0.7)", captured.MaxTokens, captured.Temperature)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be helpful" {
		t.Errorf("first message = %+v, want system prompt", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "hello" {
		t.Errorf("second message = %+v, want user prompt", captured.Messages[1])
	}
}

func TestStreamChat_UpstreamErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"overloaded"}`)
	}))
	defer srv.Close()

	client := New("sk-test", srv.URL, 1024, 0.7)

	_, err := client.StreamChat(context.Background(), "gpt-4o-mini", "sys", "hi")
	if err == nil {
		t.Fatal("expected error for non-2xx upstream status")
	}

	var upstreamErr *domain.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("error type = %T, want *domain.UpstreamError", err)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", upstreamErr.StatusCode)
	}
	if upstreamErr.Body != `{"error":"overloaded"}` {
		t.Errorf("body = %q, want upstream body attached", upstreamErr.Body)
	}
}

func TestStreamChat_ReturnsRawStream(t *testing.T) {
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	client := New("sk-test", srv.URL, 1024, 0.7)

	body, err := client.StreamChat(context.Background(), "gpt-4o-mini", "sys", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != payload {
		t.Errorf("body = %q, want %q", got, payload)
	}
}
