// Package upstream issues chat completion requests to the external LLM
// provider. The request shape is fixed: a two-message conversation with
// pinned sampling parameters, always streamed. The buffered client-facing
// endpoint reconstructs its response from the stream rather than asking
// for a non-streaming completion.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mbenaiss/InsightRun/internal/domain"
	"github.com/mbenaiss/InsightRun/internal/httputil"
)

type Client struct {
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

func New(apiKey, baseURL string, maxTokens int, temperature float64, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      httputil.DefaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChat issues the completion request and returns the raw SSE body.
// The caller owns the returned reader and must close it. A non-2xx
// upstream status is returned as *domain.UpstreamError with the response
// body attached; it is never retried.
func (c *Client) StreamChat(ctx context.Context, model, systemPrompt, prompt string) (io.ReadCloser, error) {
	req := domain.UpstreamRequest{
		Model: model,
		Messages: []domain.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      true,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return resp.Body, nil
}
