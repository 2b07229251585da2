package domain

import "time"

// MaxPromptLength is the hard cap on the user prompt in characters.
// Requests over this limit are rejected before any upstream call.
const MaxPromptLength = 2000

// ChatRequest is the client-facing request body for both chat endpoints.
type ChatRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt"`
	Model        string `json:"model"`
}

// Message is one turn of an upstream conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UpstreamRequest is the fixed request shape sent to the LLM provider.
// Stream is always true; the buffered endpoint reconstructs its response
// from the stream rather than asking for a non-streaming completion.
type UpstreamRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Usage carries token counts as reported by the upstream provider.
// When present on a stream chunk the values are cumulative and final:
// they overwrite any previously seen counts, they are never summed.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is the JSON payload of one upstream SSE data line.
type StreamChunk struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Delta Delta `json:"delta"`
}

type Delta struct {
	Content string `json:"content,omitempty"`
}

// GenerationEvent is the telemetry record built from one completed
// request. Created once per stream, never mutated, fire-and-forget.
type GenerationEvent struct {
	DistinctID       string    `json:"distinctId"`
	TraceID          string    `json:"traceId"`
	Model            string    `json:"model"`
	Input            string    `json:"input"`
	Output           string    `json:"output"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	LatencySeconds   float64   `json:"latency"`
	CostUSD          float64   `json:"cost"`
	IP               string    `json:"ip"`
	Timestamp        time.Time `json:"timestamp"`
}
