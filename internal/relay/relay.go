// Package relay pumps an upstream SSE completion stream to the client
// while accumulating the full output text and token usage as a side
// effect of the passthrough. Two framings share one line parser: the
// buffered mode re-emits reconstructed content frames, the raw mode
// forwards the original bytes verbatim.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mbenaiss/InsightRun/internal/domain"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	readBufferSize = 4096
)

// ErrMalformedLine marks an SSE data line whose payload failed to parse
// as JSON. Such lines are logged and skipped, never fatal to the stream.
var ErrMalformedLine = errors.New("malformed stream line")

// LineResult is the outcome of parsing one complete SSE line.
type LineResult struct {
	// ContentDelta is the incremental text fragment, if any.
	ContentDelta string
	// Usage is the cumulative token usage carried by this line, if any.
	Usage *domain.Usage
	// Done reports whether the line was the terminal sentinel.
	Done bool
}

// ParseLine interprets a single complete line from the upstream stream.
// Non-data lines and empty payloads yield a zero LineResult.
func ParseLine(line string) (LineResult, error) {
	if !strings.HasPrefix(line, dataPrefix) {
		return LineResult{}, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return LineResult{}, nil
	}
	if payload == doneSentinel {
		return LineResult{Done: true}, nil
	}

	var chunk domain.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return LineResult{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	result := LineResult{Usage: chunk.Usage}
	if len(chunk.Choices) > 0 {
		result.ContentDelta = chunk.Choices[0].Delta.Content
	}
	return result, nil
}

// Accumulator folds parsed lines into the running totals for one stream.
// It owns the carry-over buffer, so chunk boundaries that split a line
// mid-token are reassembled before parsing.
type Accumulator struct {
	carry  []byte
	output strings.Builder
	usage  domain.Usage
	done   bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{carry: make([]byte, 0, 1024)}
}

// Feed appends a raw upstream chunk, parses every complete line it now
// holds, and returns the results in order. The trailing partial line is
// retained for the next chunk. Malformed lines are logged and skipped.
func (a *Accumulator) Feed(chunk []byte) []LineResult {
	if len(chunk) == 0 {
		return nil
	}
	a.carry = append(a.carry, chunk...)

	var results []LineResult
	for {
		idx := bytes.IndexByte(a.carry, '\n')
		if idx < 0 {
			return results
		}
		line := strings.TrimRight(string(a.carry[:idx]), "\r")
		a.carry = a.carry[idx+1:]

		result, err := ParseLine(line)
		if err != nil {
			slog.Warn("skipping malformed stream line", "error", err)
			continue
		}
		a.apply(result)
		results = append(results, result)
	}
}

func (a *Accumulator) apply(r LineResult) {
	if r.ContentDelta != "" {
		a.output.WriteString(r.ContentDelta)
	}
	if r.Usage != nil {
		// Usage is cumulative when reported; the last chunk wins.
		a.usage = *r.Usage
	}
	if r.Done {
		a.done = true
	}
}

// Output returns the full accumulated completion text.
func (a *Accumulator) Output() string { return a.output.String() }

// Usage returns the most recently reported token counts.
func (a *Accumulator) Usage() domain.Usage { return a.usage }

// Done reports whether the terminal sentinel has been seen.
func (a *Accumulator) Done() bool { return a.done }

// Pump reads the upstream body to completion, feeding acc and re-emitting
// reconstructed content frames (`data: {"content":...}`) to w, followed
// by a terminal `data: [DONE]` marker. A write failure means the client
// went away; the upstream read loop stops but whatever was accumulated
// so far stays available for best-effort telemetry.
func Pump(w io.Writer, flusher http.Flusher, body io.Reader, acc *Accumulator) error {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, result := range acc.Feed(buf[:n]) {
				if result.ContentDelta != "" {
					frame, err := json.Marshal(map[string]string{"content": result.ContentDelta})
					if err != nil {
						slog.Warn("failed to encode content frame", "error", err)
						continue
					}
					if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
						return fmt.Errorf("write content frame: %w", err)
					}
					flusher.Flush()
				}
				if result.Done {
					if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
						return fmt.Errorf("write done marker: %w", err)
					}
					flusher.Flush()
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// Any unterminated carry-over is a no-op remainder: real
				// upstreams always close after the done sentinel.
				return nil
			}
			return fmt.Errorf("read upstream stream: %w", readErr)
		}
	}
}

// Passthrough forwards the original upstream bytes to w verbatim while
// feeding acc for accounting. Finalization is driven by the reader
// signaling completion, not by the done sentinel.
func Passthrough(w io.Writer, flusher http.Flusher, body io.Reader, acc *Accumulator) error {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			acc.Feed(buf[:n])
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write passthrough chunk: %w", err)
			}
			flusher.Flush()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read upstream stream: %w", readErr)
		}
	}
}
