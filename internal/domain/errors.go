package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAppKey     = errors.New("invalid app key")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrPromptTooLong     = errors.New("prompt too long")
)

// UpstreamError is a non-2xx response from the LLM provider. The body is
// kept so operators can diagnose the failure from the 500 we return.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status=%d body=%s", e.StatusCode, e.Body)
}
