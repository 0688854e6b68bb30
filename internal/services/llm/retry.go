package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

// Default retry constants for transient upstream errors.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// RetryConfig defines retry behavior for transient completion API errors.
type RetryConfig struct {
	// MaxRetries is the total number of attempts per model tier.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// NewDefaultRetryConfig returns a RetryConfig with sensible defaults.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Backoff computes the delay before the given retry (1-based):
// min(InitialDelay * 2^(retry-1), MaxDelay).
func (c *RetryConfig) Backoff(retry int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// transientStatuses are the HTTP statuses retried with backoff.
var transientStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// transientMarkers is the substring fallback for providers whose errors do
// not expose a structured status code.
var transientMarkers = []string{"429", "500", "502", "503", "504", "RESOURCE_EXHAUSTED"}

// IsTransientError reports whether an upstream error should be retried with
// backoff. Structured status codes from the provider SDKs are preferred;
// message sniffing is the fallback.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) {
		return transientStatuses[claudeErr.StatusCode]
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return transientStatuses[geminiErr.Code]
	}

	errStr := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// capacityMarkers signal that the model itself is out of capacity. The
// upstream APIs expose no structured code for this condition, so the
// message text is the only available signal.
var capacityMarkers = []string{"capacity", "overloaded", "currently unavailable"}

// IsCapacityError reports whether the error message indicates a
// capacity/overload condition, which triggers the one-time fallback to the
// secondary model.
func IsCapacityError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range capacityMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// GenerationError wraps an upstream completion failure. It surfaces the
// upstream message without exposing transport internals beyond the text.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on model %s: %s", e.Model, e.Err.Error())
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
