package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/services/cache"
)

// Client defaults applied when the caller leaves options at their zero
// values.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
	DefaultTopP        = 1.0
)

// Client performs one logical completion request against a two-tier model
// hierarchy. Transient upstream errors (429/5xx) are retried with
// exponential backoff on the same tier; a capacity/overload error after
// retries triggers exactly one whole-request retry on the fallback model.
// Successful results are cached unless the caller opts out.
type Client struct {
	primary       Provider
	fallback      Provider
	primaryModel  string
	fallbackModel string
	retry         *RetryConfig
	cache         *cache.ResponseCache
	logger        arbor.ILogger
}

// ClientOptions configures a Client. Fallback nil means the fallback model
// is served by the primary provider. Cache nil disables caching.
type ClientOptions struct {
	Primary       Provider
	Fallback      Provider
	PrimaryModel  string
	FallbackModel string
	Retry         *RetryConfig
	Cache         *cache.ResponseCache
	Logger        arbor.ILogger
}

// NewClient creates a completion client from explicit dependencies.
func NewClient(opts ClientOptions) *Client {
	fallback := opts.Fallback
	if fallback == nil {
		fallback = opts.Primary
	}
	retry := opts.Retry
	if retry == nil {
		retry = NewDefaultRetryConfig()
	}
	return &Client{
		primary:       opts.Primary,
		fallback:      fallback,
		primaryModel:  opts.PrimaryModel,
		fallbackModel: opts.FallbackModel,
		retry:         retry,
		cache:         opts.Cache,
		logger:        opts.Logger,
	}
}

// Complete performs one logical "generate text" request.
//
// The request targets opts.Model (default: the primary model). A cache hit
// short-circuits the network entirely. Otherwise the selected tier is tried
// up to MaxRetries times for transient errors; only a content-based
// capacity signal on the final error swaps to the fallback model, and only
// when the request was not already targeting it.
func (c *Client) Complete(ctx context.Context, prompt string, opts interfaces.CompletionOptions) (*interfaces.CompletionResult, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	model := opts.Model
	if model == "" {
		model = c.primaryModel
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	topP := opts.TopP
	if topP == 0 {
		topP = DefaultTopP
	}

	var key string
	if c.cache != nil && !opts.SkipCache {
		key = cache.GenerateKey(prompt, model, temperature, maxTokens)
		if hit, ok := c.cache.Get(key); ok {
			c.logger.Debug().
				Str("model", model).
				Msg("Completion served from response cache")
			return hit, nil
		}
	}

	req := &Request{
		Prompt:           prompt,
		SystemPrompt:     opts.SystemPrompt,
		Model:            model,
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		TopP:             topP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
	}

	resp, err := c.completeWithRetry(ctx, c.providerFor(model), req)
	if err != nil && IsCapacityError(err) && model != c.fallbackModel {
		c.logger.Warn().
			Err(err).
			Str("model", model).
			Str("fallback_model", c.fallbackModel).
			Msg("Model at capacity, retrying request on fallback model")

		fbReq := *req
		fbReq.Model = c.fallbackModel
		resp, err = c.completeWithRetry(ctx, c.fallback, &fbReq)
		model = c.fallbackModel
	}
	if err != nil {
		return nil, &GenerationError{Model: model, Err: err}
	}

	result := &interfaces.CompletionResult{
		Content:    resp.Content,
		TokensUsed: resp.TokensUsed,
		Model:      resp.Model,
	}

	if c.cache != nil && !opts.SkipCache {
		c.cache.Set(key, result)
	}

	return result, nil
}

// completeWithRetry tries one model tier up to MaxRetries times, backing
// off exponentially between transient failures. Non-transient errors stop
// immediately.
func (c *Client) completeWithRetry(ctx context.Context, provider Provider, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Debug().
				Str("model", req.Model).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying completion after transient error")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransientError(err) {
			return nil, err
		}

		c.logger.Warn().
			Err(err).
			Str("model", req.Model).
			Int("attempt", attempt).
			Int("max_retries", c.retry.MaxRetries).
			Msg("Transient completion error")
	}

	return nil, lastErr
}

// providerFor picks the provider serving the given model.
func (c *Client) providerFor(model string) Provider {
	if model == c.fallbackModel {
		return c.fallback
	}
	return c.primary
}

// Close releases both provider tiers.
func (c *Client) Close() error {
	if err := c.primary.Close(); err != nil {
		return err
	}
	if c.fallback != c.primary {
		return c.fallback.Close()
	}
	return nil
}

// Ensure Client implements the CompletionService interface
var _ interfaces.CompletionService = (*Client)(nil)
