package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/services/cache"
)

// stubProvider records every request and delegates to a configurable
// generate function.
type stubProvider struct {
	mu       sync.Mutex
	calls    []Request
	generate func(req *Request) (*Response, error)
}

func (p *stubProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, *req)
	p.mu.Unlock()
	return p.generate(req)
}

func (p *stubProvider) Type() ProviderType { return ProviderClaude }
func (p *stubProvider) Close() error       { return nil }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func okResponse(req *Request) (*Response, error) {
	return &Response{Content: "generated text", TokensUsed: 42, Model: req.Model}, nil
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestClient(primary, fallback Provider, respCache *cache.ResponseCache) *Client {
	return NewClient(ClientOptions{
		Primary:       primary,
		Fallback:      fallback,
		PrimaryModel:  "model-primary",
		FallbackModel: "model-fallback",
		Retry:         fastRetry(),
		Cache:         respCache,
		Logger:        arbor.NewLogger(),
	})
}

func TestComplete_AppliesDefaults(t *testing.T) {
	provider := &stubProvider{generate: okResponse}
	client := newTestClient(provider, nil, nil)

	result, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Content != "generated text" {
		t.Errorf("unexpected content: %q", result.Content)
	}

	req := provider.calls[0]
	if req.Model != "model-primary" {
		t.Errorf("expected primary model, got %q", req.Model)
	}
	if req.Temperature != DefaultTemperature {
		t.Errorf("expected default temperature %v, got %v", DefaultTemperature, req.Temperature)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", DefaultMaxTokens, req.MaxTokens)
	}
	if req.TopP != DefaultTopP {
		t.Errorf("expected default topP %v, got %v", DefaultTopP, req.TopP)
	}
}

func TestComplete_EmptyPromptRejected(t *testing.T) {
	provider := &stubProvider{generate: okResponse}
	client := newTestClient(provider, nil, nil)

	if _, err := client.Complete(context.Background(), "", interfaces.CompletionOptions{}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if provider.callCount() != 0 {
		t.Errorf("provider called %d times for empty prompt", provider.callCount())
	}
}

func TestComplete_CacheHitSkipsProvider(t *testing.T) {
	provider := &stubProvider{generate: okResponse}
	respCache := cache.NewResponseCache(10, time.Minute, nil)
	client := newTestClient(provider, nil, respCache)

	opts := interfaces.CompletionOptions{}
	if _, err := client.Complete(context.Background(), "summarize ACME", opts); err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}
	if _, err := client.Complete(context.Background(), "summarize ACME", opts); err != nil {
		t.Fatalf("second Complete failed: %v", err)
	}

	if provider.callCount() != 1 {
		t.Errorf("expected 1 provider call with warm cache, got %d", provider.callCount())
	}
}

func TestComplete_SkipCacheBypassesCache(t *testing.T) {
	provider := &stubProvider{generate: okResponse}
	respCache := cache.NewResponseCache(10, time.Minute, nil)
	client := newTestClient(provider, nil, respCache)

	opts := interfaces.CompletionOptions{SkipCache: true}
	for i := 0; i < 2; i++ {
		if _, err := client.Complete(context.Background(), "summarize ACME", opts); err != nil {
			t.Fatalf("Complete %d failed: %v", i, err)
		}
	}

	if provider.callCount() != 2 {
		t.Errorf("expected 2 provider calls with SkipCache, got %d", provider.callCount())
	}
}

func TestComplete_TransientErrorRetriedThenSucceeds(t *testing.T) {
	var attempts int
	provider := &stubProvider{generate: func(req *Request) (*Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("upstream returned 503")
		}
		return okResponse(req)
	}}
	client := newTestClient(provider, nil, nil)

	result, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Model != "model-primary" {
		t.Errorf("expected primary model result, got %q", result.Model)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestComplete_TransientErrorExhaustsRetries(t *testing.T) {
	provider := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("upstream returned 429")
	}}
	client := newTestClient(provider, nil, nil)

	_, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if provider.callCount() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", provider.callCount())
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Model != "model-primary" {
		t.Errorf("expected failure attributed to primary model, got %q", genErr.Model)
	}
}

func TestComplete_NonTransientErrorNotRetried(t *testing.T) {
	provider := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("invalid api key")
	}}
	client := newTestClient(provider, nil, nil)

	if _, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if provider.callCount() != 1 {
		t.Errorf("expected 1 attempt for non-transient error, got %d", provider.callCount())
	}
}

func TestComplete_CapacityErrorFallsBackOnce(t *testing.T) {
	primary := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("model is currently overloaded")
	}}
	fallback := &stubProvider{generate: okResponse}
	client := newTestClient(primary, fallback, nil)

	result, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Model != "model-fallback" {
		t.Errorf("expected fallback model result, got %q", result.Model)
	}
	if primary.callCount() != 1 {
		t.Errorf("capacity error should not be retried on the primary, got %d calls", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Errorf("expected exactly 1 fallback call, got %d", fallback.callCount())
	}
	if fallback.calls[0].Model != "model-fallback" {
		t.Errorf("fallback request kept model %q", fallback.calls[0].Model)
	}
}

func TestComplete_FallbackAtCapacityDoesNotCascade(t *testing.T) {
	atCapacity := func(req *Request) (*Response, error) {
		return nil, errors.New("no capacity available")
	}
	primary := &stubProvider{generate: atCapacity}
	fallback := &stubProvider{generate: atCapacity}
	client := newTestClient(primary, fallback, nil)

	_, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{})
	if err == nil {
		t.Fatal("expected error when both tiers are at capacity")
	}
	if primary.callCount() != 1 {
		t.Errorf("expected 1 primary call, got %d", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Errorf("expected 1 fallback call and no further cascading, got %d", fallback.callCount())
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Model != "model-fallback" {
		t.Errorf("expected failure attributed to fallback model, got %q", genErr.Model)
	}
}

func TestComplete_ExplicitFallbackModelNeverFallsBack(t *testing.T) {
	fallback := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("model is at capacity")
	}}
	primary := &stubProvider{generate: okResponse}
	client := newTestClient(primary, fallback, nil)

	_, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{Model: "model-fallback"})
	if err == nil {
		t.Fatal("expected error")
	}
	if primary.callCount() != 0 {
		t.Errorf("primary should not serve fallback-model requests, got %d calls", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Errorf("expected 1 fallback call, got %d", fallback.callCount())
	}
	if !strings.Contains(err.Error(), "model-fallback") {
		t.Errorf("error should name the failing model: %v", err)
	}
}

func TestComplete_SuccessfulResultCached(t *testing.T) {
	provider := &stubProvider{generate: okResponse}
	respCache := cache.NewResponseCache(10, time.Minute, nil)
	client := newTestClient(provider, nil, respCache)

	if _, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if respCache.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", respCache.Len())
	}
}

func TestComplete_FailedResultNotCached(t *testing.T) {
	provider := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("invalid request")
	}}
	respCache := cache.NewResponseCache(10, time.Minute, nil)
	client := newTestClient(provider, nil, respCache)

	if _, err := client.Complete(context.Background(), "summarize ACME", interfaces.CompletionOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if respCache.Len() != 0 {
		t.Errorf("expected empty cache after failure, got %d entries", respCache.Len())
	}
}

func TestComplete_ContextCancelledDuringBackoff(t *testing.T) {
	provider := &stubProvider{generate: func(req *Request) (*Response, error) {
		return nil, errors.New("upstream returned 503")
	}}
	client := NewClient(ClientOptions{
		Primary:       provider,
		PrimaryModel:  "model-primary",
		FallbackModel: "model-fallback",
		Retry:         &RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second},
		Logger:        arbor.NewLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "summarize ACME", interfaces.CompletionOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("expected backoff to abort after 1 attempt, got %d", provider.callCount())
	}
}
