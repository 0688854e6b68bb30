package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/finsight/reportgen/internal/common"
)

// GeminiProvider implements the Provider interface using the Google Gemini
// API. It is used as the secondary tier when the fallback provider is set
// to "gemini".
type GeminiProvider struct {
	client  *genai.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  arbor.ILogger
}

// NewGeminiProvider creates a new Gemini provider instance.
func NewGeminiProvider(cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required (set via GEMINI_API_KEY, REPORTGEN_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout duration '%s': %w", cfg.Timeout, err)
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 5
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	provider := &GeminiProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		timeout: timeout,
		logger:  logger,
	}

	logger.Debug().
		Dur("timeout", timeout).
		Int("rate_limit", rateLimit).
		Msg("Gemini provider initialized")

	return provider, nil
}

// Generate issues one completion request against the Gemini API.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		config.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	startTime := time.Now()
	result, err := p.client.Models.GenerateContent(timeoutCtx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("no response generated from Gemini API")
	}

	tokensUsed := 0
	if result.UsageMetadata != nil {
		tokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}

	p.logger.Debug().
		Str("model", req.Model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini completion succeeded")

	return &Response{
		Content:    text,
		TokensUsed: tokensUsed,
		Model:      req.Model,
	}, nil
}

// Type returns the provider type.
func (p *GeminiProvider) Type() ProviderType {
	return ProviderGemini
}

// Close releases the client reference. The genai client requires no
// explicit close.
func (p *GeminiProvider) Close() error {
	p.client = nil
	return nil
}
