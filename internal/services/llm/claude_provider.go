package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/finsight/reportgen/internal/common"
)

// ClaudeProvider implements the Provider interface using the Anthropic
// Claude API.
type ClaudeProvider struct {
	client  anthropic.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  arbor.ILogger
}

// NewClaudeProvider creates a new Claude provider instance.
//
// Returns an error when the API key is missing or the configured timeout
// cannot be parsed.
func NewClaudeProvider(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY, REPORTGEN_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout duration '%s': %w", cfg.Timeout, err)
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 5
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	provider := &ClaudeProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		timeout: timeout,
		logger:  logger,
	}

	logger.Debug().
		Dur("timeout", timeout).
		Int("rate_limit", rateLimit).
		Msg("Claude provider initialized")

	return provider, nil
}

// Generate issues one completion request against the Claude API.
func (p *ClaudeProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	// FrequencyPenalty/PresencePenalty have no Claude equivalent and are
	// intentionally not mapped.

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	startTime := time.Now()
	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	p.logger.Debug().
		Str("model", req.Model).
		Int("response_length", content.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion succeeded")

	return &Response{
		Content:    content.String(),
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		Model:      string(resp.Model),
	}, nil
}

// Type returns the provider type.
func (p *ClaudeProvider) Type() ProviderType {
	return ProviderClaude
}

// Close releases resources. The Claude client requires no explicit cleanup.
func (p *ClaudeProvider) Close() error {
	return nil
}
