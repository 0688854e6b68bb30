package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/common"
	"github.com/finsight/reportgen/internal/services/cache"
)

// NewCompletionService builds the completion client from configuration:
// Claude as the primary tier, and either Claude or Gemini serving the
// fallback model depending on llm.fallback_provider.
func NewCompletionService(cfg *common.Config, logger arbor.ILogger) (*Client, error) {
	claudeProvider, err := NewClaudeProvider(&cfg.Claude, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude provider: %w", err)
	}

	var fallback Provider = claudeProvider
	if cfg.LLM.FallbackProvider == common.LLMProviderGemini {
		geminiProvider, err := NewGeminiProvider(&cfg.Gemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini fallback provider: %w", err)
		}
		fallback = geminiProvider
	}

	retry := &RetryConfig{
		MaxRetries:   cfg.LLM.MaxRetries,
		InitialDelay: common.MustDuration(cfg.LLM.InitialDelay),
		MaxDelay:     common.MustDuration(cfg.LLM.MaxDelay),
	}
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = DefaultMaxRetries
	}

	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache = cache.NewResponseCache(cfg.Cache.MaxSize, common.MustDuration(cfg.Cache.TTL), logger)
	}

	logger.Info().
		Str("primary_model", cfg.LLM.PrimaryModel).
		Str("fallback_model", cfg.LLM.FallbackModel).
		Str("fallback_provider", string(cfg.LLM.FallbackProvider)).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Msg("Completion service initialized")

	return NewClient(ClientOptions{
		Primary:       claudeProvider,
		Fallback:      fallback,
		PrimaryModel:  cfg.LLM.PrimaryModel,
		FallbackModel: cfg.LLM.FallbackModel,
		Retry:         retry,
		Cache:         responseCache,
		Logger:        logger,
	}), nil
}
