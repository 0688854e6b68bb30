package interfaces

import "context"

// CompletionOptions tunes a single completion request. Zero values fall back
// to the client defaults (temperature 0.3, 2000 max tokens, topP 1).
type CompletionOptions struct {
	Model            string
	SystemPrompt     string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	SkipCache        bool
}

// CompletionResult is the outcome of one logical completion. Model reflects
// the model that actually answered, which differs from the requested model
// after a capacity fallback.
type CompletionResult struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// CompletionService performs one logical "generate text" request against the
// configured model hierarchy, including transient-error retry, capacity
// fallback, and response caching.
type CompletionService interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (*CompletionResult, error)
}
