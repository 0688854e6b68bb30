// Package llm implements the completion client: a two-tier model hierarchy
// with transient-error retry, capacity-triggered model fallback, and
// response caching in front of the provider SDKs.
package llm

import (
	"context"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
)

// Request is a provider-agnostic completion request.
type Request struct {
	Prompt           string
	SystemPrompt     string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content    string
	TokensUsed int
	Model      string
}

// Provider issues a single completion request against one upstream API.
// Retry, fallback, and caching live above this interface in Client.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Type() ProviderType
	Close() error
}
