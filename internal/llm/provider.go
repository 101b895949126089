// Package llm talks to hosted and local language models and turns their
// answers into structured disambiguation judgments.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the model's text answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CheckAvailable verifies the provider is configured and reachable
	CheckAvailable(ctx context.Context) error
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // Overrides the configured model when set
	MaxTokens   int
	Temperature float64
	JSON        bool // Ask for a JSON object when the provider supports it
}

// CompletionResponse contains the model's answer
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "openrouter", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenRouter, test servers)
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling; judgments want it low
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     60 * time.Second,
		MaxTokens:   1000,
		Temperature: 0.1,
	}
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}
