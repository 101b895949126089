package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/toporag/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "openrouter":
		return NewOpenRouterProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, openrouter, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Timeout:     time.Duration(c.Timeout) * time.Second,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		HTTPProxy:   c.HTTPProxy,
		HTTPSProxy:  c.HTTPSProxy,
		NoProxy:     c.NoProxy,
	}
}
