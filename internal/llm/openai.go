package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/toporag/internal/util"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIProvider implements the Provider interface for OpenAI-compatible chat APIs
type OpenAIProvider struct {
	client       *openai.Client
	config       Config
	name         string
	defaultModel string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return newOpenAICompatible(config, "openai", openai.GPT4oMini), nil
}

// NewOpenRouterProvider creates a provider for OpenRouter's OpenAI-compatible API
func NewOpenRouterProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = OpenRouterBaseURL
	}
	return newOpenAICompatible(config, "openrouter", "openai/gpt-4o-mini"), nil
}

func newOpenAICompatible(config Config, name, defaultModel string) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = util.NewHTTPClient(config.timeout(60*time.Second), config.HTTPProxy, config.HTTPSProxy, config.NoProxy)

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		config:       config,
		name:         name,
		defaultModel: defaultModel,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// CheckAvailable lists models, a lightweight authenticated call
func (p *OpenAIProvider) CheckAvailable(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s API check failed: %w", p.name, err)
	}
	return nil
}

// Complete sends the prompt through the Chat Completions API
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, p.defaultModel)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.config.maxTokens(req),
		Temperature: float32(temperature(req, p.config)),
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func temperature(req CompletionRequest, config Config) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return config.Temperature
}
