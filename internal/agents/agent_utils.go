package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexResearch/config"
)

// ErrOffline is returned by NewChatModel when the configured provider runs
// without a language model.
var ErrOffline = errors.New("llm provider is offline")

// NewChatModel builds the chat model for cfg.LLMProvider. modelName
// overrides cfg.DeepThinkLLM when set.
func NewChatModel(ctx context.Context, cfg *config.Config, modelName string) (model.ChatModel, error) {
	if modelName == "" {
		modelName = cfg.DeepThinkLLM
	}
	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature

	switch strings.ToLower(cfg.LLMProvider) {
	case "offline":
		return nil, ErrOffline
	case "deepseek":
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("deepseek: DEEPSEEK_API_KEY is not set")
		}
		chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      cfg.DeepSeekAPIKey,
			BaseURL:     cfg.BackendURL,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return chatModel, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY is not set")
		}
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BackendURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return chatModel, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicChatModel(AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			BaseURL:     cfg.BackendURL,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
