package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicChatModel adapts the Claude Messages API to eino's chat model
// interface so it can sit in a compose chain next to the eino-ext models.
type AnthropicChatModel struct {
	messages messageCreator
	cfg      AnthropicConfig
}

func NewAnthropicChatModel(cfg AnthropicConfig) *AnthropicChatModel {
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" && strings.Contains(cfg.BaseURL, "anthropic") {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_5Sonnet20241022)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicChatModel{messages: &client.Messages, cfg: cfg}
}

func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	params := m.buildParams(input, opts...)
	resp, err := m.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}
	out := schema.AssistantMessage(text.String(), nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: finishReason,
		Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	return out, nil
}

// Stream delivers the full response as a single chunk.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *AnthropicChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return fmt.Errorf("anthropic adapter does not support tool calling")
	}
	return nil
}

func (m *AnthropicChatModel) buildParams(input []*schema.Message, opts ...model.Option) anthropic.MessageNewParams {
	temperature := m.cfg.Temperature
	maxTokens := m.cfg.MaxTokens
	modelName := m.cfg.Model
	common := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(*common.Model),
		MaxTokens:   int64(*common.MaxTokens),
		Temperature: anthropic.Float(float64(*common.Temperature)),
	}
	for _, msg := range input {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case schema.Assistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return params
}
