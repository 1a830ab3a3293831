package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Prompt variables of a PromptChain.
const (
	VarSystemMessage = "system_message"
	VarUserInput     = "user_input"
)

// PromptChain sends a system prompt and one user message to a chat model.
type PromptChain struct {
	name     string
	runnable compose.Runnable[map[string]any, *schema.Message]
	handlers []callbacks.Handler
}

// NewPromptChain compiles the chain template -> chat model. Prompt text is
// passed as variables, so it may contain braces.
func NewPromptChain(ctx context.Context, name string, chatModel model.ChatModel, handlers ...callbacks.Handler) (*PromptChain, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%s: chat model is nil", name)
	}
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage("{"+VarSystemMessage+"}"),
		schema.UserMessage("{"+VarUserInput+"}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx, compose.WithGraphName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s chain: %w", name, err)
	}
	return &PromptChain{name: name, runnable: runnable, handlers: handlers}, nil
}

func (c *PromptChain) Name() string { return c.name }

// Invoke runs the chain and returns the model's answer.
func (c *PromptChain) Invoke(ctx context.Context, system, user string) (string, error) {
	var opts []compose.Option
	if len(c.handlers) > 0 {
		opts = append(opts, compose.WithCallbacks(c.handlers...))
	}
	msg, err := c.runnable.Invoke(ctx, map[string]any{
		VarSystemMessage: system,
		VarUserInput:     user,
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%s chain: %w", c.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%s chain: empty response", c.name)
	}
	return msg.Content, nil
}
