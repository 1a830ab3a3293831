// Package agentstest provides a scripted chat model for tests of the LLM
// backed stages.
package agentstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel answers with Responses in order, repeating the last one once
// they run out. Err, when set, is returned instead.
type ChatModel struct {
	Responses []string
	Err       error

	mu    sync.Mutex
	calls [][]*schema.Message
}

var _ model.ChatModel = (*ChatModel)(nil)

func NewChatModel(responses ...string) *ChatModel {
	return &ChatModel{Responses: responses}
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("agentstest: no scripted response")
	}
	i := min(len(m.calls)-1, len(m.Responses)-1)
	msg := schema.AssistantMessage(m.Responses[i], nil)
	msg.ResponseMeta = &schema.ResponseMeta{FinishReason: "stop"}
	return msg, nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) BindTools([]*schema.ToolInfo) error { return nil }

// Calls returns the message lists the model has been invoked with.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}

// LastUserMessage returns the user message of the most recent call.
func (m *ChatModel) LastUserMessage() string {
	calls := m.Calls()
	if len(calls) == 0 {
		return ""
	}
	for _, msg := range calls[len(calls)-1] {
		if msg.Role == schema.User {
			return msg.Content
		}
	}
	return ""
}
