package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type startKey struct{}

// LLMLogHandler logs every eino component run of the drafting and review
// chains. Chat model completions are logged with their token usage.
type LLMLogHandler struct {
	Logger *slog.Logger
}

var _ callbacks.Handler = (*LLMLogHandler)(nil)

func NewLLMLogHandler(logger *slog.Logger) *LLMLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMLogHandler{Logger: logger}
}

func (h *LLMLogHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	h.Logger.DebugContext(ctx, "llm component start", runAttrs(info)...)
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (h *LLMLogHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	attrs := append(runAttrs(info), "elapsed_ms", elapsedMs(ctx))

	var msg *schema.Message
	switch v := output.(type) {
	case *ecmodel.CallbackOutput:
		msg = v.Message
		if v.TokenUsage != nil {
			attrs = append(attrs,
				"prompt_tokens", v.TokenUsage.PromptTokens,
				"completion_tokens", v.TokenUsage.CompletionTokens)
		}
	case *schema.Message:
		msg = v
	}
	if msg != nil {
		attrs = append(attrs, "chars", len(msg.Content))
		if msg.ResponseMeta != nil {
			attrs = append(attrs, "finish_reason", msg.ResponseMeta.FinishReason)
			if u := msg.ResponseMeta.Usage; u != nil {
				attrs = append(attrs, "total_tokens", u.TotalTokens)
			}
		}
	}
	h.Logger.DebugContext(ctx, "llm component end", attrs...)
	return ctx
}

func (h *LLMLogHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	attrs := append(runAttrs(info), "elapsed_ms", elapsedMs(ctx), "error", err)
	h.Logger.WarnContext(ctx, "llm component failed", attrs...)
	return ctx
}

func (h *LLMLogHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h *LLMLogHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	h.Logger.DebugContext(ctx, "llm stream end", runAttrs(info)...)
	return ctx
}

func runAttrs(info *callbacks.RunInfo) []any {
	if info == nil {
		return nil
	}
	return []any{"name", info.Name, "type", info.Type, "component", string(info.Component)}
}

func elapsedMs(ctx context.Context) int64 {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start).Milliseconds()
}
