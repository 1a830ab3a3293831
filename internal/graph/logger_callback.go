package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

// LoggerCallback writes engine progress to a structured logger and, when
// Out is set, pushes StageEvents to it for streaming clients.
type LoggerCallback struct {
	Logger *slog.Logger
	Out    chan<- *models.StageEvent
}

func NewLoggerCallback(logger *slog.Logger, out chan<- *models.StageEvent) *LoggerCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerCallback{Logger: logger, Out: out}
}

func (cb *LoggerCallback) push(ctx context.Context, ev *models.StageEvent) {
	if cb.Out == nil {
		return
	}
	ev.RunID = RunID(ctx)
	select {
	case cb.Out <- ev:
	case <-ctx.Done():
	}
}

func (cb *LoggerCallback) OnStageStart(ctx context.Context, stage string, state *models.ResearchState) {
	cb.Logger.InfoContext(ctx, "stage start",
		"run_id", RunID(ctx),
		"stage", stage,
		"ticker", state.Ticker,
		"revision", state.RevisionCount,
	)
	cb.push(ctx, &models.StageEvent{
		Type:     models.EventStageStart,
		Stage:    stage,
		Agent:    consts.AgentDisplayName(stage),
		Revision: state.RevisionCount,
	})
}

func (cb *LoggerCallback) OnStageEnd(ctx context.Context, stage string, update *models.StateUpdate, err error, elapsed time.Duration) {
	ev := &models.StageEvent{
		Type:      models.EventStageEnd,
		Stage:     stage,
		Agent:     consts.AgentDisplayName(stage),
		Keys:      update.Keys(),
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
		cb.Logger.WarnContext(ctx, "stage failed",
			"run_id", RunID(ctx), "stage", stage, "elapsed", elapsed, "error", err)
	} else {
		cb.Logger.InfoContext(ctx, "stage end",
			"run_id", RunID(ctx), "stage", stage, "elapsed", elapsed, "keys", ev.Keys)
	}
	cb.push(ctx, ev)
}

func (cb *LoggerCallback) OnRoute(ctx context.Context, from, label, to string) {
	cb.Logger.DebugContext(ctx, "route", "run_id", RunID(ctx), "from", from, "label", label, "to", to)
	if label == "" {
		return
	}
	cb.push(ctx, &models.StageEvent{Type: models.EventRoute, Stage: from, Label: label, Next: to})
}

func (cb *LoggerCallback) OnFinish(ctx context.Context, state *models.ResearchState, err error) {
	attrs := []any{
		"run_id", RunID(ctx),
		"ticker", state.Ticker,
		"revisions", state.RevisionCount,
		"approved", state.Approved(),
		"errors", len(state.Errors),
	}
	if err != nil {
		cb.Logger.ErrorContext(ctx, "run aborted", append(attrs, "error", err)...)
	} else {
		cb.Logger.InfoContext(ctx, "run finished", attrs...)
	}
	ev := &models.StageEvent{Type: models.EventFinish, Revision: state.RevisionCount, Report: state.Project(0)}
	ev.Report.RunID = RunID(ctx)
	if err != nil {
		ev.Error = err.Error()
	}
	cb.push(ctx, ev)
}
