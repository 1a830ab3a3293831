package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/CortexResearch/models"
)

// Hook observes a run. Implementations must not modify the state they
// are handed and must return quickly.
type Hook interface {
	OnStageStart(ctx context.Context, stage string, state *models.ResearchState)
	OnStageEnd(ctx context.Context, stage string, update *models.StateUpdate, err error, elapsed time.Duration)
	OnRoute(ctx context.Context, from, label, to string)
	OnFinish(ctx context.Context, state *models.ResearchState, err error)
}

// BaseHook implements Hook with no-ops, for embedding.
type BaseHook struct{}

func (BaseHook) OnStageStart(context.Context, string, *models.ResearchState)                   {}
func (BaseHook) OnStageEnd(context.Context, string, *models.StateUpdate, error, time.Duration) {}
func (BaseHook) OnRoute(context.Context, string, string, string)                               {}
func (BaseHook) OnFinish(context.Context, *models.ResearchState, error)                        {}

type multiHook []Hook

func (m multiHook) OnStageStart(ctx context.Context, stage string, state *models.ResearchState) {
	for _, h := range m {
		h.OnStageStart(ctx, stage, state)
	}
}

func (m multiHook) OnStageEnd(ctx context.Context, stage string, update *models.StateUpdate, err error, elapsed time.Duration) {
	for _, h := range m {
		h.OnStageEnd(ctx, stage, update, err, elapsed)
	}
}

func (m multiHook) OnRoute(ctx context.Context, from, label, to string) {
	for _, h := range m {
		h.OnRoute(ctx, from, label, to)
	}
}

func (m multiHook) OnFinish(ctx context.Context, state *models.ResearchState, err error) {
	for _, h := range m {
		h.OnFinish(ctx, state, err)
	}
}

type runIDKey struct{}

// ContextWithRunID tags ctx with a run id, generating one when id is empty.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id carried by ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
