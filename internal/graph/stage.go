package graph

import (
	"context"

	"github.com/dyike/CortexResearch/models"
)

// Stage is one unit of pipeline work. Run receives a private copy of the
// current state and returns the fields it wants to change.
//
// A stage reports recoverable failures as Errors entries in its update.
// A returned error is recorded by the engine as "<stage>: <err>" and the
// run continues.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error)
}

// StageFunc adapts a plain function to the Stage contract.
type StageFunc func(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error)

type funcStage struct {
	name string
	fn   StageFunc
}

// NewStage wraps fn as a Stage called name.
func NewStage(name string, fn StageFunc) Stage {
	return &funcStage{name: name, fn: fn}
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	return s.fn(ctx, state)
}

type renamedStage struct {
	Stage
	name string
}

// Rename exposes stage under another graph name.
func Rename(name string, stage Stage) Stage {
	return &renamedStage{Stage: stage, name: name}
}

func (s *renamedStage) Name() string { return s.name }
