package graph

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexResearch/models"
)

type sequenceStage struct {
	name   string
	stages []Stage
}

// Sequence runs stages one after another as a single stage. Each inner
// stage sees the merged result of its predecessors; the combined update
// carries every field they touched.
func Sequence(name string, stages ...Stage) Stage {
	return &sequenceStage{name: name, stages: stages}
}

func (s *sequenceStage) Name() string { return s.name }

func (s *sequenceStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	local := state
	acc := &models.StateUpdate{}
	for _, st := range s.stages {
		if err := ctx.Err(); err != nil {
			return acc, err
		}
		u, err := safeRun(ctx, st, local.Clone())
		local = local.Merge(u)
		acc = acc.Overlay(u)
		if err != nil {
			if ctx.Err() != nil {
				return acc, ctx.Err()
			}
			eu := models.ErrorUpdate(local, fmt.Sprintf("%s: %v", st.Name(), err))
			local = local.Merge(eu)
			acc = acc.Overlay(eu)
		}
	}
	return acc, nil
}

type parallelStage struct {
	name   string
	stages []Stage
}

// Parallel runs stages concurrently on the same snapshot and joins their
// updates in declared order. When two branches write the same field the
// later one wins, except for Errors: every entry a branch appended is
// kept.
func Parallel(name string, stages ...Stage) Stage {
	return &parallelStage{name: name, stages: stages}
}

func (p *parallelStage) Name() string { return p.name }

func (p *parallelStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	results := make([]stageResult, len(p.stages))

	// branches never return an error to the group so one failure does not
	// cancel its siblings
	var g errgroup.Group
	for i, st := range p.stages {
		in := state.Clone()
		g.Go(func() error {
			u, err := safeRun(ctx, st, in)
			results[i] = stageResult{update: u, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	joined := &models.StateUpdate{}
	errs := slices.Clone(state.Errors)
	touched := false
	for i, res := range results {
		if res.update != nil {
			if res.update.Errors != nil {
				errs = append(errs, appended(state.Errors, res.update.Errors)...)
				touched = true
			}
			rest := *res.update
			rest.Errors = nil
			joined = joined.Overlay(&rest)
		}
		if res.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.stages[i].Name(), res.err))
			touched = true
		}
	}
	if touched {
		joined.Errors = errs
	}
	return joined, nil
}

// appended returns the entries of log that a branch added on top of base.
// A log that does not extend base is taken whole.
func appended(base, log []string) []string {
	if len(log) >= len(base) && slices.Equal(log[:len(base)], base) {
		return log[len(base):]
	}
	return log
}
