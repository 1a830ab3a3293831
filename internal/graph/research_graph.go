package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

// ResearchGraph is the run boundary: one compiled pipeline shared by
// every Propagate call.
type ResearchGraph struct {
	config   *config.Config
	runnable *Runnable
	logger   *slog.Logger
}

func NewResearchGraph(cfg *config.Config, c Collaborators, logger *slog.Logger, opts ...Option) (*ResearchGraph, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]Option{WithHooks(NewLoggerCallback(logger, nil))}, opts...)
	r, err := NewResearchOrchestrator(cfg, c, opts...)
	if err != nil {
		return nil, fmt.Errorf("build research pipeline: %w", err)
	}
	return &ResearchGraph{config: cfg, runnable: r, logger: logger}, nil
}

func (g *ResearchGraph) Config() *config.Config {
	return g.config
}

func (g *ResearchGraph) Stages() []string {
	return g.runnable.Stages()
}

// Propagate runs the pipeline for ticker with at most revisionCap
// revisions. A run id is attached to ctx unless one is already present.
//
// The returned state is non-nil whenever the ticker is valid, even when
// an error is returned alongside it.
func (g *ResearchGraph) Propagate(ctx context.Context, ticker string, revisionCap int, opts ...Option) (*models.ResearchState, error) {
	if err := dataflows.ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	ticker = dataflows.NormalizeSymbol(ticker)

	if RunID(ctx) == "" {
		ctx = ContextWithRunID(ctx, "")
	}
	if d := g.config.RunTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	g.logger.InfoContext(ctx, "research run started",
		"run_id", RunID(ctx), "ticker", ticker, "max_revisions", revisionCap)

	state, err := g.runnable.Invoke(ctx, models.NewResearchState(ticker, revisionCap), opts...)
	if err != nil {
		return state, fmt.Errorf("research run %s: %w", RunID(ctx), err)
	}
	return state, nil
}
