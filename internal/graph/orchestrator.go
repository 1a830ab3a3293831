package graph

import (
	"errors"
	"fmt"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/consts"
)

// Collaborators are the stages plugged into the research pipeline. Their
// own names are ignored; the orchestrator registers them under the
// pipeline's stage names.
type Collaborators struct {
	MarketData Stage
	Technicals Stage
	News       Stage
	Analyst    Stage
	Reviewer   Stage
}

func (c Collaborators) validate() error {
	var errs []error
	for name, s := range map[string]Stage{
		consts.FetchMarketData:   c.MarketData,
		consts.ComputeIndicators: c.Technicals,
		consts.FetchNews:         c.News,
		consts.DraftAnalysis:     c.Analyst,
		consts.Review:            c.Reviewer,
	} {
		if s == nil {
			errs = append(errs, fmt.Errorf("missing collaborator for %s", name))
		}
	}
	return errors.Join(errs...)
}

// NewResearchOrchestrator wires the research pipeline:
//
//	fetch_market_data -> compute_indicators -> fetch_news -> draft_analysis -> review
//	review --revision--> draft_analysis
//	review --end-------> END
//
// With ParallelFetch the three fetch stages become one gather_data stage
// running the market path and the news fetch concurrently.
func NewResearchOrchestrator(cfg *config.Config, c Collaborators, opts ...Option) (*Runnable, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	g := NewGraph()

	market := Rename(consts.FetchMarketData, c.MarketData)
	technicals := Rename(consts.ComputeIndicators, c.Technicals)
	news := Rename(consts.FetchNews, c.News)

	if cfg.ParallelFetch {
		gather := Parallel(consts.GatherData,
			Sequence(consts.MarketPath, market, technicals),
			news,
		)
		_ = g.AddStage(gather)
		_ = g.AddEdge(consts.GatherData, consts.DraftAnalysis)
		_ = g.SetEntryPoint(consts.GatherData)
	} else {
		_ = g.AddStage(market)
		_ = g.AddStage(technicals)
		_ = g.AddStage(news)
		_ = g.AddEdge(consts.FetchMarketData, consts.ComputeIndicators)
		_ = g.AddEdge(consts.ComputeIndicators, consts.FetchNews)
		_ = g.AddEdge(consts.FetchNews, consts.DraftAnalysis)
		_ = g.SetEntryPoint(consts.FetchMarketData)
	}

	_ = g.AddStage(Rename(consts.DraftAnalysis, c.Analyst))
	_ = g.AddStage(Rename(consts.Review, c.Reviewer))
	_ = g.AddEdge(consts.DraftAnalysis, consts.Review)

	review := NewBranch(ShouldRevise, map[string]string{
		consts.LabelRevision: consts.DraftAnalysis,
		consts.LabelEnd:      END,
	}).OnTake(consts.LabelRevision, NextRevision)
	_ = g.AddBranch(consts.Review, review)

	compileOpts := []Option{
		WithName(consts.GraphName),
		WithFinalizer(FinalizeReport),
		WithStageTimeout(cfg.StageTimeout()),
		WithMaxSteps(cfg.MaxRecurLimit),
	}
	if cfg.HaltOnFatal {
		compileOpts = append(compileOpts, WithFatalPredicate(NoMarketData))
	}
	return g.Compile(append(compileOpts, opts...)...)
}
