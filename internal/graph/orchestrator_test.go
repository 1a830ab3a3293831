package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

type fakePipeline struct {
	market, technicals, news, drafts, reviews atomic.Int32

	// approveAt is the 1-based review that approves; 0 never approves.
	approveAt  int32
	marketErr  error
	emptyFetch bool
}

func (f *fakePipeline) collaborators() Collaborators {
	return Collaborators{
		MarketData: NewStage("market", func(_ context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			f.market.Add(1)
			if f.marketErr != nil {
				return nil, f.marketErr
			}
			if f.emptyFetch {
				return models.ErrorUpdate(s, "No price data available for ticker: "+s.Ticker), nil
			}
			return &models.StateUpdate{
				MarketSnapshot: map[string]any{models.SnapTicker: s.Ticker, models.SnapCurrentPrice: 42.0},
				PriceSeries:    []models.Bar{{Close: 41}, {Close: 42}},
			}, nil
		}),
		Technicals: NewStage("technicals", func(_ context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			f.technicals.Add(1)
			if len(s.PriceSeries) == 0 {
				return models.ErrorUpdate(s, "No price history found for technical analysis"), nil
			}
			r := models.NewIndicatorReport()
			r.Overall = models.OverallSignal{Signal: "Buy", Confidence: 70}
			return &models.StateUpdate{Indicators: r, Errors: models.AppendErrors(s, "technicals: partial")}, nil
		}),
		News: NewStage("news", func(_ context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			f.news.Add(1)
			return &models.StateUpdate{
				News:   []models.NewsItem{{Title: s.Ticker + " rallies"}},
				Errors: models.AppendErrors(s, "news: one source failed"),
			}, nil
		}),
		Analyst: NewStage("analyst", func(_ context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			n := f.drafts.Add(1)
			return &models.StateUpdate{
				Draft:          models.Ptr(fmt.Sprintf("draft %d", n)),
				Recommendation: models.Ptr("BUY"),
			}, nil
		}),
		Reviewer: NewStage("reviewer", func(_ context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			n := f.reviews.Add(1)
			approved := f.approveAt > 0 && n >= f.approveAt
			return &models.StateUpdate{Review: &models.ReviewVerdict{Approved: approved, Rationale: "looked"}}, nil
		}),
	}
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.StageTimeoutSeconds = 5
	cfg.RunTimeoutSeconds = 0
	return cfg
}

func runPipeline(t *testing.T, cfg *config.Config, f *fakePipeline, ticker string, revisionCap int) *models.ResearchState {
	t.Helper()
	r, err := NewResearchOrchestrator(cfg, f.collaborators())
	require.NoError(t, err)
	out, err := r.Invoke(context.Background(), models.NewResearchState(ticker, revisionCap))
	require.NoError(t, err)
	return out
}

func TestScenarioCapTwoNeverApproved(t *testing.T) {
	f := &fakePipeline{}
	out := runPipeline(t, testConfig(), f, "ACME", 2)

	assert.EqualValues(t, 1, f.market.Load())
	assert.EqualValues(t, 3, f.drafts.Load())
	assert.EqualValues(t, 3, f.reviews.Load())
	assert.Equal(t, 2, out.RevisionCount)
	assert.False(t, out.Approved())
	assert.Equal(t, "draft 3", out.FinalReport)
}

func TestScenarioCapOneApprovedFirst(t *testing.T) {
	f := &fakePipeline{approveAt: 1}
	out := runPipeline(t, testConfig(), f, "ACME", 1)

	assert.EqualValues(t, 1, f.drafts.Load())
	assert.EqualValues(t, 1, f.reviews.Load())
	assert.Equal(t, 0, out.RevisionCount)
	assert.True(t, out.Approved())
	assert.Equal(t, "draft 1", out.FinalReport)
}

func TestLoopTerminationBound(t *testing.T) {
	for revisionCap := 0; revisionCap <= 5; revisionCap++ {
		t.Run(fmt.Sprintf("cap=%d", revisionCap), func(t *testing.T) {
			f := &fakePipeline{}
			out := runPipeline(t, testConfig(), f, "ACME", revisionCap)
			assert.EqualValues(t, revisionCap+1, f.reviews.Load())
			assert.Equal(t, revisionCap, out.RevisionCount)
			assert.LessOrEqual(t, out.RevisionCount, out.RevisionCap)
		})
	}
}

func TestApprovalShortCircuit(t *testing.T) {
	for k := int32(1); k <= 4; k++ {
		t.Run(fmt.Sprintf("approve=%d", k), func(t *testing.T) {
			f := &fakePipeline{approveAt: k}
			out := runPipeline(t, testConfig(), f, "ACME", 5)
			assert.Equal(t, k, f.reviews.Load())
			assert.Equal(t, int(k-1), out.RevisionCount)
			assert.Equal(t, fmt.Sprintf("draft %d", k), out.FinalReport)
		})
	}
}

func TestShouldReviseIsIdempotent(t *testing.T) {
	cases := []*models.ResearchState{
		{RevisionCount: 0, RevisionCap: 2},
		{RevisionCount: 2, RevisionCap: 2},
		{RevisionCount: 0, RevisionCap: 2, Review: &models.ReviewVerdict{Approved: true}},
		{RevisionCount: 1, RevisionCap: 0},
	}
	want := []string{consts.LabelRevision, consts.LabelEnd, consts.LabelEnd, consts.LabelEnd}
	for i, s := range cases {
		before := s.Clone()
		first, err := ShouldRevise(context.Background(), s)
		require.NoError(t, err)
		second, err := ShouldRevise(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, want[i], first)
		assert.Equal(t, first, second)
		assert.Equal(t, before, s)
	}
}

func TestDegradedContinue(t *testing.T) {
	f := &fakePipeline{marketErr: errors.New("yahoo: 503")}
	out := runPipeline(t, testConfig(), f, "ACME", 1)

	assert.Contains(t, out.Errors, "fetch_market_data: yahoo: 503")
	assert.Contains(t, out.Errors, "No price history found for technical analysis")
	assert.EqualValues(t, 1, f.news.Load())
	assert.EqualValues(t, 2, f.drafts.Load())
	assert.Equal(t, "draft 2", out.FinalReport)
	assert.True(t, out.Project(0).Degraded)
}

func TestHaltOnFatal(t *testing.T) {
	cfg := testConfig()
	cfg.HaltOnFatal = true
	f := &fakePipeline{emptyFetch: true}
	out := runPipeline(t, cfg, f, "ACME", 2)

	assert.Equal(t, []string{
		"No price data available for ticker: ACME",
		"pipeline halted after fetch_market_data",
	}, out.Errors)
	assert.Zero(t, f.technicals.Load())
	assert.Zero(t, f.drafts.Load())
	assert.Empty(t, out.FinalReport)
}

func TestHaltOnFatalInParallelTopology(t *testing.T) {
	cfg := testConfig()
	cfg.HaltOnFatal = true
	cfg.ParallelFetch = true
	f := &fakePipeline{emptyFetch: true}
	out := runPipeline(t, cfg, f, "ACME", 2)

	assert.Contains(t, out.Errors, "pipeline halted after gather_data")
	assert.Zero(t, f.drafts.Load())
}

func TestParallelFetchMatchesSequential(t *testing.T) {
	seqCfg := testConfig()
	parCfg := testConfig()
	parCfg.ParallelFetch = true

	seq := runPipeline(t, seqCfg, &fakePipeline{approveAt: 2}, "ACME", 3)
	par := runPipeline(t, parCfg, &fakePipeline{approveAt: 2}, "ACME", 3)

	assert.Equal(t, seq, par)
	assert.Equal(t, []string{"technicals: partial", "news: one source failed"}, par.Errors)
}

func TestParallelFetchTopology(t *testing.T) {
	cfg := testConfig()
	cfg.ParallelFetch = true
	r, err := NewResearchOrchestrator(cfg, (&fakePipeline{}).collaborators())
	require.NoError(t, err)
	assert.Equal(t, []string{consts.GatherData, consts.DraftAnalysis, consts.Review}, r.Stages())
}

func TestParallelRunsBranchesConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func(name string) Stage {
		return NewStage(name, func(ctx context.Context, s *models.ResearchState) (*models.StateUpdate, error) {
			wg.Done()
			wg.Wait()
			return models.ErrorUpdate(s, name+" done"), nil
		})
	}
	p := Parallel("both", barrier("left"), barrier("right"))

	done := make(chan *models.StateUpdate, 1)
	go func() {
		u, _ := p.Run(context.Background(), models.NewResearchState("ACME", 0))
		done <- u
	}()
	select {
	case u := <-done:
		assert.Equal(t, []string{"left done", "right done"}, u.Errors)
	case <-time.After(2 * time.Second):
		t.Fatal("parallel branches did not run concurrently")
	}
}

func TestParallelBranchErrorDoesNotCancelSiblings(t *testing.T) {
	p := Parallel("both",
		NewStage("bad", func(context.Context, *models.ResearchState) (*models.StateUpdate, error) {
			return nil, errors.New("bad input")
		}),
		NewStage("good", func(ctx context.Context, _ *models.ResearchState) (*models.StateUpdate, error) {
			time.Sleep(10 * time.Millisecond)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return &models.StateUpdate{Draft: models.Ptr("fine")}, nil
		}),
	)
	s := models.NewResearchState("ACME", 0)
	s.Errors = []string{"earlier"}
	u, err := p.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "fine", *u.Draft)
	assert.Equal(t, []string{"earlier", "bad: bad input"}, u.Errors)
}

func TestConcurrentInvokesAreIsolated(t *testing.T) {
	r, err := NewResearchOrchestrator(testConfig(), (&fakePipeline{}).collaborators())
	require.NoError(t, err)

	tickers := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"}
	results := make([]*models.ResearchState, len(tickers))
	var wg sync.WaitGroup
	for i, tk := range tickers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Invoke(context.Background(), models.NewResearchState(tk, 1))
		}()
	}
	wg.Wait()

	for i, tk := range tickers {
		require.NotNil(t, results[i])
		assert.Equal(t, tk, results[i].Ticker)
		assert.Equal(t, tk+" rallies", results[i].News[0].Title)
		assert.Equal(t, 1, results[i].RevisionCount)
	}
}

func TestLargeRevisionCapEndsAtCap(t *testing.T) {
	f := &fakePipeline{}
	r, err := NewResearchOrchestrator(config.Defaults(), f.collaborators())
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), models.NewResearchState("ACME", 60))
	require.NoError(t, err)
	assert.Equal(t, 60, out.RevisionCount)
	assert.EqualValues(t, 61, f.reviews.Load())
	assert.False(t, out.Approved())
	assert.Equal(t, "draft 61", out.FinalReport)
}

func TestStepLimitNeverUndercutsRevisionCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRecurLimit = 6
	f := &fakePipeline{}
	out := runPipeline(t, cfg, f, "ACME", 10)

	assert.Equal(t, 10, out.RevisionCount)
	assert.Equal(t, "draft 11", out.FinalReport)
}

func TestMissingCollaborator(t *testing.T) {
	c := (&fakePipeline{}).collaborators()
	c.Reviewer = nil
	_, err := NewResearchOrchestrator(testConfig(), c)
	assert.ErrorContains(t, err, consts.Review)
}

func TestPropagateEmitsEvents(t *testing.T) {
	g, err := NewResearchGraph(testConfig(), (&fakePipeline{approveAt: 1}).collaborators(), nil)
	require.NoError(t, err)

	events := make(chan *models.StageEvent, 64)
	ctx := ContextWithRunID(context.Background(), "run-1")
	out, err := g.Propagate(ctx, " acme ", 1, WithHooks(NewLoggerCallback(nil, events)))
	require.NoError(t, err)
	close(events)

	assert.Equal(t, "ACME", out.Ticker)
	var types []string
	var last *models.StageEvent
	for ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
		types = append(types, ev.Type)
		last = ev
	}
	require.NotNil(t, last)
	assert.Equal(t, models.EventFinish, last.Type)
	assert.Equal(t, "draft 1", last.Report.FinalReport)
	assert.Contains(t, types, models.EventRoute)
	assert.Equal(t, models.EventStageStart, types[0])
}

func TestPropagateRejectsBadTicker(t *testing.T) {
	g, err := NewResearchGraph(testConfig(), (&fakePipeline{}).collaborators(), nil)
	require.NoError(t, err)
	_, err = g.Propagate(context.Background(), "", 1)
	assert.Error(t, err)
}
