package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/agents/agentstest"
	"github.com/dyike/CortexResearch/internal/logging"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "offline"
	cfg.CacheEnabled = false
	return *cfg
}

func fakeDeps() Deps {
	return Deps{
		Logger: logging.NewNop(),
		Market: &agentstest.MarketProvider{
			Bars:  agentstest.Series(120, agentstest.Uptrend),
			Quote: agentstest.Quote(120),
		},
		News: &agentstest.NewsProvider{Articles: agentstest.Articles(5, "Record revenue.")},
	}
}

func TestBuildEngineOffline(t *testing.T) {
	e, err := BuildEngine(context.Background(), testConfig(t), fakeDeps())
	require.NoError(t, err)
	assert.Equal(t, OfflineModel, e.Model)
	assert.NotZero(t, e.Version)

	state, err := e.Graph.Propagate(context.Background(), "acme", 2)
	require.NoError(t, err)
	assert.Equal(t, "ACME", state.Ticker)
	assert.True(t, state.Approved())
	assert.Equal(t, 0, state.RevisionCount)
	assert.Equal(t, state.Draft, state.FinalReport)
	assert.Equal(t, "BUY", state.Recommendation)
	assert.Len(t, state.News, 5)
	assert.Empty(t, state.Errors)
}

func TestBuildEngineRevisionLoopRunsToCap(t *testing.T) {
	reject := `{"approved": false, "rationale": "1. quantify the downside"}`
	chat := agentstest.NewChatModel(
		"memo v1\nTarget Price: $150", reject,
		"memo v2\nTarget Price: $155", reject,
		"memo v3\nTarget Price: $160", reject,
	)
	deps := fakeDeps()
	deps.ChatModel = chat

	e, err := BuildEngine(context.Background(), testConfig(t), deps)
	require.NoError(t, err)

	state, err := e.Graph.Propagate(context.Background(), "ACME", 2)
	require.NoError(t, err)
	assert.Len(t, chat.Calls(), 6, "three drafts and three reviews")
	assert.Equal(t, 2, state.RevisionCount)
	assert.False(t, state.Approved())
	assert.Equal(t, "memo v3\nTarget Price: $160", state.FinalReport)
	assert.Equal(t, "160", state.TargetPrice)
	thirdDraft := chat.Calls()[4]
	require.Len(t, thirdDraft, 2)
	assert.Contains(t, thirdDraft[1].Content, "quantify the downside")
	assert.Contains(t, thirdDraft[1].Content, "memo v2")
	assert.Contains(t, chat.LastUserMessage(), "memo v3")
}

func TestBuildEngineApprovalShortCircuits(t *testing.T) {
	chat := agentstest.NewChatModel("memo", `{"approved": true, "rationale": "APPROVE: solid"}`)
	deps := fakeDeps()
	deps.ChatModel = chat

	e, err := BuildEngine(context.Background(), testConfig(t), deps)
	require.NoError(t, err)

	state, err := e.Graph.Propagate(context.Background(), "ACME", 1)
	require.NoError(t, err)
	assert.Len(t, chat.Calls(), 2)
	assert.Equal(t, 0, state.RevisionCount)
	assert.True(t, state.Approved())
	assert.Equal(t, "memo", state.FinalReport)
}

func TestBuildEngineDegradedRunStillDrafts(t *testing.T) {
	deps := fakeDeps()
	deps.Market = &agentstest.MarketProvider{HistoryErr: dataflows.ErrNoPriceData}
	deps.News = &agentstest.NewsProvider{Err: errors.New("feed down")}

	e, err := BuildEngine(context.Background(), testConfig(t), deps)
	require.NoError(t, err)

	state, err := e.Graph.Propagate(context.Background(), "ACME", 2)
	require.NoError(t, err)
	assert.Empty(t, state.MarketSnapshot)
	assert.Nil(t, state.Indicators)
	assert.Len(t, state.Errors, 3)
	assert.Equal(t, "HOLD", state.Recommendation)
	assert.Contains(t, state.FinalReport, "Data Gaps")
	assert.True(t, state.Project(0).Degraded)
}

func TestBuildEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarketProvider = "bloomberg"
	_, err := BuildEngine(context.Background(), cfg, Deps{Logger: logging.NewNop()})
	assert.ErrorContains(t, err, "market_provider")
}

func TestRuntimeReloadsOnConfigChange(t *testing.T) {
	dir := t.TempDir()
	initial := testConfig(t)
	mgr, err := config.NewManager(
		config.WithConfigDir(dir),
		config.WithInitialConfig(&initial),
		config.WithDebounce(20*time.Millisecond),
		config.WithLogger(logging.NewNop()),
	)
	require.NoError(t, err)

	topics := make(chan string, 4)
	rt, err := NewRuntime(context.Background(), mgr,
		WithLogger(logging.NewNop()),
		WithNotifier(func(topic, _ string) { topics <- topic }),
		WithBuilder(func(ctx context.Context, cfg config.Config) (*Engine, error) {
			return BuildEngine(ctx, cfg, fakeDeps())
		}),
	)
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "engine.reloaded", <-topics)
	first := rt.Engine()
	require.NotNil(t, first)
	assert.Equal(t, OfflineModel, rt.ModelName())

	state, err := rt.Propagate(context.Background(), "ACME", 1)
	require.NoError(t, err)
	assert.True(t, state.Approved())

	require.NoError(t, rt.UpdateConfigJSON(`{"llm_provider":"offline","news_limit":3,"history_days":90,"max_revisions":1,"market_provider":"yahoo","news_provider":"google"}`))
	select {
	case topic := <-topics:
		assert.Equal(t, "engine.reloaded", topic)
	case <-time.After(2 * time.Second):
		t.Fatal("engine was not rebuilt")
	}
	assert.Greater(t, rt.Engine().Version, first.Version)
	assert.Equal(t, 3, rt.Engine().Config.NewsLimit)
}

func TestRuntimeKeepsEngineWhenRebuildFails(t *testing.T) {
	initial := testConfig(t)
	mgr, err := config.NewManager(config.WithConfigDir(t.TempDir()), config.WithInitialConfig(&initial), config.WithLogger(logging.NewNop()))
	require.NoError(t, err)

	fail := false
	rt, err := NewRuntime(context.Background(), mgr,
		WithLogger(logging.NewNop()),
		WithBuilder(func(ctx context.Context, cfg config.Config) (*Engine, error) {
			if fail {
				return nil, errors.New("provider unavailable")
			}
			return BuildEngine(ctx, cfg, fakeDeps())
		}),
	)
	require.NoError(t, err)
	defer rt.Close()

	before := rt.Engine()
	fail = true
	assert.Error(t, rt.reload(context.Background(), mgr.Get()))
	assert.Same(t, before, rt.Engine())
}
