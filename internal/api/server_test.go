package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/agents/agentstest"
	"github.com/dyike/CortexResearch/internal/agents/analysts"
	"github.com/dyike/CortexResearch/internal/agents/managers"
	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/internal/logging"
	"github.com/dyike/CortexResearch/internal/metrics"
	"github.com/dyike/CortexResearch/models"
)

type offlineEngine struct {
	*graph.ResearchGraph
}

func (offlineEngine) ModelName() string { return "offline" }

func newOfflineEngine(t *testing.T, opts ...graph.Option) Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.RunTimeoutSeconds = 0
	c := graph.Collaborators{
		MarketData: analysts.NewMarketDataStage(&agentstest.MarketProvider{
			Bars:  agentstest.Series(120, agentstest.Uptrend),
			Quote: agentstest.Quote(120),
		}, 180),
		Technicals: analysts.NewTechnicalsStage(),
		News:       analysts.NewNewsStage(&agentstest.NewsProvider{Articles: agentstest.Articles(5, "Strong quarter.")}, 5),
		Analyst:    analysts.NewAnalystStage(analysts.NewTemplateDrafter()),
		Reviewer:   managers.NewRiskManagerStage(managers.NewRuleReviewer()),
	}
	g, err := graph.NewResearchGraph(cfg, c, logging.NewNop(), opts...)
	require.NoError(t, err)
	return offlineEngine{g}
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewServer(newOfflineEngine(t), WithLogger(logging.NewNop())).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"active","model":"offline"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	h := NewServer(newOfflineEngine(t), WithLogger(logging.NewNop())).Handler()
	rec := post(t, h, "/analyze", `{"ticker":"acme"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "price_history")
	assert.NotContains(t, raw, "PriceSeries")

	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "ACME", report.Ticker)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.News, ResponseNewsLimit)
	assert.NotEmpty(t, report.AnalystDraft)
	assert.Equal(t, report.AnalystDraft, report.FinalReport)
	assert.True(t, report.Approved)
	assert.Contains(t, report.Critique, "APPROVE")
	assert.Equal(t, 2, report.RevisionCap)
	assert.Equal(t, 0, report.RevisionCount)
	assert.Equal(t, "BUY", report.Recommendation)
	assert.Equal(t, "132.00", report.TargetPrice)
	assert.NotNil(t, report.Technicals)
	assert.Equal(t, 120.0, report.MarketData["current_price"])
	assert.False(t, report.Degraded)
}

func TestAnalyzeValidation(t *testing.T) {
	h := NewServer(newOfflineEngine(t), WithLogger(logging.NewNop())).Handler()
	cases := map[string]string{
		"bad ticker":     `{"ticker":"not a ticker!"}`,
		"empty ticker":   `{"ticker":""}`,
		"zero revisions": `{"ticker":"ACME","max_revisions":0}`,
		"too many":       `{"ticker":"ACME","max_revisions":6}`,
		"malformed json": `{"ticker":`,
		"wrong type":     `{"ticker":"ACME","max_revisions":"two"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, "/analyze", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := post(t, h, "/analyze", `{"ticker":"ACME","max_revisions":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingEngine struct{ err error }

func (e failingEngine) Propagate(_ context.Context, ticker string, revisionCap int, _ ...graph.Option) (*models.ResearchState, error) {
	s := models.NewResearchState(ticker, revisionCap)
	s.Errors = []string{"fetch_market_data: timed out after 1s"}
	return s, e.err
}

func (failingEngine) ModelName() string { return "broken" }

func TestAnalyzeRunErrorReturnsPartialReport(t *testing.T) {
	h := NewServer(failingEngine{err: graph.ErrStepLimit}, WithLogger(logging.NewNop())).Handler()
	rec := post(t, h, "/analyze", `{"ticker":"ACME"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "step limit")
	require.NotNil(t, resp.Report)
	assert.True(t, resp.Report.Degraded)

	h = NewServer(failingEngine{err: context.DeadlineExceeded}, WithLogger(logging.NewNop())).Handler()
	rec = post(t, h, "/analyze", `{"ticker":"ACME"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	h = NewServer(failingEngine{err: errors.New("boom")}, WithLogger(logging.NewNop())).Handler()
	rec = post(t, h, "/analyze", `{"ticker":"ACME"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnalyzeStream(t *testing.T) {
	srv := httptest.NewServer(NewServer(newOfflineEngine(t), WithLogger(logging.NewNop())).Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/analyze/stream", "application/json", strings.NewReader(`{"ticker":"ACME","max_revisions":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []models.StageEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.StageEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, events)

	first, last := events[0], events[len(events)-1]
	assert.Equal(t, models.EventStageStart, first.Type)
	assert.Equal(t, "fetch_market_data", first.Stage)
	assert.Equal(t, models.EventFinish, last.Type)
	require.NotNil(t, last.Report)
	assert.Equal(t, "ACME", last.Report.Ticker)
	assert.LessOrEqual(t, len(last.Report.News), ResponseNewsLimit)
	assert.Equal(t, first.RunID, last.RunID)

	var stages []string
	for _, ev := range events {
		if ev.Type == models.EventStageEnd {
			stages = append(stages, ev.Stage)
		}
	}
	assert.Equal(t, []string{"fetch_market_data", "compute_indicators", "fetch_news", "draft_analysis", "review"}, stages)
}

func TestAnalyzeStreamValidates(t *testing.T) {
	h := NewServer(newOfflineEngine(t), WithLogger(logging.NewNop())).Handler()
	rec := post(t, h, "/analyze/stream", `{"ticker":"ACME","max_revisions":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := metrics.NewHook(reg)
	require.NoError(t, err)
	h := NewServer(newOfflineEngine(t, graph.WithHooks(hook)), WithLogger(logging.NewNop()), WithMetrics(reg)).Handler()

	require.Equal(t, http.StatusOK, post(t, h, "/analyze", `{"ticker":"ACME"}`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cortex_runs_total{outcome="completed"} 1`)

	rec = httptest.NewRecorder()
	NewServer(newOfflineEngine(t)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
