package analysts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/internal/agents/agentstest"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

func TestMarketDataStage(t *testing.T) {
	provider := &agentstest.MarketProvider{
		Bars:  agentstest.Series(120, agentstest.Uptrend),
		Quote: agentstest.Quote(123.456),
	}
	stage := NewMarketDataStage(provider, 180)
	assert.Equal(t, consts.FetchMarketData, stage.Name())

	state := models.NewResearchState("ACME", 2)
	update, err := stage.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Len(t, update.PriceSeries, 120)
	assert.Nil(t, update.Errors)
	snap := update.MarketSnapshot
	assert.Equal(t, "ACME", snap[models.SnapTicker])
	assert.Equal(t, 123.46, snap[models.SnapCurrentPrice])
	assert.Equal(t, int64(250_000_000_000), snap[models.SnapMarketCap])
	assert.Equal(t, 28.4, snap[models.SnapPERatio])
	assert.Equal(t, "Acme Corp", snap[models.SnapName])
	assert.Equal(t, "fake", snap[models.SnapDataSource])
	assert.Equal(t, 120, snap[models.SnapHistoryDataDays])
	assert.IsType(t, float64(0), snap[models.SnapVolatility30d])
	assert.Greater(t, snap[models.SnapVolatility30d].(float64), 0.0)
}

func TestMarketDataStageHistoryFailure(t *testing.T) {
	provider := &agentstest.MarketProvider{HistoryErr: errors.New("boom")}
	state := models.NewResearchState("ACME", 2)
	state.Errors = []string{"earlier"}

	update, err := NewMarketDataStage(provider, 0).Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, update.PriceSeries)
	assert.Nil(t, update.MarketSnapshot)
	assert.Equal(t, []string{"earlier", "No price data available for ticker: ACME (boom)"}, update.Errors)

	provider = &agentstest.MarketProvider{}
	update, err = NewMarketDataStage(provider, 0).Run(context.Background(), models.NewResearchState("ACME", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"No price data available for ticker: ACME"}, update.Errors)
}

func TestMarketDataStageQuoteFailureFallsBackToHistory(t *testing.T) {
	provider := &agentstest.MarketProvider{
		Bars:     agentstest.Series(30, func(i int) float64 { return 50 + float64(i) }),
		QuoteErr: errors.New("quote down"),
	}
	update, err := NewMarketDataStage(provider, 30).Run(context.Background(), models.NewResearchState("ACME", 2))
	require.NoError(t, err)

	require.Len(t, update.Errors, 1)
	assert.Contains(t, update.Errors[0], "quote unavailable for ACME")
	snap := update.MarketSnapshot
	assert.Equal(t, 79.0, snap[models.SnapCurrentPrice])
	assert.Equal(t, 79.0, snap[models.SnapFiftyTwoWeekHi])
	assert.Equal(t, 50.0, snap[models.SnapFiftyTwoWeekLo])
	assert.Equal(t, "N/A", snap[models.SnapVolatility30d], "30 closes give only 29 returns")
	assert.NotContains(t, snap, models.SnapPERatio)
}

func TestMarketDataStageHistoryWindow(t *testing.T) {
	var gotStart, gotEnd time.Time
	provider := &windowProvider{MarketProvider: agentstest.MarketProvider{Bars: agentstest.Series(5, agentstest.Uptrend)}}
	provider.record = func(start, end time.Time) { gotStart, gotEnd = start, end }

	stage := NewMarketDataStage(provider, 180)
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	stage.now = func() time.Time { return now }

	_, err := stage.Run(context.Background(), models.NewResearchState("ACME", 2))
	require.NoError(t, err)
	assert.Equal(t, now, gotEnd)
	assert.Equal(t, now.AddDate(0, 0, -180), gotStart)
}

type windowProvider struct {
	agentstest.MarketProvider
	record func(start, end time.Time)
}

func (p *windowProvider) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]*dataflows.MarketData, error) {
	p.record(start, end)
	return p.MarketProvider.GetHistoricalData(ctx, symbol, start, end)
}

type fundamentalsSource struct {
	f   *dataflows.Fundamentals
	err error
}

func (s fundamentalsSource) GetFundamentals(context.Context, string) (*dataflows.Fundamentals, error) {
	return s.f, s.err
}

func TestMarketDataStageFundamentals(t *testing.T) {
	provider := &agentstest.MarketProvider{
		Bars:  agentstest.Series(120, agentstest.Uptrend),
		Quote: agentstest.Quote(120),
	}
	growth, roe := 12.3456, 31.2
	stage := NewMarketDataStage(provider, 180).WithFundamentals(fundamentalsSource{
		f: &dataflows.Fundamentals{RevenueGrowth: &growth, ReturnOnEquity: &roe},
	})

	update, err := stage.Run(context.Background(), models.NewResearchState("ACME", 2))
	require.NoError(t, err)
	snap := update.MarketSnapshot
	assert.Equal(t, 12.35, snap[models.SnapRevenueGrowth])
	assert.Equal(t, 31.2, snap[models.SnapReturnOnEquity])
	assert.NotContains(t, snap, models.SnapDebtToEquity)
	assert.Nil(t, provider.Quote.Fundamentals.RevenueGrowth, "the provider quote is not modified")
	assert.Empty(t, update.Errors)

	stage = NewMarketDataStage(provider, 180).WithFundamentals(fundamentalsSource{err: errors.New("429")})
	update, err = stage.Run(context.Background(), models.NewResearchState("ACME", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"fundamentals unavailable for ACME: 429"}, update.Errors)
	assert.NotContains(t, update.MarketSnapshot, models.SnapRevenueGrowth)
}
