package analysts

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

// MarketDataStage loads the daily price history and the latest quote of
// the ticker. The history stays internal to the run; the snapshot is what
// reports and prompts see.
type MarketDataStage struct {
	provider     dataflows.MarketDataProvider
	fundamentals dataflows.FundamentalsProvider
	historyDays  int
	now          func() time.Time
}

func NewMarketDataStage(provider dataflows.MarketDataProvider, historyDays int) *MarketDataStage {
	if historyDays <= 0 {
		historyDays = 180
	}
	return &MarketDataStage{provider: provider, historyDays: historyDays, now: time.Now}
}

// WithFundamentals fills the statement ratios the quote lacks from p.
func (s *MarketDataStage) WithFundamentals(p dataflows.FundamentalsProvider) *MarketDataStage {
	s.fundamentals = p
	return s
}

func (s *MarketDataStage) Name() string { return consts.FetchMarketData }

func (s *MarketDataStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	ticker := state.Ticker
	start, end := dataflows.HistoryWindow(s.now(), s.historyDays)

	data, err := s.provider.GetHistoricalData(ctx, ticker, start, end)
	bars := dataflows.ToBars(data)
	if err != nil || len(bars) == 0 {
		msg := fmt.Sprintf("No price data available for ticker: %s", ticker)
		if err != nil {
			msg = fmt.Sprintf("%s (%v)", msg, err)
		}
		return models.ErrorUpdate(state, msg), nil
	}

	var errs []string
	q, err := s.provider.GetQuote(ctx, ticker)
	if err != nil {
		errs = append(errs, fmt.Sprintf("quote unavailable for %s, using last close: %v", ticker, err))
		q = nil
	}
	if q != nil && s.fundamentals != nil {
		f, err := s.fundamentals.GetFundamentals(ctx, ticker)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("fundamentals unavailable for %s: %v", ticker, err))
		case f != nil:
			enriched := *q
			enriched.Fundamentals = enriched.Fundamentals.Fill(*f)
			q = &enriched
		}
	}

	update := &models.StateUpdate{
		MarketSnapshot: BuildSnapshot(ticker, s.provider.Name(), q, bars),
		PriceSeries:    bars,
	}
	if len(errs) > 0 {
		update.Errors = models.AppendErrors(state, errs...)
	}
	return update, nil
}

// BuildSnapshot assembles the market snapshot from an optional quote and a
// non-empty price series. Fundamentals the provider did not report are
// left out.
func BuildSnapshot(ticker, source string, q *dataflows.Quote, bars []models.Bar) map[string]any {
	closes := models.Closes(bars)
	price := closes[len(closes)-1]
	if q != nil && q.Price.IsPositive() {
		price = q.Price.InexactFloat64()
	}

	snap := map[string]any{
		models.SnapTicker:          ticker,
		models.SnapCurrentPrice:    dataflows.Round2(price),
		models.SnapDataSource:      source,
		models.SnapHistoryDataDays: len(bars),
	}
	if vol, ok := dataflows.Volatility30d(closes); ok {
		snap[models.SnapVolatility30d] = vol
	} else {
		snap[models.SnapVolatility30d] = "N/A"
	}

	if q == nil {
		hi, lo := closes[0], closes[0]
		for _, c := range closes {
			hi, lo = max(hi, c), min(lo, c)
		}
		snap[models.SnapFiftyTwoWeekHi] = dataflows.Round2(hi)
		snap[models.SnapFiftyTwoWeekLo] = dataflows.Round2(lo)
		snap[models.SnapVolume] = bars[len(bars)-1].Volume
		return snap
	}

	setString := func(key, v string) {
		if v != "" {
			snap[key] = v
		}
	}
	setFloat := func(key string, v float64) {
		if v != 0 {
			snap[key] = dataflows.Round2(v)
		}
	}
	setString(models.SnapName, q.Name)
	setString(models.SnapExchange, q.Exchange)
	setString(models.SnapCurrency, q.Currency)
	setFloat(models.SnapFiftyTwoWeekHi, q.FiftyTwoWeekHigh)
	setFloat(models.SnapFiftyTwoWeekLo, q.FiftyTwoWeekLow)
	setFloat(models.SnapPERatio, q.Fundamentals.TrailingPE)
	setFloat(models.SnapForwardPE, q.Fundamentals.ForwardPE)
	setFloat(models.SnapPriceToBook, q.Fundamentals.PriceToBook)
	setFloat(models.SnapEPS, q.Fundamentals.EPS)
	setRatio := func(key string, v *float64) {
		if v != nil {
			snap[key] = dataflows.Round2(*v)
		}
	}
	setRatio(models.SnapRevenueGrowth, q.Fundamentals.RevenueGrowth)
	setRatio(models.SnapProfitMargins, q.Fundamentals.ProfitMargins)
	setRatio(models.SnapDebtToEquity, q.Fundamentals.DebtToEquity)
	setRatio(models.SnapFreeCashFlow, q.Fundamentals.FreeCashFlow)
	setRatio(models.SnapReturnOnEquity, q.Fundamentals.ReturnOnEquity)
	if q.Fundamentals.MarketCap > 0 {
		snap[models.SnapMarketCap] = q.Fundamentals.MarketCap
	}
	if q.Volume > 0 {
		snap[models.SnapVolume] = q.Volume
	}
	return snap
}
