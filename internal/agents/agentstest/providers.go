package agentstest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexResearch/pkg/dataflows"
)

// MarketProvider serves a fixed quote and price history.
type MarketProvider struct {
	Bars       []*dataflows.MarketData
	Quote      *dataflows.Quote
	HistoryErr error
	QuoteErr   error

	HistoryCalls atomic.Int32
}

var _ dataflows.MarketDataProvider = (*MarketProvider)(nil)

func (p *MarketProvider) Name() string { return "fake" }

func (p *MarketProvider) GetQuote(_ context.Context, symbol string) (*dataflows.Quote, error) {
	if p.QuoteErr != nil {
		return nil, p.QuoteErr
	}
	if p.Quote == nil {
		return nil, dataflows.ErrNoPriceData
	}
	q := *p.Quote
	q.Symbol = symbol
	return &q, nil
}

func (p *MarketProvider) GetHistoricalData(ctx context.Context, _ string, _, _ time.Time) ([]*dataflows.MarketData, error) {
	p.HistoryCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.HistoryErr != nil {
		return nil, p.HistoryErr
	}
	return p.Bars, nil
}

// NewsProvider serves fixed articles.
type NewsProvider struct {
	Articles []*dataflows.NewsArticle
	Err      error
}

var _ dataflows.NewsProvider = (*NewsProvider)(nil)

func (p *NewsProvider) Name() string { return "fake" }

func (p *NewsProvider) SearchNews(_ context.Context, _ string, limit int) ([]*dataflows.NewsArticle, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if limit > 0 && len(p.Articles) > limit {
		return p.Articles[:limit], nil
	}
	return p.Articles, nil
}

// Series builds n daily bars whose closes follow fn.
func Series(n int, fn func(i int) float64) []*dataflows.MarketData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*dataflows.MarketData, n)
	for i := range out {
		c := decimal.NewFromFloat(fn(i))
		out[i] = &dataflows.MarketData{
			Symbol: "ACME",
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c.Mul(decimal.NewFromFloat(1.01)),
			Low:    c.Mul(decimal.NewFromFloat(0.99)),
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return out
}

// Uptrend is an accelerating rise, a clear BUY for the indicator set.
func Uptrend(i int) float64 { return 100 + 0.02*float64(i*i) }

// Quote returns a quote with fundamentals for price.
func Quote(price float64) *dataflows.Quote {
	return &dataflows.Quote{
		Name:             "Acme Corp",
		Exchange:         "NasdaqGS",
		Currency:         "USD",
		Price:            decimal.NewFromFloat(price),
		Volume:           2_500_000,
		FiftyTwoWeekHigh: price * 1.2,
		FiftyTwoWeekLow:  price * 0.7,
		Fundamentals: dataflows.Fundamentals{
			MarketCap:   250_000_000_000,
			TrailingPE:  28.4,
			ForwardPE:   24.1,
			PriceToBook: 6.3,
			EPS:         5.12,
		},
		Source: "fake",
	}
}

// Articles returns n articles with distinct titles.
func Articles(n int, summary string) []*dataflows.NewsArticle {
	out := make([]*dataflows.NewsArticle, n)
	for i := range out {
		out[i] = &dataflows.NewsArticle{
			Title:       "ACME headline " + string(rune('A'+i)),
			Content:     summary,
			URL:         "https://news.example.com/" + string(rune('a'+i)),
			Source:      "Example Wire",
			PublishedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		}
	}
	return out
}
