package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MarketDataProvider serves quotes and daily price history.
type MarketDataProvider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]*MarketData, error)
}

// NewsProvider searches recent articles about a symbol.
type NewsProvider interface {
	Name() string
	SearchNews(ctx context.Context, symbol string, limit int) ([]*NewsArticle, error)
}

// FundamentalsProvider reports the statement ratios a quote lacks.
type FundamentalsProvider interface {
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
}

// NewMarketDataProvider returns the provider selected by cfg.MarketProvider.
func NewMarketDataProvider(cfg *Config, cache Cache) (MarketDataProvider, error) {
	switch strings.ToLower(cfg.MarketProvider) {
	case "", "yahoo":
		return NewYahooFinanceClient(cache), nil
	case "longport":
		return NewLongportClient(LongportConfig{
			AppKey:      cfg.LongportAppKey,
			AppSecret:   cfg.LongportAppSecret,
			AccessToken: cfg.LongportAccessToken,
		}, cache)
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.MarketProvider)
	}
}

// NewNewsProvider returns the provider selected by cfg.NewsProvider.
func NewNewsProvider(cfg *Config, cache Cache) (NewsProvider, error) {
	switch strings.ToLower(cfg.NewsProvider) {
	case "", "google":
		return NewGoogleNewsClient(cache), nil
	case "finnhub":
		return NewFinnhubClient(cfg.FinnhubAPIKey, cache)
	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.NewsProvider)
	}
}

// HistoryWindow returns the [start, end] range covering the last days.
func HistoryWindow(now time.Time, days int) (time.Time, time.Time) {
	return now.AddDate(0, 0, -days), now
}
