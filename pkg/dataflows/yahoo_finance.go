package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooFinanceClient handles Yahoo Finance data operations
type YahooFinanceClient struct {
	cache Cache
	retry *RetryConfig
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(cache Cache) *YahooFinanceClient {
	if cache == nil {
		cache = NopCache{}
	}
	return &YahooFinanceClient{cache: cache, retry: DefaultRetryConfig()}
}

func (yf *YahooFinanceClient) Name() string { return "yahoo" }

// GetQuote gets the current quote and fundamentals for a symbol
func (yf *YahooFinanceClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached Quote
	if yf.cache.Get(ctx, "yahoo", "quote", symbol, &cached) {
		return &cached, nil
	}

	var result *Quote
	err := WithRetry(ctx, yf.retry, func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		if q == nil {
			return fmt.Errorf("%w for ticker: %s", ErrNoPriceData, symbol)
		}

		result = &Quote{
			Symbol:           symbol,
			Name:             q.ShortName,
			Exchange:         q.FullExchangeName,
			Currency:         q.CurrencyID,
			Price:            decimal.NewFromFloat(q.RegularMarketPrice),
			Open:             decimal.NewFromFloat(q.RegularMarketOpen),
			DayHigh:          decimal.NewFromFloat(q.RegularMarketDayHigh),
			DayLow:           decimal.NewFromFloat(q.RegularMarketDayLow),
			Volume:           int64(q.RegularMarketVolume),
			FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
			FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
			Source:           yf.Name(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// fundamentals are best effort
	if eq, err := equity.Get(symbol); err == nil && eq != nil {
		result.Fundamentals = Fundamentals{
			MarketCap:   eq.MarketCap,
			TrailingPE:  eq.TrailingPE,
			ForwardPE:   eq.ForwardPE,
			PriceToBook: eq.PriceToBook,
			EPS:         eq.EpsTrailingTwelveMonths,
			BookValue:   eq.BookValue,
		}
	}

	_ = yf.cache.Set(ctx, "yahoo", "quote", symbol, result)
	return result, nil
}

// GetHistoricalData gets daily bars between start and end
func (yf *YahooFinanceClient) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]*MarketData, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	key := map[string]any{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached []*MarketData
	if yf.cache.Get(ctx, "yahoo", "historical", key, &cached) {
		return cached, nil
	}

	var result []*MarketData
	err := WithRetry(ctx, yf.retry, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}
		iter := chart.Get(params)

		result = make([]*MarketData, 0)
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &MarketData{
				Symbol:   symbol,
				Date:     time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				AdjClose: bar.AdjClose,
				Volume:   int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w for ticker: %s", ErrNoPriceData, symbol)
	}

	_ = yf.cache.Set(ctx, "yahoo", "historical", key, result)
	return result, nil
}
