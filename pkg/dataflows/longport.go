package dataflows

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"
)

type LongportConfig struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

// LongportClient serves quotes and daily candlesticks from Longport, which
// covers the HK and CN markets as well as US listings.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
	cache    Cache
}

func NewLongportClient(cfg LongportConfig, cache Cache) (*LongportClient, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: longport API credentials missing", ErrNotConfigured)
	}
	if cache == nil {
		cache = NopCache{}
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken))
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	return &LongportClient{quoteCtx: quoteContext, cache: cache}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

func (lpc *LongportClient) GetStaticInfo(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	return lpc.quoteCtx.StaticInfo(ctx, symbols)
}

func (lpc *LongportClient) GetSticksWithDay(ctx context.Context, symbol string, count int) ([]*quote.Candlestick, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	return lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
}

// GetQuote builds a quote from the static info and the latest daily bar.
func (lpc *LongportClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached Quote
	if lpc.cache.Get(ctx, "longport", "quote", symbol, &cached) {
		return &cached, nil
	}

	q := &Quote{Symbol: symbol, Source: lpc.Name()}
	if infos, err := lpc.GetStaticInfo(ctx, []string{symbol}); err == nil && len(infos) > 0 && infos[0] != nil {
		q.Name = infos[0].NameEn
		q.Exchange = infos[0].Exchange
		q.Currency = infos[0].Currency
	}

	sticks, err := lpc.GetSticksWithDay(ctx, symbol, 260)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}
	bars := sticksToMarketData(symbol, sticks)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for ticker: %s", ErrNoPriceData, symbol)
	}
	last := bars[len(bars)-1]
	q.Price, q.Open, q.DayHigh, q.DayLow, q.Volume = last.Close, last.Open, last.High, last.Low, last.Volume

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
	}
	q.FiftyTwoWeekHigh = slices.Max(highs)
	q.FiftyTwoWeekLow = slices.Min(lows)

	_ = lpc.cache.Set(ctx, "longport", "quote", symbol, q)
	return q, nil
}

// GetHistoricalData returns the daily bars falling between start and end.
func (lpc *LongportClient) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]*MarketData, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	key := map[string]any{"symbol": symbol, "start": start.Format("2006-01-02"), "end": end.Format("2006-01-02")}
	var cached []*MarketData
	if lpc.cache.Get(ctx, "longport", "historical", key, &cached) {
		return cached, nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	sticks, err := lpc.GetSticksWithDay(ctx, symbol, min(max(days, 1), 1000))
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}
	var result []*MarketData
	for _, b := range sticksToMarketData(symbol, sticks) {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		result = append(result, b)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w for ticker: %s", ErrNoPriceData, symbol)
	}
	_ = lpc.cache.Set(ctx, "longport", "historical", key, result)
	return result, nil
}

func sticksToMarketData(symbol string, sticks []*quote.Candlestick) []*MarketData {
	out := make([]*MarketData, 0, len(sticks))
	for _, s := range sticks {
		if s == nil || s.Close == nil {
			continue
		}
		out = append(out, &MarketData{
			Symbol:   symbol,
			Date:     time.Unix(s.Timestamp, 0).UTC(),
			Open:     decOrZero(s.Open),
			High:     decOrZero(s.High),
			Low:      decOrZero(s.Low),
			Close:    *s.Close,
			AdjClose: *s.Close,
			Volume:   s.Volume,
		})
	}
	return out
}

func decOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
