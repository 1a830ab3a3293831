package dataflows

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/models"
)

// Config is an alias for the main application config
type Config = config.Config

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrNoPriceData   = errors.New("no price data")
	ErrNotConfigured = errors.New("provider not configured")
)

// MarketData represents one daily price bar
type MarketData struct {
	Symbol   string          `json:"symbol"`
	Date     time.Time       `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close"`
	Volume   int64           `json:"volume"`
}

// Quote is the latest trading snapshot plus the fundamentals the provider
// exposes. Zero fundamentals mean "not reported".
type Quote struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Exchange         string          `json:"exchange"`
	Currency         string          `json:"currency"`
	Price            decimal.Decimal `json:"price"`
	Open             decimal.Decimal `json:"open"`
	DayHigh          decimal.Decimal `json:"day_high"`
	DayLow           decimal.Decimal `json:"day_low"`
	Volume           int64           `json:"volume"`
	FiftyTwoWeekHigh float64         `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64         `json:"fifty_two_week_low"`
	Fundamentals     Fundamentals    `json:"fundamentals"`
	Source           string          `json:"source"`
}

type Fundamentals struct {
	MarketCap   int64   `json:"market_cap"`
	TrailingPE  float64 `json:"pe_ratio"`
	ForwardPE   float64 `json:"forward_pe"`
	PriceToBook float64 `json:"price_to_book"`
	EPS         float64 `json:"eps_ttm"`
	BookValue   float64 `json:"book_value"`

	// statement ratios, nil when the provider does not report them
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty"`
	ProfitMargins  *float64 `json:"profit_margins,omitempty"`
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty"`
	FreeCashFlow   *float64 `json:"free_cash_flow,omitempty"`
	ReturnOnEquity *float64 `json:"return_on_equity,omitempty"`
}

// Fill copies the statement ratios f lacks from o.
func (f Fundamentals) Fill(o Fundamentals) Fundamentals {
	pick := func(a, b *float64) *float64 {
		if a != nil {
			return a
		}
		return b
	}
	f.RevenueGrowth = pick(f.RevenueGrowth, o.RevenueGrowth)
	f.ProfitMargins = pick(f.ProfitMargins, o.ProfitMargins)
	f.DebtToEquity = pick(f.DebtToEquity, o.DebtToEquity)
	f.FreeCashFlow = pick(f.FreeCashFlow, o.FreeCashFlow)
	f.ReturnOnEquity = pick(f.ReturnOnEquity, o.ReturnOnEquity)
	return f
}

// NewsArticle represents a news article
type NewsArticle struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	PublishedAt time.Time         `json:"published_at"`
	Keywords    []string          `json:"keywords,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ToBar converts a provider bar into the pipeline's float representation.
func (m *MarketData) ToBar() models.Bar {
	return models.Bar{
		Date:   m.Date,
		Open:   m.Open.InexactFloat64(),
		High:   m.High.InexactFloat64(),
		Low:    m.Low.InexactFloat64(),
		Close:  m.Close.InexactFloat64(),
		Volume: m.Volume,
	}
}

func ToBars(data []*MarketData) []models.Bar {
	bars := make([]models.Bar, 0, len(data))
	for _, d := range data {
		if d == nil || d.Close.IsZero() {
			continue
		}
		bars = append(bars, d.ToBar())
	}
	return bars
}

// ToNewsItem converts an article, truncating the summary to maxSummary
// runes when maxSummary > 0.
func (a *NewsArticle) ToNewsItem(maxSummary int) models.NewsItem {
	return models.NewsItem{
		Title:       a.Title,
		URL:         a.URL,
		Summary:     Truncate(a.Content, maxSummary),
		Source:      a.Source,
		PublishedAt: a.PublishedAt,
	}
}
