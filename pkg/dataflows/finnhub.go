package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client *resty.Client
	cache  Cache
	retry  *RetryConfig
	apiKey string
	now    func() time.Time
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(apiKey string, cache Cache) (*FinnhubClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: finnhub API key missing", ErrNotConfigured)
	}
	if cache == nil {
		cache = NopCache{}
	}
	client := resty.New()
	client.SetBaseURL(finnhubBaseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client: client,
		cache:  cache,
		retry:  DefaultRetryConfig(),
		apiKey: apiKey,
		now:    time.Now,
	}, nil
}

func (fc *FinnhubClient) WithBaseURL(u string) *FinnhubClient {
	fc.client.SetBaseURL(u)
	return fc
}

func (fc *FinnhubClient) WithRetry(cfg *RetryConfig) *FinnhubClient {
	fc.retry = cfg
	return fc
}

func (fc *FinnhubClient) Name() string { return "finnhub" }

// SearchNews returns the latest company news of the past week.
func (fc *FinnhubClient) SearchNews(ctx context.Context, symbol string, limit int) ([]*NewsArticle, error) {
	end := fc.now()
	articles, err := fc.GetCompanyNews(ctx, symbol, end.AddDate(0, 0, -7), end)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// GetCompanyNews gets news articles for a specific company
func (fc *FinnhubClient) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]*NewsArticle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	key := map[string]any{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	}
	var cached []*NewsArticle
	if fc.cache.Get(ctx, "finnhub", "company_news", key, &cached) {
		return cached, nil
	}

	var result []*NewsArticle
	err := WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"from":   from.Format("2006-01-02"),
				"to":     to.Format("2006-01-02"),
				"token":  fc.apiKey,
			}).
			Get("/company-news")
		if err != nil {
			return fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}

		var finnhubNews []FinnhubNews
		if err := json.Unmarshal(resp.Body(), &finnhubNews); err != nil {
			return fmt.Errorf("failed to parse news response: %w", err)
		}

		result = make([]*NewsArticle, 0, len(finnhubNews))
		for _, news := range finnhubNews {
			result = append(result, &NewsArticle{
				Title:       news.Headline,
				Content:     news.Summary,
				URL:         news.URL,
				Source:      news.Source,
				PublishedAt: time.Unix(news.DateTime, 0).UTC(),
				Keywords:    []string{symbol},
				Metadata: map[string]string{
					"category": news.Category,
					"related":  news.Related,
					"id":       strconv.FormatInt(news.ID, 10),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = fc.cache.Set(ctx, "finnhub", "company_news", key, result)
	return result, nil
}

// finnhub metric names per ratio, most recent period first. Margins,
// growth and returns are percentages.
var finnhubMetrics = map[string][]string{
	"revenue_growth":   {"revenueGrowthTTMYoy", "revenueGrowthQuarterlyYoy"},
	"profit_margins":   {"netProfitMarginTTM", "netProfitMarginAnnual"},
	"debt_to_equity":   {"totalDebt/totalEquityQuarterly", "totalDebt/totalEquityAnnual"},
	"free_cash_flow":   {"freeCashFlowTTM", "freeCashFlowAnnual"},
	"return_on_equity": {"roeTTM", "roeRfy"},
}

// GetFundamentals reads the statement ratios from the basic financials
// endpoint. Ratios Finnhub does not report stay nil.
func (fc *FinnhubClient) GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	key := map[string]any{"symbol": symbol}
	var cached Fundamentals
	if fc.cache.Get(ctx, "finnhub", "basic_financials", key, &cached) {
		return &cached, nil
	}

	var body struct {
		Metric map[string]any `json:"metric"`
	}
	err := WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"metric": "all",
				"token":  fc.apiKey,
			}).
			Get("/stock/metric")
		if err != nil {
			return fmt.Errorf("failed to fetch basic financials for %s: %w", symbol, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return fmt.Errorf("failed to parse basic financials response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metric := func(ratio string) *float64 {
		for _, name := range finnhubMetrics[ratio] {
			if v, ok := body.Metric[name].(float64); ok {
				return &v
			}
		}
		return nil
	}
	result := &Fundamentals{
		RevenueGrowth:  metric("revenue_growth"),
		ProfitMargins:  metric("profit_margins"),
		DebtToEquity:   metric("debt_to_equity"),
		FreeCashFlow:   metric("free_cash_flow"),
		ReturnOnEquity: metric("return_on_equity"),
	}
	_ = fc.cache.Set(ctx, "finnhub", "basic_financials", key, result)
	return result, nil
}
