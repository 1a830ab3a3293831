package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinnhubRequiresKey(t *testing.T) {
	_, err := NewFinnhubClient("", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFinnhubCompanyNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ACME", q.Get("symbol"))
		assert.Equal(t, "secret", q.Get("token"))
		assert.Equal(t, "2024-03-03", q.Get("from"))
		assert.Equal(t, "2024-03-10", q.Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"category":"company","datetime":1709900000,"headline":"ACME expands","id":7,"source":"Reuters","summary":"Expansion news","url":"https://example.com/1"},
			{"category":"company","datetime":1709800000,"headline":"ACME hires","id":8,"source":"CNBC","summary":"Hiring news","url":"https://example.com/2"}
		]`))
	}))
	defer srv.Close()

	client, err := NewFinnhubClient("secret", nil)
	require.NoError(t, err)
	client.WithBaseURL(srv.URL)
	client.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	articles, err := client.SearchNews(context.Background(), "acme", 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "ACME expands", articles[0].Title)
	assert.Equal(t, "Expansion news", articles[0].Content)
	assert.Equal(t, "7", articles[0].Metadata["id"])
}

func TestFinnhubAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"limit"}`))
	}))
	defer srv.Close()

	client, err := NewFinnhubClient("secret", nil)
	require.NoError(t, err)
	client.WithBaseURL(srv.URL).WithRetry(&RetryConfig{MaxRetries: 0})

	_, err = client.SearchNews(context.Background(), "ACME", 5)
	assert.ErrorContains(t, err, "429")
}

func TestNewProvidersFromConfig(t *testing.T) {
	cfg := testConfig(t)

	mp, err := NewMarketDataProvider(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", mp.Name())

	cfg.MarketProvider = "longport"
	cfg.LongportAppKey = ""
	_, err = NewMarketDataProvider(cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	np, err := NewNewsProvider(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "google", np.Name())

	cfg.NewsProvider = "finnhub"
	cfg.FinnhubAPIKey = "k"
	np, err = NewNewsProvider(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "finnhub", np.Name())

	cfg.NewsProvider = "rumours"
	_, err = NewNewsProvider(cfg, nil)
	assert.Error(t, err)
}

func TestFinnhubFundamentals(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/stock/metric", r.URL.Path)
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		assert.Equal(t, "all", r.URL.Query().Get("metric"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metric": {
			"revenueGrowthQuarterlyYoy": 8.4,
			"netProfitMarginTTM": 21.5,
			"totalDebt/totalEquityQuarterly": 1.7,
			"roeTTM": 30.1
		}}`))
	}))
	defer srv.Close()

	client, err := NewFinnhubClient("secret", nil)
	require.NoError(t, err)
	client.WithBaseURL(srv.URL)

	f, err := client.GetFundamentals(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, f.RevenueGrowth)
	assert.Equal(t, 8.4, *f.RevenueGrowth)
	assert.Equal(t, 21.5, *f.ProfitMargins)
	assert.Equal(t, 1.7, *f.DebtToEquity)
	assert.Equal(t, 30.1, *f.ReturnOnEquity)
	assert.Nil(t, f.FreeCashFlow)
	assert.Equal(t, 1, calls)

	var _ FundamentalsProvider = client
}

func TestFundamentalsFill(t *testing.T) {
	a, b, c := 1.0, 2.0, 3.0
	f := Fundamentals{RevenueGrowth: &a}.Fill(Fundamentals{RevenueGrowth: &b, DebtToEquity: &c})
	assert.Equal(t, 1.0, *f.RevenueGrowth)
	assert.Equal(t, 3.0, *f.DebtToEquity)
	assert.Nil(t, f.ProfitMargins)
}
