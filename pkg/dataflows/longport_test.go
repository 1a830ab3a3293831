package dataflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/config"
)

func TestLongportClientLive(t *testing.T) {
	cfg := config.DefaultConfig()
	client, err := NewLongportClient(LongportConfig{
		AppKey:      cfg.LongportAppKey,
		AppSecret:   cfg.LongportAppSecret,
		AccessToken: cfg.LongportAccessToken,
	}, nil)
	if err != nil {
		t.Skipf("Skipping test due to missing Longport API credentials: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q, err := client.GetQuote(ctx, "700.HK")
	require.NoError(t, err)
	assert.True(t, q.Price.IsPositive())

	end := time.Now()
	bars, err := client.GetHistoricalData(ctx, "700.HK", end.AddDate(0, -6, 0), end)
	require.NoError(t, err)
	assert.NotEmpty(t, bars)
}
