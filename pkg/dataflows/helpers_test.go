package dataflows

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/models"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.DataCacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

// syntheticBars builds a daily series whose closes follow fn.
func syntheticBars(n int, fn func(i int) float64) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := fn(i)
		bars[i] = models.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}
