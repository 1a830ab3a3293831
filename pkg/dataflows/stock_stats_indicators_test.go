package dataflows

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

func TestCalculateAllIndicatorsUptrend(t *testing.T) {
	bars := syntheticBars(120, func(i int) float64 { return 100 + 0.02*float64(i*i) })
	report, err := CalculateAllIndicators(bars)
	require.NoError(t, err)

	assert.Equal(t, "Overbought", report.Momentum["rsi"].Signal)
	assert.Equal(t, 100.0, report.Momentum["rsi"].Value)
	assert.Contains(t, report.Momentum["stoch"].Extra, "k")
	assert.Equal(t, "Above", report.Trend["sma_50"].Signal)
	assert.Equal(t, "Bullish", report.Trend["macd"].Signal)
	assert.Equal(t, consts.Signal_Buy, report.Overall.Signal)
	assert.Contains(t, []string{"Strong", "Very Strong"}, report.Trend["adx"].Signal)
	assert.Greater(t, report.Volatility["atr"].Value, 0.0)
	assert.NotEmpty(t, report.Overall.Reasoning)
}

func TestCalculateAllIndicatorsDowntrend(t *testing.T) {
	bars := syntheticBars(120, func(i int) float64 { return 300 - 0.02*float64(i*i) })
	report, err := CalculateAllIndicators(bars)
	require.NoError(t, err)

	assert.Equal(t, "Oversold", report.Momentum["rsi"].Signal)
	assert.Equal(t, "Below", report.Trend["sma_50"].Signal)
	assert.Equal(t, "Bearish", report.Trend["macd"].Signal)
	assert.Equal(t, consts.Signal_Sell, report.Overall.Signal)
}

func TestCalculateAllIndicatorsFlat(t *testing.T) {
	bars := syntheticBars(60, func(int) float64 { return 50 })
	report, err := CalculateAllIndicators(bars)
	require.NoError(t, err)

	assert.Equal(t, 50.0, report.Momentum["rsi"].Value)
	assert.Equal(t, "Neutral", report.Trend["macd"].Signal)
	assert.Equal(t, consts.Signal_Hold, report.Overall.Signal)
	for _, group := range report.Groups() {
		for name, ind := range group {
			assert.False(t, math.IsNaN(ind.Value), name)
		}
	}
}

func TestCalculateAllIndicatorsNeedsHistory(t *testing.T) {
	_, err := CalculateAllIndicators(syntheticBars(10, func(i int) float64 { return float64(i + 1) }))
	assert.Error(t, err)

	_, err = CalculateAllIndicators(nil)
	assert.Error(t, err)
}

func TestCalculateAllIndicatorsSortsInput(t *testing.T) {
	bars := syntheticBars(80, func(i int) float64 { return 100 + float64(i) })
	reversed := make([]models.Bar, len(bars))
	for i, b := range bars {
		reversed[len(bars)-1-i] = b
	}
	a, err := CalculateAllIndicators(bars)
	require.NoError(t, err)
	b, err := CalculateAllIndicators(reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, reversed[0].Date.After(reversed[1].Date), "input must not be reordered")
}

func TestSMAAndEMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := calculateSMA(values, 3)
	assert.True(t, math.IsNaN(sma[1]))
	assert.Equal(t, 2.0, sma[2])
	assert.Equal(t, 4.0, sma[4])

	ema := calculateEMA(values, 3)
	assert.Equal(t, 2.0, ema[2])
	assert.Equal(t, 3.0, ema[3])
	assert.Equal(t, 4.0, ema[4])
}

func TestVolatility30d(t *testing.T) {
	v, ok := Volatility30d([]float64{1, 2, 3})
	assert.True(t, ok)
	assert.Zero(t, v)

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 10
	}
	v, ok = Volatility30d(flat)
	assert.True(t, ok)
	assert.Zero(t, v)

	_, ok = Volatility30d(flat[:30])
	assert.False(t, ok)

	zigzag := make([]float64, 60)
	for i := range zigzag {
		zigzag[i] = 100
		if i%2 == 1 {
			zigzag[i] = 102
		}
	}
	v, ok = Volatility30d(zigzag)
	assert.True(t, ok)
	assert.Greater(t, v, 1.0)
}
