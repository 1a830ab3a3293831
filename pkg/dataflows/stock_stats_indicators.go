package dataflows

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

// MinIndicatorBars is the shortest series CalculateAllIndicators accepts.
const MinIndicatorBars = 35

// CalculateAllIndicators builds the momentum, trend and volatility groups
// for a daily price series, plus a vote-based overall signal.
func CalculateAllIndicators(bars []models.Bar) (*models.IndicatorReport, error) {
	if len(bars) < MinIndicatorBars {
		return nil, fmt.Errorf("insufficient data for technical analysis: %d bars, need %d", len(bars), MinIndicatorBars)
	}
	data := make([]models.Bar, len(bars))
	copy(data, bars)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Date.Before(data[j].Date) })

	closes := models.Closes(data)
	price := closes[len(closes)-1]
	report := models.NewIndicatorReport()

	rsi := last(calculateRSI(closes, 14))
	report.Momentum["rsi"] = models.Indicator{Value: Round2(rsi), Signal: rsiSignal(rsi)}

	k, d := calculateStochastic(data, 14, 3)
	stochK, stochD := last(k), last(d)
	report.Momentum["stoch"] = models.Indicator{
		Value:  Round2(stochK),
		Signal: bandSignal(stochK, 20, 80),
		Extra:  map[string]float64{"k": Round2(stochK), "d": Round2(stochD)},
	}

	macd, signal, hist := calculateMACD(closes, 12, 26, 9)
	macdTrend := "Neutral"
	switch h := last(hist); {
	case h > 1e-9:
		macdTrend = "Bullish"
	case h < -1e-9:
		macdTrend = "Bearish"
	}
	report.Trend["macd"] = models.Indicator{
		Value:  Round2(last(macd)),
		Signal: macdTrend,
		Extra:  map[string]float64{"signal": Round2(last(signal)), "histogram": Round2(last(hist))},
	}

	adx := last(calculateADX(data, 14))
	report.Trend["adx"] = models.Indicator{Value: Round2(adx), Signal: adxStrength(adx)}

	sma20 := last(calculateSMA(closes, 20))
	report.Trend["sma_20"] = models.Indicator{Value: Round2(sma20), Signal: aboveBelow(price, sma20)}
	if len(closes) >= 50 {
		sma50 := last(calculateSMA(closes, 50))
		report.Trend["sma_50"] = models.Indicator{Value: Round2(sma50), Signal: aboveBelow(price, sma50)}
	}
	ema10 := last(calculateEMA(closes, 10))
	report.Trend["ema_10"] = models.Indicator{Value: Round2(ema10), Signal: aboveBelow(price, ema10)}

	mid, upper, lower := calculateBollinger(closes, 20, 2)
	bollSignal := "Inside Bands"
	switch {
	case price > last(upper):
		bollSignal = "Above Upper Band"
	case price < last(lower):
		bollSignal = "Below Lower Band"
	}
	report.Volatility["bollinger"] = models.Indicator{
		Value:  Round2(last(mid)),
		Signal: bollSignal,
		Extra:  map[string]float64{"upper": Round2(last(upper)), "lower": Round2(last(lower))},
	}

	atr := last(calculateATR(data, 14))
	report.Volatility["atr"] = models.Indicator{
		Value: Round2(atr),
		Extra: map[string]float64{"atr_pct": Round2(atr / price * 100)},
	}

	report.Overall = overallSignal(report, price)
	return report, nil
}

func overallSignal(r *models.IndicatorReport, price float64) models.OverallSignal {
	var buy, sell float64
	var reasons []string
	vote := func(bullish, bearish bool, weight float64, why string) {
		switch {
		case bullish:
			buy += weight
			reasons = append(reasons, why+" bullish")
		case bearish:
			sell += weight
			reasons = append(reasons, why+" bearish")
		}
	}

	rsi := r.Momentum["rsi"].Value
	vote(rsi < 30, rsi > 70, 1, fmt.Sprintf("RSI %.1f", rsi))
	stoch := r.Momentum["stoch"].Value
	vote(stoch < 20, stoch > 80, 1, fmt.Sprintf("Stochastic %.1f", stoch))

	// trend votes count double when ADX reports a strong trend
	trendWeight := 1.0
	if r.Trend["adx"].Value >= 25 {
		trendWeight = 1.5
	}
	macd := r.Trend["macd"]
	vote(macd.Signal == "Bullish", macd.Signal == "Bearish", trendWeight, "MACD")
	if sma, ok := r.Trend["sma_50"]; ok {
		vote(price > sma.Value, price < sma.Value, trendWeight, "Price vs SMA50")
	}
	sma20 := r.Trend["sma_20"]
	vote(price > sma20.Value, price < sma20.Value, trendWeight/2, "Price vs SMA20")

	boll := r.Volatility["bollinger"].Signal
	vote(boll == "Below Lower Band", boll == "Above Upper Band", 1, "Bollinger")

	out := models.OverallSignal{Signal: consts.Signal_Hold}
	total := buy + sell
	if total == 0 {
		out.Reasoning = "No indicator gives a directional signal"
		return out
	}
	switch {
	case buy > sell:
		out.Signal = consts.Signal_Buy
		out.Confidence = Round2(buy / total * 100)
	case sell > buy:
		out.Signal = consts.Signal_Sell
		out.Confidence = Round2(sell / total * 100)
	default:
		out.Confidence = 50
	}
	out.Reasoning = strings.Join(reasons, "; ")
	return out
}

// Volatility30d is the standard deviation of daily returns over the last
// 30 sessions, in percent. ok is false when the window cannot be filled.
func Volatility30d(closes []float64) (vol float64, ok bool) {
	if len(closes) < 30 {
		return 0, true
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 30 {
		return 0, false
	}
	return Round2(stddev(returns[len(returns)-30:], 1) * 100), true
}

func rsiSignal(v float64) string {
	switch {
	case v > 70:
		return "Overbought"
	case v < 30:
		return "Oversold"
	default:
		return "Neutral"
	}
}

func bandSignal(v, low, high float64) string {
	switch {
	case v > high:
		return "Overbought"
	case v < low:
		return "Oversold"
	default:
		return "Neutral"
	}
}

func adxStrength(v float64) string {
	switch {
	case v >= 50:
		return "Very Strong"
	case v >= 25:
		return "Strong"
	case v >= 20:
		return "Developing"
	default:
		return "Weak"
	}
}

func aboveBelow(price, level float64) string {
	if price >= level {
		return "Above"
	}
	return "Below"
}

// series helpers: every function returns a slice as long as its input,
// with NaN during the warm-up period.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}

// calculateSMA calculates Simple Moving Average
func calculateSMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// calculateEMA seeds with the SMA of the first period values
func calculateEMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if period <= 0 || len(values)-start < period {
		return out
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	ema := 0.0
	for i := start; i < start+period; i++ {
		ema += values[i]
	}
	ema /= float64(period)
	out[start+period-1] = ema
	for i := start + period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// calculateRSI uses Wilder smoothing
func calculateRSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsiValue(gain, loss)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

func calculateStochastic(bars []models.Bar, period, smooth int) (k, d []float64) {
	k = nanSeries(len(bars))
	for i := period - 1; i < len(bars); i++ {
		hi, lo := bars[i].High, bars[i].Low
		for j := i - period + 1; j <= i; j++ {
			hi = math.Max(hi, bars[j].High)
			lo = math.Min(lo, bars[j].Low)
		}
		if hi == lo {
			k[i] = 50
			continue
		}
		k[i] = (bars[i].Close - lo) / (hi - lo) * 100
	}
	d = nanSeries(len(bars))
	for i := period - 1 + smooth - 1; i < len(bars); i++ {
		sum := 0.0
		for j := i - smooth + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(smooth)
	}
	return k, d
}

func calculateMACD(closes []float64, fast, slow, signalPeriod int) (macd, signal, hist []float64) {
	fastEMA := calculateEMA(closes, fast)
	slowEMA := calculateEMA(closes, slow)
	macd = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}
	signal = calculateEMA(macd, signalPeriod)
	hist = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	return macd, signal, hist
}

func trueRange(bars []models.Bar, i int) float64 {
	if i == 0 {
		return bars[0].High - bars[0].Low
	}
	prev := bars[i-1].Close
	return math.Max(bars[i].High-bars[i].Low, math.Max(math.Abs(bars[i].High-prev), math.Abs(bars[i].Low-prev)))
}

// calculateATR uses Wilder smoothing of the true range
func calculateATR(bars []models.Bar, period int) []float64 {
	out := nanSeries(len(bars))
	if len(bars) <= period {
		return out
	}
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(bars, i)
	}
	atr /= float64(period)
	out[period] = atr
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars, i)) / float64(period)
		out[i] = atr
	}
	return out
}

func calculateADX(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := nanSeries(n)
	if n < 2*period+1 {
		return out
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = trueRange(bars, i)
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}
	dx := make([]float64, 0, n)
	dxAt := func() float64 {
		if sTR == 0 {
			return 0
		}
		pdi := sPlus / sTR * 100
		mdi := sMinus / sTR * 100
		if pdi+mdi == 0 {
			return 0
		}
		return math.Abs(pdi-mdi) / (pdi + mdi) * 100
	}
	dx = append(dx, dxAt())
	for i := period + 1; i < n; i++ {
		sTR = sTR - sTR/float64(period) + tr[i]
		sPlus = sPlus - sPlus/float64(period) + plusDM[i]
		sMinus = sMinus - sMinus/float64(period) + minusDM[i]
		dx = append(dx, dxAt())
		if len(dx) == period {
			out[i] = sum(dx) / float64(period)
		} else if len(dx) > period {
			out[i] = (out[i-1]*float64(period-1) + dx[len(dx)-1]) / float64(period)
		}
	}
	return out
}

func calculateBollinger(closes []float64, period int, width float64) (mid, upper, lower []float64) {
	mid = calculateSMA(closes, period)
	upper = nanSeries(len(closes))
	lower = nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		sd := stddev(closes[i-period+1:i+1], 0)
		upper[i] = mid[i] + width*sd
		lower[i] = mid[i] - width*sd
	}
	return mid, upper, lower
}

// stddev with ddof degrees of freedom removed from the denominator
func stddev(values []float64, ddof int) float64 {
	if len(values) <= ddof {
		return 0
	}
	mean := sum(values) / float64(len(values))
	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(values)-ddof))
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
