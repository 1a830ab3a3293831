package models

import "maps"

// Indicator is a single computed technical signal. Extra carries the
// auxiliary series values (MACD histogram, Bollinger bands, ...).
type Indicator struct {
	Value  float64            `json:"value"`
	Signal string             `json:"signal,omitempty"`
	Extra  map[string]float64 `json:"extra,omitempty"`
}

// OverallSignal is the aggregate view over every indicator group.
type OverallSignal struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type IndicatorReport struct {
	Momentum   map[string]Indicator `json:"momentum"`
	Trend      map[string]Indicator `json:"trend"`
	Volatility map[string]Indicator `json:"volatility"`
	Overall    OverallSignal        `json:"overall_signal"`
}

func NewIndicatorReport() *IndicatorReport {
	return &IndicatorReport{
		Momentum:   map[string]Indicator{},
		Trend:      map[string]Indicator{},
		Volatility: map[string]Indicator{},
	}
}

func (r *IndicatorReport) Clone() *IndicatorReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Momentum = cloneGroup(r.Momentum)
	c.Trend = cloneGroup(r.Trend)
	c.Volatility = cloneGroup(r.Volatility)
	return &c
}

// Groups returns the indicator groups keyed by name.
func (r *IndicatorReport) Groups() map[string]map[string]Indicator {
	return map[string]map[string]Indicator{
		"momentum":   r.Momentum,
		"trend":      r.Trend,
		"volatility": r.Volatility,
	}
}

func cloneGroup(g map[string]Indicator) map[string]Indicator {
	if g == nil {
		return nil
	}
	out := make(map[string]Indicator, len(g))
	for k, v := range g {
		v.Extra = maps.Clone(v.Extra)
		out[k] = v
	}
	return out
}
