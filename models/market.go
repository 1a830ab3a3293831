package models

import "time"

// Bar is one daily OHLCV observation.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Snapshot keys written by the market data stage.
const (
	SnapTicker          = "ticker"
	SnapName            = "name"
	SnapExchange        = "exchange"
	SnapCurrency        = "currency"
	SnapCurrentPrice    = "current_price"
	SnapVolatility30d   = "volatility_30d"
	SnapMarketCap       = "market_cap"
	SnapPERatio         = "pe_ratio"
	SnapForwardPE       = "forward_pe"
	SnapPriceToBook     = "price_to_book"
	SnapEPS             = "eps_ttm"
	SnapRevenueGrowth   = "revenue_growth"
	SnapProfitMargins   = "profit_margins"
	SnapDebtToEquity    = "debt_to_equity"
	SnapFreeCashFlow    = "free_cash_flow"
	SnapReturnOnEquity  = "return_on_equity"
	SnapFiftyTwoWeekHi  = "fifty_two_week_high"
	SnapFiftyTwoWeekLo  = "fifty_two_week_low"
	SnapVolume          = "volume"
	SnapDataSource      = "source"
	SnapHistoryDataDays = "history_points"
)

// PriceSummary describes a price series without exposing it.
type PriceSummary struct {
	Points    int       `json:"points"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	LastClose float64   `json:"last_close"`
}

// Summarize condenses a price series. It returns nil for an empty series.
func Summarize(bars []Bar) *PriceSummary {
	if len(bars) == 0 {
		return nil
	}
	return &PriceSummary{
		Points:    len(bars),
		From:      bars[0].Date,
		To:        bars[len(bars)-1].Date,
		LastClose: bars[len(bars)-1].Close,
	}
}

// Closes extracts the closing prices of a series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
