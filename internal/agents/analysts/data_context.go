package analysts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/dyike/CortexResearch/models"
)

// snapshotView is the typed reading of a market snapshot used by the
// memo writers.
type snapshotView struct {
	Name         string  `mapstructure:"name"`
	Currency     string  `mapstructure:"currency"`
	Source       string  `mapstructure:"source"`
	CurrentPrice float64 `mapstructure:"current_price"`
	Volatility   string  `mapstructure:"volatility_30d"`
	MarketCap    float64 `mapstructure:"market_cap"`
	PERatio      float64 `mapstructure:"pe_ratio"`
	ForwardPE    float64 `mapstructure:"forward_pe"`
	PriceToBook  float64 `mapstructure:"price_to_book"`
	EPS          float64 `mapstructure:"eps_ttm"`
	RevGrowth    float64 `mapstructure:"revenue_growth"`
	Margin       float64 `mapstructure:"profit_margins"`
	DebtEquity   float64 `mapstructure:"debt_to_equity"`
	FreeCash     float64 `mapstructure:"free_cash_flow"`
	ROE          float64 `mapstructure:"return_on_equity"`
	High52       float64 `mapstructure:"fifty_two_week_high"`
	Low52        float64 `mapstructure:"fifty_two_week_low"`
	Volume       float64 `mapstructure:"volume"`
}

func decodeSnapshot(snapshot map[string]any) (snapshotView, error) {
	var view snapshotView
	if len(snapshot) == 0 {
		return view, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &view,
	})
	if err != nil {
		return view, err
	}
	if err := dec.Decode(snapshot); err != nil {
		return view, fmt.Errorf("decode market snapshot: %w", err)
	}
	return view, nil
}

func na(v float64, format string) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf(format, v)
}

func humanize(v float64) string {
	switch {
	case v == 0:
		return "N/A"
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

// BuildDataContext renders everything the pipeline gathered about the
// ticker as the plain-text context handed to the memo writer.
func BuildDataContext(state *models.ResearchState) string {
	var b strings.Builder
	view, err := decodeSnapshot(state.MarketSnapshot)

	fmt.Fprintf(&b, "TICKER: %s\n\n", state.Ticker)
	b.WriteString("--- MARKET DATA & FUNDAMENTALS ---\n")
	if err != nil || len(state.MarketSnapshot) == 0 {
		b.WriteString("Market data unavailable.\n")
	} else {
		vol := view.Volatility
		if vol == "" {
			vol = "N/A"
		} else if vol != "N/A" {
			vol += "%"
		}
		fmt.Fprintf(&b, "Current Price: %s\n", na(view.CurrentPrice, "$%.2f"))
		fmt.Fprintf(&b, "Market Cap: %s\n", humanize(view.MarketCap))
		fmt.Fprintf(&b, "P/E Ratio: %s\n", na(view.PERatio, "%.2f"))
		fmt.Fprintf(&b, "Forward P/E: %s\n", na(view.ForwardPE, "%.2f"))
		fmt.Fprintf(&b, "Price/Book: %s\n", na(view.PriceToBook, "%.2f"))
		fmt.Fprintf(&b, "EPS (TTM): %s\n", na(view.EPS, "%.2f"))
		fmt.Fprintf(&b, "Revenue Growth: %s\n", na(view.RevGrowth, "%.2f"))
		fmt.Fprintf(&b, "Profit Margin: %s\n", na(view.Margin, "%.2f"))
		fmt.Fprintf(&b, "Debt/Equity: %s\n", na(view.DebtEquity, "%.2f"))
		fmt.Fprintf(&b, "Free Cash Flow: %s\n", humanize(view.FreeCash))
		fmt.Fprintf(&b, "Return on Equity: %s\n", na(view.ROE, "%.2f"))
		fmt.Fprintf(&b, "52-Week Range: %s - %s\n", na(view.Low52, "%.2f"), na(view.High52, "%.2f"))
		fmt.Fprintf(&b, "30-Day Volatility: %s\n", vol)
	}

	b.WriteString("\n--- TECHNICAL ANALYSIS ---\n")
	if ind := state.Indicators; ind == nil {
		b.WriteString("Technical indicators unavailable.\n")
	} else {
		rsi := ind.Momentum["rsi"]
		fmt.Fprintf(&b, "RSI: %.2f (%s)\n", rsi.Value, rsi.Signal)
		fmt.Fprintf(&b, "MACD: %s\n", orNA(ind.Trend["macd"].Signal))
		if adx, ok := ind.Trend["adx"]; ok {
			fmt.Fprintf(&b, "ADX: %.2f (%s)\n", adx.Value, adx.Signal)
		}
		if bb, ok := ind.Volatility["bollinger"]; ok {
			fmt.Fprintf(&b, "Bollinger: %s\n", orNA(bb.Signal))
		}
		fmt.Fprintf(&b, "Overall Signal: %s\n", orNA(ind.Overall.Signal))
		fmt.Fprintf(&b, "Confidence: %.0f%%\n", ind.Overall.Confidence)
		if ind.Overall.Reasoning != "" {
			fmt.Fprintf(&b, "Reasoning: %s\n", ind.Overall.Reasoning)
		}
	}

	b.WriteString("\n--- RECENT NEWS & SENTIMENT ---\n")
	if len(state.News) == 0 {
		b.WriteString("No specific news data available.\n")
	}
	for i, n := range state.News {
		fmt.Fprintf(&b, "\nArticle %d: %s\nSource: %s\nSummary: %s\n", i+1, n.Title, orNA(n.URL), orNA(n.Summary))
	}

	if len(state.Errors) > 0 {
		b.WriteString("\n--- DATA GAPS ---\n")
		for _, e := range state.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

// DraftRequest is the user message for a draft. After a rejected review it
// carries the previous draft and the reviewer's feedback.
func DraftRequest(state *models.ResearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the latest data for %s. Write the analysis.\n\nData Context:\n%s", state.Ticker, BuildDataContext(state))
	if NeedsRevision(state) {
		fmt.Fprintf(&b, "\n--- PREVIOUS DRAFT ---\n%s\n\n--- RISK MANAGER FEEDBACK ---\n%s\n\nRevise the memo so that every point of the feedback is addressed.\n",
			state.Draft, state.Review.Rationale)
	}
	return b.String()
}

// NeedsRevision reports whether the current draft was reviewed and
// rejected.
func NeedsRevision(state *models.ResearchState) bool {
	return state.Draft != "" && state.Review != nil && !state.Review.Approved
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
