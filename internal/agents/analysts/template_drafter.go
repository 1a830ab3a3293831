package analysts

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

// TemplateDrafter writes a rule-based memo from the gathered data. It needs
// no model and produces the same memo for the same state.
type TemplateDrafter struct {
	// TargetMove is the fractional move applied to the current price for
	// BUY and SELL calls.
	TargetMove float64
}

func NewTemplateDrafter() *TemplateDrafter {
	return &TemplateDrafter{TargetMove: 0.10}
}

func (d *TemplateDrafter) Draft(_ context.Context, state *models.ResearchState) (string, error) {
	view, err := decodeSnapshot(state.MarketSnapshot)
	if err != nil {
		return "", err
	}
	call := Recommendation(state)
	confidence := 50.0
	reasoning := "no technical signal was available"
	if ind := state.Indicators; ind != nil {
		confidence = max(confidence, ind.Overall.Confidence)
		if ind.Overall.Reasoning != "" {
			reasoning = ind.Overall.Reasoning
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Investment Memo", state.Ticker)
	if state.RevisionCount > 0 {
		fmt.Fprintf(&b, " (Revision %d)", state.RevisionCount)
	}
	b.WriteString("\n\n## Executive Summary\n")
	fmt.Fprintf(&b, "Call: **%s** with %.0f%% confidence.\n", call, confidence)
	if view.CurrentPrice > 0 {
		target := view.CurrentPrice
		switch call {
		case consts.Signal_Buy:
			target *= 1 + d.TargetMove
		case consts.Signal_Sell:
			target *= 1 - d.TargetMove
		}
		fmt.Fprintf(&b, "Target Price: $%.2f (current $%.2f).\n", target, view.CurrentPrice)
	}
	fmt.Fprintf(&b, "Rationale: %s.\n", reasoning)

	b.WriteString("\n## Fundamental Deep Dive\n")
	if len(state.MarketSnapshot) == 0 {
		b.WriteString("Market data could not be loaded; the call rests on the remaining inputs.\n")
	} else {
		fmt.Fprintf(&b, "- Market cap: %s\n", humanize(view.MarketCap))
		fmt.Fprintf(&b, "- P/E: %s, forward P/E: %s, price/book: %s\n",
			na(view.PERatio, "%.2f"), na(view.ForwardPE, "%.2f"), na(view.PriceToBook, "%.2f"))
		fmt.Fprintf(&b, "- EPS (TTM): %s\n", na(view.EPS, "%.2f"))
		fmt.Fprintf(&b, "- 52-week range: %s - %s\n", na(view.Low52, "%.2f"), na(view.High52, "%.2f"))
	}

	b.WriteString("\n## Technical Analysis\n")
	if ind := state.Indicators; ind == nil {
		b.WriteString("Indicators unavailable.\n")
	} else {
		for _, group := range []string{"momentum", "trend", "volatility"} {
			values := ind.Groups()[group]
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				v := values[name]
				fmt.Fprintf(&b, "- %s %s: %.2f", group, strings.ToUpper(name), v.Value)
				if v.Signal != "" {
					fmt.Fprintf(&b, " (%s)", v.Signal)
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n## Sentiment & News\n")
	if len(state.News) == 0 {
		b.WriteString("No recent coverage was found.\n")
	}
	for i, n := range state.News {
		fmt.Fprintf(&b, "- %s [Source %d](%s)\n", n.Title, i+1, n.URL)
	}

	b.WriteString("\n## Risks\n")
	if view.Volatility != "" && view.Volatility != "N/A" {
		fmt.Fprintf(&b, "- 30-day volatility of %s%% can move the price through the target quickly.\n", view.Volatility)
	}
	switch call {
	case consts.Signal_Buy:
		b.WriteString("- Bear case: momentum fades and the trend indicators roll over.\n")
	case consts.Signal_Sell:
		b.WriteString("- Bull case: a positive catalyst reverses the downtrend.\n")
	default:
		b.WriteString("- Mixed signals leave the stock exposed to a break in either direction.\n")
	}

	if len(state.Errors) > 0 {
		b.WriteString("\n## Data Gaps\n")
		for _, e := range state.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if NeedsRevision(state) {
		fmt.Fprintf(&b, "\n## Revision Notes\nAddressed reviewer feedback: %s\n", state.Review.Rationale)
	}
	return b.String(), nil
}
