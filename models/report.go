package models

import "slices"

// Report is the external projection of a finished run. It never carries
// the raw price series.
type Report struct {
	RunID          string           `json:"run_id,omitempty"`
	Ticker         string           `json:"ticker"`
	MarketData     map[string]any   `json:"market_data"`
	PriceSummary   *PriceSummary    `json:"price_summary,omitempty"`
	Technicals     *IndicatorReport `json:"technicals"`
	News           []NewsItem       `json:"news"`
	AnalystDraft   string           `json:"analyst_draft"`
	Critique       string           `json:"critique"`
	Approved       bool             `json:"approved"`
	RevisionCount  int              `json:"revision_number"`
	RevisionCap    int              `json:"max_revisions"`
	Recommendation string           `json:"recommendation"`
	TargetPrice    string           `json:"target_price,omitempty"`
	FinalReport    string           `json:"final_report"`
	Errors         []string         `json:"errors"`
	Degraded       bool             `json:"degraded"`
}

// Project builds the external view of the state, keeping at most newsLimit
// news items (all of them when newsLimit <= 0).
func (s *ResearchState) Project(newsLimit int) *Report {
	c := s.Clone()
	news := c.News
	if newsLimit > 0 && len(news) > newsLimit {
		news = news[:newsLimit]
	}
	r := &Report{
		Ticker:         c.Ticker,
		MarketData:     c.MarketSnapshot,
		PriceSummary:   Summarize(c.PriceSeries),
		Technicals:     c.Indicators,
		News:           slices.Clip(news),
		AnalystDraft:   c.Draft,
		Approved:       c.Approved(),
		RevisionCount:  c.RevisionCount,
		RevisionCap:    c.RevisionCap,
		Recommendation: c.Recommendation,
		TargetPrice:    c.TargetPrice,
		FinalReport:    c.FinalReport,
		Errors:         c.Errors,
	}
	if c.Review != nil {
		r.Critique = c.Review.Rationale
	}
	if r.News == nil {
		r.News = []NewsItem{}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	r.Degraded = len(r.Errors) > 0 || r.AnalystDraft == ""
	return r
}
