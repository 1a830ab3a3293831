package models

import (
	"maps"
	"slices"
)

// ResearchState is the record threaded through every pipeline stage.
//
// A run owns exactly one logical ResearchState. Stages never modify it:
// they return a StateUpdate and the engine produces the next state with
// Merge.
type ResearchState struct {
	Ticker         string           `json:"ticker"`
	MarketSnapshot map[string]any   `json:"market_data"`
	PriceSeries    []Bar            `json:"-"` // read by the indicator stage only
	Indicators     *IndicatorReport `json:"technicals"`
	News           []NewsItem       `json:"news"`
	Draft          string           `json:"analyst_draft"`
	Review         *ReviewVerdict   `json:"critique"`
	RevisionCount  int              `json:"revision_number"`
	RevisionCap    int              `json:"max_revisions"`
	Recommendation string           `json:"recommendation"`
	TargetPrice    string           `json:"target_price"`
	FinalReport    string           `json:"final_report"`
	Errors         []string         `json:"errors"`
}

// NewResearchState creates the container for one run. A negative cap is
// treated as zero.
func NewResearchState(ticker string, revisionCap int) *ResearchState {
	if revisionCap < 0 {
		revisionCap = 0
	}
	return &ResearchState{
		Ticker:         ticker,
		MarketSnapshot: map[string]any{},
		News:           []NewsItem{},
		RevisionCap:    revisionCap,
		Errors:         []string{},
	}
}

// Clone returns a deep copy of the state.
func (s *ResearchState) Clone() *ResearchState {
	if s == nil {
		return nil
	}
	c := *s
	c.MarketSnapshot = maps.Clone(s.MarketSnapshot)
	c.PriceSeries = slices.Clone(s.PriceSeries)
	c.Indicators = s.Indicators.Clone()
	c.News = slices.Clone(s.News)
	c.Review = s.Review.Clone()
	c.Errors = slices.Clone(s.Errors)
	return &c
}

// Merge applies a partial update and returns the resulting state. Every
// field present in u replaces the current value wholesale; absent fields
// are carried over. There is no implicit append: a stage that wants to
// keep earlier errors must return the full log (see AppendErrors).
//
// The receiver is left untouched.
func (s *ResearchState) Merge(u *StateUpdate) *ResearchState {
	next := s.Clone()
	if u == nil {
		return next
	}
	if u.Ticker != nil {
		next.Ticker = *u.Ticker
	}
	if u.MarketSnapshot != nil {
		next.MarketSnapshot = maps.Clone(u.MarketSnapshot)
	}
	if u.PriceSeries != nil {
		next.PriceSeries = slices.Clone(u.PriceSeries)
	}
	if u.Indicators != nil {
		next.Indicators = u.Indicators.Clone()
	}
	if u.News != nil {
		next.News = slices.Clone(u.News)
	}
	if u.Draft != nil {
		next.Draft = *u.Draft
	}
	if u.Review != nil {
		next.Review = u.Review.Clone()
	}
	if u.RevisionCount != nil {
		next.RevisionCount = *u.RevisionCount
	}
	if u.RevisionCap != nil {
		next.RevisionCap = *u.RevisionCap
	}
	if u.Recommendation != nil {
		next.Recommendation = *u.Recommendation
	}
	if u.TargetPrice != nil {
		next.TargetPrice = *u.TargetPrice
	}
	if u.FinalReport != nil {
		next.FinalReport = *u.FinalReport
	}
	if u.Errors != nil {
		next.Errors = slices.Clone(u.Errors)
	}
	return next
}

// Approved reports whether the latest review accepted the draft.
func (s *ResearchState) Approved() bool {
	return s.Review != nil && s.Review.Approved
}

// HasMarketData reports whether the market stage produced anything usable.
func (s *ResearchState) HasMarketData() bool {
	return len(s.MarketSnapshot) > 0 || len(s.PriceSeries) > 0
}

// AppendErrors returns the state's error log with msgs appended, ready to
// be returned as the Errors field of a StateUpdate.
func AppendErrors(s *ResearchState, msgs ...string) []string {
	var current []string
	if s != nil {
		current = s.Errors
	}
	return slices.Concat(current, msgs)
}
