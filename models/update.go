package models

import (
	"maps"
	"slices"
)

// StateUpdate is the sparse set of field assignments a stage returns.
//
// Presence rules: a pointer field is present when non-nil; a slice or map
// field is present when non-nil. An empty but non-nil slice is an explicit
// overwrite, so returning Errors: []string{} clears the error log.
type StateUpdate struct {
	Ticker         *string
	MarketSnapshot map[string]any
	PriceSeries    []Bar
	Indicators     *IndicatorReport
	News           []NewsItem
	Draft          *string
	Review         *ReviewVerdict
	RevisionCount  *int
	RevisionCap    *int
	Recommendation *string
	TargetPrice    *string
	FinalReport    *string
	Errors         []string
}

// Ptr returns a pointer to v, for building updates inline.
func Ptr[T any](v T) *T {
	return &v
}

// Keys lists the state fields present in the update, in declaration order.
func (u *StateUpdate) Keys() []string {
	if u == nil {
		return nil
	}
	var keys []string
	add := func(present bool, key string) {
		if present {
			keys = append(keys, key)
		}
	}
	add(u.Ticker != nil, "ticker")
	add(u.MarketSnapshot != nil, "market_data")
	add(u.PriceSeries != nil, "price_history")
	add(u.Indicators != nil, "technicals")
	add(u.News != nil, "news")
	add(u.Draft != nil, "analyst_draft")
	add(u.Review != nil, "critique")
	add(u.RevisionCount != nil, "revision_number")
	add(u.RevisionCap != nil, "max_revisions")
	add(u.Recommendation != nil, "recommendation")
	add(u.TargetPrice != nil, "target_price")
	add(u.FinalReport != nil, "final_report")
	add(u.Errors != nil, "errors")
	return keys
}

// IsEmpty reports whether the update assigns nothing.
func (u *StateUpdate) IsEmpty() bool {
	return len(u.Keys()) == 0
}

// Overlay returns a new update holding every field of u, with the fields
// present in other taking precedence.
func (u *StateUpdate) Overlay(other *StateUpdate) *StateUpdate {
	out := &StateUpdate{}
	for _, src := range []*StateUpdate{u, other} {
		if src == nil {
			continue
		}
		if src.Ticker != nil {
			out.Ticker = Ptr(*src.Ticker)
		}
		if src.MarketSnapshot != nil {
			out.MarketSnapshot = maps.Clone(src.MarketSnapshot)
		}
		if src.PriceSeries != nil {
			out.PriceSeries = slices.Clone(src.PriceSeries)
		}
		if src.Indicators != nil {
			out.Indicators = src.Indicators.Clone()
		}
		if src.News != nil {
			out.News = slices.Clone(src.News)
		}
		if src.Draft != nil {
			out.Draft = Ptr(*src.Draft)
		}
		if src.Review != nil {
			out.Review = src.Review.Clone()
		}
		if src.RevisionCount != nil {
			out.RevisionCount = Ptr(*src.RevisionCount)
		}
		if src.RevisionCap != nil {
			out.RevisionCap = Ptr(*src.RevisionCap)
		}
		if src.Recommendation != nil {
			out.Recommendation = Ptr(*src.Recommendation)
		}
		if src.TargetPrice != nil {
			out.TargetPrice = Ptr(*src.TargetPrice)
		}
		if src.FinalReport != nil {
			out.FinalReport = Ptr(*src.FinalReport)
		}
		if src.Errors != nil {
			out.Errors = slices.Clone(src.Errors)
		}
	}
	return out
}

// ErrorUpdate builds an update that appends msgs to the state's error log
// and touches nothing else.
func ErrorUpdate(s *ResearchState, msgs ...string) *StateUpdate {
	return &StateUpdate{Errors: AppendErrors(s, msgs...)}
}
