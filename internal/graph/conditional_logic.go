package graph

import (
	"context"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

// ShouldRevise routes the review outcome: end when the draft is approved
// or the revision budget is spent, revision otherwise. It only reads the
// state.
func ShouldRevise(_ context.Context, state *models.ResearchState) (string, error) {
	if state.Approved() || state.RevisionCount >= state.RevisionCap {
		return consts.LabelEnd, nil
	}
	return consts.LabelRevision, nil
}

// NextRevision is merged by the engine each time the revision route is
// taken.
func NextRevision(state *models.ResearchState) *models.StateUpdate {
	return &models.StateUpdate{RevisionCount: models.Ptr(state.RevisionCount + 1)}
}

// FinalizeReport makes the last draft the final output, approved or not.
func FinalizeReport(state *models.ResearchState) *models.StateUpdate {
	return &models.StateUpdate{FinalReport: models.Ptr(state.Draft)}
}

// NoMarketData is the fatal predicate for hardened runs: the stage that
// owns market data finished without a snapshot or a price series.
func NoMarketData(stage string, state *models.ResearchState) bool {
	switch stage {
	case consts.FetchMarketData, consts.GatherData, consts.MarketPath:
		return !state.HasMarketData()
	}
	return false
}
