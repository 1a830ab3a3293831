package analysts

import (
	"context"
	"fmt"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

const errNoPriceHistory = "No price history found for technical analysis"

// TechnicalsStage derives the indicator report from the price series
// loaded by the market data stage.
type TechnicalsStage struct{}

func NewTechnicalsStage() *TechnicalsStage { return &TechnicalsStage{} }

func (s *TechnicalsStage) Name() string { return consts.ComputeIndicators }

func (s *TechnicalsStage) Run(_ context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	if len(state.PriceSeries) == 0 {
		return models.ErrorUpdate(state, errNoPriceHistory), nil
	}
	report, err := dataflows.CalculateAllIndicators(state.PriceSeries)
	if err != nil {
		return models.ErrorUpdate(state, fmt.Sprintf("technical analysis failed: %v", err)), nil
	}
	return &models.StateUpdate{Indicators: report}, nil
}
