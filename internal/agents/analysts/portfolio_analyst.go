package analysts

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/internal/agents"
	"github.com/dyike/CortexResearch/internal/utils"
	"github.com/dyike/CortexResearch/models"
)

// Drafter writes the investment memo for the current state. On a revision
// round the state carries the previous draft and the rejected verdict.
type Drafter interface {
	Draft(ctx context.Context, state *models.ResearchState) (string, error)
}

// AnalystStage produces the draft memo, the recommendation and, when the
// memo states one, the target price.
type AnalystStage struct {
	drafter Drafter
}

func NewAnalystStage(drafter Drafter) *AnalystStage {
	return &AnalystStage{drafter: drafter}
}

func (s *AnalystStage) Name() string { return consts.DraftAnalysis }

func (s *AnalystStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	draft, err := s.drafter.Draft(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("draft failed: %w", err)
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return nil, fmt.Errorf("draft failed: drafter returned an empty memo")
	}
	return &models.StateUpdate{
		Draft:          models.Ptr(draft),
		Recommendation: models.Ptr(Recommendation(state)),
		TargetPrice:    models.Ptr(ExtractTargetPrice(draft)),
	}, nil
}

// Recommendation is the overall indicator signal, HOLD when there is none.
func Recommendation(state *models.ResearchState) string {
	if state.Indicators == nil || state.Indicators.Overall.Signal == "" {
		return consts.Signal_Hold
	}
	return strings.ToUpper(state.Indicators.Overall.Signal)
}

var targetPricePattern = regexp.MustCompile(`(?i)target\s+price[^0-9\n]{0,24}?([0-9][0-9,]*(?:\.[0-9]+)?)`)

// ExtractTargetPrice returns the first target price stated in draft, or ""
// when there is none.
func ExtractTargetPrice(draft string) string {
	m := targetPricePattern.FindStringSubmatch(draft)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], ",", "")
}

// LLMDrafter writes the memo with a chat model.
type LLMDrafter struct {
	chain  *agents.PromptChain
	system string
}

func NewLLMDrafter(ctx context.Context, chatModel model.ChatModel, handlers ...callbacks.Handler) (*LLMDrafter, error) {
	system, err := utils.LoadPrompt("analysts/portfolio_analyst")
	if err != nil {
		return nil, err
	}
	chain, err := agents.NewPromptChain(ctx, "portfolio_analyst", chatModel, handlers...)
	if err != nil {
		return nil, err
	}
	return &LLMDrafter{chain: chain, system: system}, nil
}

func (d *LLMDrafter) Draft(ctx context.Context, state *models.ResearchState) (string, error) {
	return d.chain.Invoke(ctx, d.system, DraftRequest(state))
}
