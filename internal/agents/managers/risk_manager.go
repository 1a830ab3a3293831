package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/internal/agents"
	"github.com/dyike/CortexResearch/internal/agents/analysts"
	"github.com/dyike/CortexResearch/internal/utils"
	"github.com/dyike/CortexResearch/models"
)

// Reviewer judges the current draft. The approval policy is entirely the
// reviewer's; the pipeline only reads the verdict.
type Reviewer interface {
	Review(ctx context.Context, state *models.ResearchState) (*models.ReviewVerdict, error)
}

// RiskManagerStage records the reviewer's verdict on the draft.
type RiskManagerStage struct {
	reviewer Reviewer
}

func NewRiskManagerStage(reviewer Reviewer) *RiskManagerStage {
	return &RiskManagerStage{reviewer: reviewer}
}

func (s *RiskManagerStage) Name() string { return consts.Review }

func (s *RiskManagerStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	if strings.TrimSpace(state.Draft) == "" {
		return &models.StateUpdate{Review: &models.ReviewVerdict{
			Rationale: "No draft to review.",
		}}, nil
	}
	verdict, err := s.reviewer.Review(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}
	if verdict == nil {
		return nil, fmt.Errorf("review failed: reviewer returned no verdict")
	}
	return &models.StateUpdate{Review: verdict}, nil
}

// LLMReviewer asks a chat model for a JSON verdict.
type LLMReviewer struct {
	chain  *agents.PromptChain
	system string
}

func NewLLMReviewer(ctx context.Context, chatModel model.ChatModel, handlers ...callbacks.Handler) (*LLMReviewer, error) {
	system, err := utils.LoadPrompt("managers/risk_manager")
	if err != nil {
		return nil, err
	}
	chain, err := agents.NewPromptChain(ctx, "risk_manager", chatModel, handlers...)
	if err != nil {
		return nil, err
	}
	return &LLMReviewer{chain: chain, system: system}, nil
}

func (r *LLMReviewer) Review(ctx context.Context, state *models.ResearchState) (*models.ReviewVerdict, error) {
	user := fmt.Sprintf("Data Context:\n%s\n--- MEMO UNDER REVIEW ---\n%s\n",
		analysts.BuildDataContext(state), state.Draft)
	answer, err := r.chain.Invoke(ctx, r.system, user)
	if err != nil {
		return nil, err
	}
	return ParseVerdict(answer), nil
}

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
	sentences  = regexp.MustCompile(`[.!?;\n]+`)
	approval   = regexp.MustCompile(`^(?i:(?:final\s+)?(?:verdict|decision)\s*[:-]\s*)?` +
		regexp.QuoteMeta(consts.ApprovalMarker) + `\b`)
)

// ParseVerdict reads a reviewer answer. A JSON object with an "approved"
// field is taken as is. Any other answer approves only when one of its
// sentences opens with the APPROVE marker, so "cannot APPROVE",
// "DISAPPROVE" and "NOT APPROVED" all reject.
func ParseVerdict(answer string) *models.ReviewVerdict {
	answer = strings.TrimSpace(answer)
	if raw := jsonObject.FindString(answer); raw != "" {
		var v struct {
			Approved  *bool  `json:"approved"`
			Rationale string `json:"rationale"`
		}
		if err := json.Unmarshal([]byte(raw), &v); err == nil && v.Approved != nil {
			rationale := strings.TrimSpace(v.Rationale)
			if rationale == "" {
				rationale = answer
			}
			return &models.ReviewVerdict{Approved: *v.Approved, Rationale: rationale}
		}
	}
	return &models.ReviewVerdict{Approved: proseApproves(answer), Rationale: answer}
}

func proseApproves(answer string) bool {
	for _, s := range sentences.Split(answer, -1) {
		if approval.MatchString(strings.Trim(s, " \t*_#>`\"'")) {
			return true
		}
	}
	return false
}
