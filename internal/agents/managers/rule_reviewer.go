package managers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
)

// RequiredSections are the memo headings RuleReviewer looks for.
var RequiredSections = []string{
	"Executive Summary",
	"Fundamental Deep Dive",
	"Technical Analysis",
	"Sentiment & News",
	"Risks",
}

var (
	callPattern       = regexp.MustCompile(`\b(BUY|SELL|HOLD)\b`)
	confidencePattern = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*confidence|confidence[^0-9\n]{0,24}(\d{1,3})\s*%`)
)

// RuleReviewer is a deterministic review policy: the memo must carry every
// required section, a call, a confidence of at least MinConfidence and,
// when the run recorded errors, a Data Gaps section.
type RuleReviewer struct {
	MinConfidence int
}

func NewRuleReviewer() *RuleReviewer {
	return &RuleReviewer{MinConfidence: 50}
}

func (r *RuleReviewer) Review(_ context.Context, state *models.ResearchState) (*models.ReviewVerdict, error) {
	draft := state.Draft
	lower := strings.ToLower(draft)

	var issues []string
	for _, section := range RequiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			issues = append(issues, fmt.Sprintf("add a %q section", section))
		}
	}
	if !callPattern.MatchString(draft) {
		issues = append(issues, "state an explicit BUY, SELL or HOLD call")
	}
	if c, ok := statedConfidence(draft); !ok {
		issues = append(issues, "state a confidence score")
	} else if c < r.MinConfidence {
		issues = append(issues, fmt.Sprintf("raise the confidence to at least %d%% or change the call", r.MinConfidence))
	}
	if len(state.Errors) > 0 && !strings.Contains(lower, "data gaps") {
		issues = append(issues, "list the missing inputs in a \"Data Gaps\" section")
	}

	if len(issues) == 0 {
		return &models.ReviewVerdict{
			Approved:  true,
			Rationale: consts.ApprovalMarker + ": the memo covers every required section with a clear call.",
		}, nil
	}
	var b strings.Builder
	b.WriteString("Revise the memo:")
	for i, issue := range issues {
		fmt.Fprintf(&b, "\n%d. %s", i+1, issue)
	}
	return &models.ReviewVerdict{Rationale: b.String()}, nil
}

func statedConfidence(draft string) (int, bool) {
	m := confidencePattern.FindStringSubmatch(draft)
	if m == nil {
		return 0, false
	}
	s := m[1]
	if s == "" {
		s = m[2]
	}
	v, err := strconv.Atoi(s)
	return v, err == nil
}
