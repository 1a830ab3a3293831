package analysts

import (
	"context"
	"fmt"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

// MaxNewsSummary caps each article summary kept in the state, in runes.
const MaxNewsSummary = 400

// NewsStage collects recent coverage of the ticker. No articles is a
// valid outcome; only a provider failure is recorded as an error.
type NewsStage struct {
	provider dataflows.NewsProvider
	limit    int
}

func NewNewsStage(provider dataflows.NewsProvider, limit int) *NewsStage {
	if limit <= 0 {
		limit = consts.DefaultNewsLimit
	}
	return &NewsStage{provider: provider, limit: limit}
}

func (s *NewsStage) Name() string { return consts.FetchNews }

func (s *NewsStage) Run(ctx context.Context, state *models.ResearchState) (*models.StateUpdate, error) {
	articles, err := s.provider.SearchNews(ctx, state.Ticker, s.limit)
	if err != nil {
		return models.ErrorUpdate(state, fmt.Sprintf("news search failed for %s via %s: %v", state.Ticker, s.provider.Name(), err)), nil
	}

	items := make([]models.NewsItem, 0, min(len(articles), s.limit))
	for _, a := range articles {
		if a == nil || len(items) == s.limit {
			continue
		}
		items = append(items, a.ToNewsItem(MaxNewsSummary))
	}
	return &models.StateUpdate{News: items}, nil
}
