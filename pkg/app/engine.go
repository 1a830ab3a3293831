package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/agents"
	"github.com/dyike/CortexResearch/internal/agents/analysts"
	"github.com/dyike/CortexResearch/internal/agents/managers"
	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

// OfflineModel is the model name reported when no LLM provider is used.
const OfflineModel = "offline"

// Engine is one built research pipeline together with the configuration it
// was built from.
type Engine struct {
	Config  config.Config
	Graph   *graph.ResearchGraph
	Model   string
	BuiltAt time.Time
	Version uint64
}

// Deps overrides the collaborators BuildEngine would otherwise create from
// the configuration.
type Deps struct {
	Logger    *slog.Logger
	Market    dataflows.MarketDataProvider
	News      dataflows.NewsProvider
	ChatModel model.ChatModel
	Hooks     []graph.Hook

	// Fundamentals defaults to the news or market provider when either
	// reports statement ratios.
	Fundamentals dataflows.FundamentalsProvider
}

var engineSeq atomic.Uint64

// BuildEngine wires providers, stages and the research graph for cfg. The
// offline provider swaps the LLM drafter and reviewer for their rule based
// versions.
func BuildEngine(ctx context.Context, cfg config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	market, news := deps.Market, deps.News
	if market == nil || news == nil {
		cache, err := dataflows.NewCache(&cfg)
		if err != nil {
			return nil, err
		}
		if market == nil {
			if market, err = dataflows.NewMarketDataProvider(&cfg, cache); err != nil {
				return nil, err
			}
		}
		if news == nil {
			if news, err = dataflows.NewNewsProvider(&cfg, cache); err != nil {
				return nil, err
			}
		}
	}

	fundamentals := deps.Fundamentals
	if fundamentals == nil {
		if fp, ok := news.(dataflows.FundamentalsProvider); ok {
			fundamentals = fp
		} else if fp, ok := market.(dataflows.FundamentalsProvider); ok {
			fundamentals = fp
		}
	}
	marketStage := analysts.NewMarketDataStage(market, cfg.HistoryDays)
	if fundamentals != nil {
		marketStage.WithFundamentals(fundamentals)
	}

	drafter, reviewer, modelName, err := buildWriters(ctx, &cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	rg, err := graph.NewResearchGraph(&cfg, graph.Collaborators{
		MarketData: marketStage,
		Technicals: analysts.NewTechnicalsStage(),
		News:       analysts.NewNewsStage(news, cfg.NewsLimit),
		Analyst:    analysts.NewAnalystStage(drafter),
		Reviewer:   managers.NewRiskManagerStage(reviewer),
	}, logger, graph.WithHooks(deps.Hooks...))
	if err != nil {
		return nil, err
	}

	logger.Info("research engine built",
		"market_provider", market.Name(),
		"news_provider", news.Name(),
		"model", modelName,
		"stages", rg.Stages())

	return &Engine{
		Config:  cfg,
		Graph:   rg,
		Model:   modelName,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
	}, nil
}

func buildWriters(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (analysts.Drafter, managers.Reviewer, string, error) {
	handlers := []callbacks.Handler{agents.NewLLMLogHandler(logger)}

	deep, quick := deps.ChatModel, deps.ChatModel
	modelName := cfg.DeepThinkLLM
	if deep == nil {
		var err error
		deep, err = agents.NewChatModel(ctx, cfg, cfg.DeepThinkLLM)
		if errors.Is(err, agents.ErrOffline) {
			return analysts.NewTemplateDrafter(), managers.NewRuleReviewer(), OfflineModel, nil
		}
		if err != nil {
			return nil, nil, "", err
		}
		if quick, err = agents.NewChatModel(ctx, cfg, cfg.QuickThinkLLM); err != nil {
			return nil, nil, "", err
		}
	}

	drafter, err := analysts.NewLLMDrafter(ctx, deep, handlers...)
	if err != nil {
		return nil, nil, "", err
	}
	reviewer, err := managers.NewLLMReviewer(ctx, quick, handlers...)
	if err != nil {
		return nil, nil, "", err
	}
	return drafter, reviewer, modelName, nil
}
