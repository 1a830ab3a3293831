package consts

const (
	// Display names of the pipeline agents
	Agent_MarketData  = "Market Data"
	Agent_Technicals  = "Technical Analyst"
	Agent_News        = "News Gatherer"
	Agent_Analyst     = "Portfolio Analyst"
	Agent_RiskManager = "Risk Manager"
)

const (
	// ApprovalMarker is the token a prose reviewer emits when it accepts a draft.
	ApprovalMarker = "APPROVE"

	Signal_Buy  = "BUY"
	Signal_Sell = "SELL"
	Signal_Hold = "HOLD"

	DefaultMaxRevisions = 2
	DefaultNewsLimit    = 5
)

// AgentDisplayName maps a stage name to its display name.
func AgentDisplayName(stage string) string {
	switch stage {
	case FetchMarketData:
		return Agent_MarketData
	case ComputeIndicators:
		return Agent_Technicals
	case FetchNews:
		return Agent_News
	case DraftAnalysis:
		return Agent_Analyst
	case Review:
		return Agent_RiskManager
	default:
		return stage
	}
}
