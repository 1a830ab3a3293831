package consts

// GraphName names the research pipeline in eino callbacks and the devops UI.
const GraphName = "CortexResearch-Pipeline"

const (
	// 数据采集节点
	FetchMarketData   = "fetch_market_data"
	ComputeIndicators = "compute_indicators"
	FetchNews         = "fetch_news"

	// 并行采集时的组合节点
	GatherData = "gather_data"
	MarketPath = "market_path"

	// 分析与审阅节点
	DraftAnalysis = "draft_analysis"
	Review        = "review"
)

// Branch labels emitted by the revision loop decision.
const (
	LabelRevision = "revision"
	LabelEnd      = "end"
)
