package models

// Stage event types.
const (
	EventStageStart = "stage_start"
	EventStageEnd   = "stage_end"
	EventRoute      = "route"
	EventFinish     = "finish"
)

// StageEvent is a progress notification pushed to streaming clients while
// a run executes.
type StageEvent struct {
	RunID     string   `json:"run_id,omitempty"`
	Type      string   `json:"type"`
	Stage     string   `json:"stage,omitempty"`
	Agent     string   `json:"agent,omitempty"`
	Label     string   `json:"label,omitempty"`
	Next      string   `json:"next,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Error     string   `json:"error,omitempty"`
	ElapsedMs int64    `json:"elapsed_ms,omitempty"`
	Revision  int      `json:"revision_number"`
	Report    *Report  `json:"report,omitempty"`
}
