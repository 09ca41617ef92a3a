package model

import "github.com/cloudwego/eino/schema"

// TurnInput is one candidate utterance handed to the interviewer graph.
// An empty Text asks the interviewer to speak first (greeting, or after a silence).
type TurnInput struct {
	SessionID string
	Text      string
}

// Reply is the interviewer's spoken turn.
type Reply struct {
	Text string `json:"text"`
	// Stage is where the session stood when the reply was produced.
	Stage        string  `json:"stage"`
	Acknowledged bool    `json:"acknowledged"`
	Ended        bool    `json:"ended"`
	CostUSD      float64 `json:"cost_usd"`
}

// AppState is the per-invocation local state of the interviewer graph.
type AppState struct {
	SessionID            string
	Stage                string
	History              []*schema.Message
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int
	TotalCostUSD         float64
}
