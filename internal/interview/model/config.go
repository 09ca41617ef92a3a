package model

import "time"

// ================ Config ================
type SessionConfig struct {
	PollInterval  time.Duration `envconfig:"SESSION_POLL_INTERVAL" default:"5s"`
	MaxConcurrent int           `envconfig:"SESSION_MAX_CONCURRENT" default:"10"`
	CatalogPath   string        `envconfig:"SESSION_CATALOG_PATH"`
	SpeakTimeout  time.Duration `envconfig:"SESSION_SPEAK_TIMEOUT" default:"5s"`
	TranscriptTTL time.Duration `envconfig:"SESSION_TRANSCRIPT_TTL" default:"24h"`
	// finished sessions stay in memory this long; after that GET falls back to the stored summary
	EndedRetention time.Duration `envconfig:"SESSION_ENDED_RETENTION" default:"10m"`
	HistoryTurns  int           `envconfig:"SESSION_HISTORY_TURNS" default:"12"`
	ToolMaxCalls  int           `envconfig:"SESSION_TOOL_MAX_CALLS" default:"6"`
}

type InterviewerModelConfig struct {
	Model       string  `envconfig:"INTERVIEWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"INTERVIEWER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"INTERVIEWER_TEMPERATURE" default:"0.7"`
	// spoken replies need low latency, so thinking is off unless asked for
	ThinkingBudget int32 `envconfig:"INTERVIEWER_THINKING_BUDGET" default:"0"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	WSPingInterval  time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	WSWriteTimeout  time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	WSReadTimeout   time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
	WSMaxMessage    int64         `envconfig:"WS_MAX_MESSAGE_SIZE" default:"65536"`
}
