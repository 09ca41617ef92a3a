package api

import "github.com/mockflow-core-poc-v1/server/internal/interview/model"

// Sideband message types. stage_change and session_end frames are model.Event values.
const (
	TypeStageChange = model.EventStageChange
	TypeSessionEnd  = model.EventSessionEnd
	TypeSpeak       = model.EventSpeak
	TypeSkipStage   = "skip_stage"
	TypeSkipQueued  = "skip_queued"
	TypeError       = "error"
)

// Error codes carried by error frames.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeRejected       = "rejected"
)

// BaseMessage is used to peek at the type of an inbound frame.
type BaseMessage struct {
	Type string `json:"type"`
}

// SkipStageMessage asks the session to jump ahead to a later stage.
type SkipStageMessage struct {
	Type            string `json:"type"`
	TargetStageName string `json:"target_stage_name"`
}

type SkipQueuedMessage struct {
	Type   string `json:"type"`
	Target string `json:"target_stage_name"`
}

// SpeakMessage asks the voice client to say text now.
type SpeakMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
