package session

import (
	"time"
)

// Interaction is one accepted interviewer question.
type Interaction struct {
	Text       string    `json:"text"`
	Normalized string    `json:"-"`
	Stage      string    `json:"stage"`
	At         time.Time `json:"at"`
}

// state is the mutable record of one conversation. Only Engine touches it.
type state struct {
	stage          string
	stageStartedAt time.Time
	startedAt      time.Time

	interactionsPerStage map[string]int
	interactions         []Interaction

	transitionCount       int
	forcedTransitionCount int
	skippedStages         []string
	skipRequests          []string

	ack Relay

	// set by the timer once a stage is nearly out of time, cleared by any transition
	pendingTransition       string
	pendingTransitionReason string

	closingInitiated bool
	closingDelivered bool

	milestones map[int]bool

	ended     bool
	endReason string
	endedAt   time.Time
}

func newState(first string, now time.Time) state {
	return state{
		stage:                first,
		stageStartedAt:       now,
		startedAt:            now,
		interactionsPerStage: make(map[string]int),
		milestones:           make(map[int]bool),
	}
}

// Snapshot is a read-only copy of a session's state plus its derived progress.
type Snapshot struct {
	SessionID      string    `json:"session_id"`
	Stage          string    `json:"stage"`
	Label          string    `json:"label"`
	StageIndex     int       `json:"stage_index"`
	StageCount     int       `json:"stage_count"`
	StartedAt      time.Time `json:"started_at"`
	StageStartedAt time.Time `json:"stage_started_at"`

	Time                 TimeStatus     `json:"time"`
	Questions            QuestionStatus `json:"questions"`
	Urgency              Urgency        `json:"urgency"`
	ShouldTransitionSoon bool           `json:"should_transition_soon"`
	Progress             string         `json:"progress"`

	InteractionsPerStage  map[string]int   `json:"interactions_per_stage"`
	TransitionCount       int              `json:"transition_count"`
	ForcedTransitionCount int              `json:"forced_transition_count"`
	SkippedStages         []string         `json:"skipped_stages"`
	SkipRequests          []string         `json:"skip_requests"`
	PendingAck            *Acknowledgement `json:"pending_ack,omitempty"`
	Acknowledged          bool             `json:"acknowledged"`
	PendingTransition     string           `json:"pending_transition,omitempty"`
	PendingReason         string           `json:"pending_transition_reason,omitempty"`
	ClosingInitiated      bool             `json:"closing_initiated"`
	ClosingDelivered      bool             `json:"closing_delivered"`

	Ended     bool      `json:"ended"`
	EndReason string    `json:"end_reason,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}
