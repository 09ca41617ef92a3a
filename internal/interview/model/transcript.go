package model

import (
	"context"
	"time"
)

type Role string

const (
	RoleCandidate   Role = "user"
	RoleInterviewer Role = "agent"
)

// Turn is one transcript line, tagged with the stage that was active when it was recorded.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is written once when a session ends; scoring and feedback collaborators read it with the transcript.
type Summary struct {
	SessionID         string    `json:"session_id"`
	CandidateName     string    `json:"candidate_name"`
	JobRole           string    `json:"job_role,omitempty"`
	ExperienceLevel   string    `json:"experience_level,omitempty"`
	FinalStage        string    `json:"final_stage"`
	EndedBy           string    `json:"ended_by"`
	SkippedStages     []string  `json:"skipped_stages"`
	TransitionCount   int       `json:"transition_count"`
	ForcedTransitions int       `json:"forced_transitions"`
	HasResume         bool      `json:"has_resume"`
	HasJobDescription bool      `json:"has_job_description"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
}

type TranscriptRepository interface {
	// AddTurn appends a turn to the session transcript
	AddTurn(ctx context.Context, sessionID string, turn Turn) error

	// LoadTranscript returns the whole transcript in recording order
	LoadTranscript(ctx context.Context, sessionID string) ([]Turn, error)

	// LoadRecent returns at most n of the latest turns
	LoadRecent(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// SaveSummary stores the end-of-session summary
	SaveSummary(ctx context.Context, summary Summary) error

	// LoadSummary returns the stored summary, or nil when there is none
	LoadSummary(ctx context.Context, sessionID string) (*Summary, error)
}
