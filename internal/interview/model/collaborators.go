package model

import (
	"context"
	"errors"
	"time"
)

// ErrSpeakerBusy is returned by a Speaker that cannot talk right now (the candidate is mid-utterance,
// or no voice client is attached). Callers fall back to the acknowledgement relay.
var ErrSpeakerBusy = errors.New("speaker busy")

// Speaker is the voice pipeline's say() capability.
type Speaker interface {
	Speak(ctx context.Context, sessionID, text string) error
}

const (
	EventStageChange = "stage_change"
	EventSessionEnd  = "session_end"
	EventSpeak       = "speak"
)

// Event is the observer/dashboard notification payload.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage,omitempty"`
	Label     string    `json:"label,omitempty"`
	From      string    `json:"from,omitempty"`
	Forced    bool      `json:"forced,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Sequence  int       `json:"sequence,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events to observers. Delivery failures are never fatal to a session.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Profile describes the candidate a session is run for.
type Profile struct {
	CandidateName   string `json:"candidate_name"`
	CandidateEmail  string `json:"candidate_email,omitempty"`
	JobRole         string `json:"job_role,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
	ResumeText      string `json:"resume_text,omitempty"`
	JobDescription  string `json:"job_description,omitempty"`
	// IncludeDocuments controls whether resume/job description text reaches the prompts.
	IncludeDocuments *bool `json:"include_documents,omitempty"`
}

// DocumentsEnabled defaults to true when the flag was not supplied.
func (p Profile) DocumentsEnabled() bool {
	return p.IncludeDocuments == nil || *p.IncludeDocuments
}
