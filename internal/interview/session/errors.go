package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionEnded is returned for any mutation attempted after the session finished.
	ErrSessionEnded = errors.New("session ended")

	// ErrEmptyInteraction rejects questions that normalize to nothing.
	ErrEmptyInteraction = errors.New("interaction text is empty")

	// ErrSessionNotFound is returned by the manager for unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the concurrent session cap is reached.
	ErrTooManySessions = errors.New("too many active sessions")
)

// StaleStageError means the caller's view of the current stage is out of date.
type StaleStageError struct {
	Believed string
	Current  string
}

func (e *StaleStageError) Error() string {
	return fmt.Sprintf("stale stage: caller believes %q but session is in %q", e.Believed, e.Current)
}

// TooSoonError means the current stage has not reached its minimum dwell time.
type TooSoonError struct {
	Stage    string
	Elapsed  time.Duration
	Required time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("stage %q: %.0fs elapsed, %.0fs required before moving on",
		e.Stage, e.Elapsed.Seconds(), e.Required.Seconds())
}

// NoNextStageError means the session is already in the terminal stage.
type NoNextStageError struct {
	Stage string
}

func (e *NoNextStageError) Error() string {
	return fmt.Sprintf("stage %q is the last stage", e.Stage)
}

// InvalidSkipError rejects skip targets that are unknown or not ahead of the current stage.
type InvalidSkipError struct {
	Target  string
	Current string
	Reason  string
}

func (e *InvalidSkipError) Error() string {
	return fmt.Sprintf("cannot skip from %q to %q: %s", e.Current, e.Target, e.Reason)
}

// DuplicateInteractionError rejects a question equivalent to one already asked.
type DuplicateInteractionError struct {
	Text     string
	Previous string
}

func (e *DuplicateInteractionError) Error() string {
	return fmt.Sprintf("duplicate question %q (already asked %q)", e.Text, e.Previous)
}

// RejectionReason returns a short metric label for a rejected operation.
func RejectionReason(err error) string {
	var (
		stale *StaleStageError
		soon  *TooSoonError
		last  *NoNextStageError
		skip  *InvalidSkipError
		dup   *DuplicateInteractionError
	)
	switch {
	case errors.As(err, &stale):
		return "stale_stage"
	case errors.As(err, &soon):
		return "too_soon"
	case errors.As(err, &last):
		return "no_next_stage"
	case errors.As(err, &skip):
		return "invalid_skip"
	case errors.As(err, &dup):
		return "duplicate"
	case errors.Is(err, ErrEmptyInteraction):
		return "empty"
	case errors.Is(err, ErrSessionEnded):
		return "ended"
	default:
		return "other"
	}
}
