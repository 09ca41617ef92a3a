package session

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeStatus is the time budget view of the current stage.
type TimeStatus struct {
	Stage            string  `json:"stage"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	LimitSeconds     float64 `json:"limit_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	RemainingPct     float64 `json:"remaining_pct"`
	ElapsedPct       float64 `json:"elapsed_pct"`
	IsOvertime       bool    `json:"is_overtime"`
}

// QuestionStatus is the minimum-interaction view of the current stage.
type QuestionStatus struct {
	Stage              string `json:"stage"`
	Asked              int    `json:"asked"`
	Minimum            int    `json:"minimum"`
	MetMinimum         bool   `json:"met_minimum"`
	RemainingToMinimum int    `json:"remaining_to_minimum"`
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// UrgencyFor classifies the remaining share of a stage budget.
func UrgencyFor(remainingPct float64) Urgency {
	switch {
	case remainingPct <= 10:
		return UrgencyCritical
	case remainingPct <= 25:
		return UrgencyHigh
	case remainingPct <= 50:
		return UrgencyModerate
	default:
		return UrgencyLow
	}
}

func (e *Engine) TimeStatus() TimeStatus {
	return e.timeStatusAt(e.clock.Now())
}

func (e *Engine) timeStatusAt(now time.Time) TimeStatus {
	cur := e.current()
	elapsed := now.Sub(e.st.stageStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	limit := cur.TimeLimit
	remaining := limit - elapsed
	return TimeStatus{
		Stage:            cur.Name,
		ElapsedSeconds:   elapsed.Seconds(),
		LimitSeconds:     limit.Seconds(),
		RemainingSeconds: remaining.Seconds(),
		RemainingPct:     math.Max(0, 100*remaining.Seconds()/limit.Seconds()),
		ElapsedPct:       math.Min(100, 100*elapsed.Seconds()/limit.Seconds()),
		IsOvertime:       elapsed > limit,
	}
}

func (e *Engine) QuestionStatus() QuestionStatus {
	cur := e.current()
	asked := e.st.interactionsPerStage[cur.Name]
	left := cur.MinInteractions - asked
	if left < 0 {
		left = 0
	}
	return QuestionStatus{
		Stage:              cur.Name,
		Asked:              asked,
		Minimum:            cur.MinInteractions,
		MetMinimum:         asked >= cur.MinInteractions,
		RemainingToMinimum: left,
	}
}

func (e *Engine) Urgency() Urgency {
	return UrgencyFor(e.TimeStatus().RemainingPct)
}

// ShouldTransitionSoon is advisory: the minimum is met and half the budget is gone.
func (e *Engine) ShouldTransitionSoon() bool {
	return e.QuestionStatus().MetMinimum && e.TimeStatus().ElapsedPct >= 50
}

// ProgressLine renders the one-line status block fed to the interviewer prompt.
func (e *Engine) ProgressLine() string {
	return e.progressLine(e.TimeStatus(), e.QuestionStatus())
}

func (e *Engine) progressLine(ts TimeStatus, qs QuestionStatus) string {
	return fmt.Sprintf("[PROGRESS] Stage: %s | Questions: %d/%d min | Time: %.0f%% remaining (%.0fs) | Urgency: %s",
		qs.Stage, qs.Asked, qs.Minimum, ts.RemainingPct, math.Max(0, ts.RemainingSeconds),
		strings.ToUpper(string(UrgencyFor(ts.RemainingPct))))
}
