package session

import (
	"time"

	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
	"github.com/rs/zerolog"
)

const (
	KindRequested = "requested"
	KindForced    = "forced"
	KindSkipped   = "skipped"
)

const (
	ReasonCompleted      = "completed"
	ReasonClosingTimeout = "closing_timeout"
	ReasonClientEnded    = "ended_by_client"
	ReasonShutdown       = "shutdown"
	ReasonCancelled      = "cancelled"
)

// Transition describes one committed stage change.
type Transition struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Label    string        `json:"label"`
	Kind     string        `json:"kind"`
	Sequence int           `json:"sequence"`
	Reason   string        `json:"reason,omitempty"`
	Bypassed []string      `json:"bypassed,omitempty"`
	Ack      string        `json:"ack"`
	Elapsed  time.Duration `json:"elapsed"`
	At       time.Time     `json:"at"`
}

func (t Transition) Forced() bool  { return t.Kind == KindForced }
func (t Transition) Skipped() bool { return t.Kind == KindSkipped }

// Engine is the synchronous stage state machine for one session. It is not safe for
// concurrent use; Session serializes every call onto a single goroutine.
type Engine struct {
	catalog *stage.Catalog
	clock   Clock
	vars    stage.Vars
	log     zerolog.Logger
	st      state
}

func NewEngine(catalog *stage.Catalog, clock Clock, vars stage.Vars, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	return &Engine{
		catalog: catalog,
		clock:   clock,
		vars:    vars,
		log:     log,
		st:      newState(catalog.First().Name, clock.Now()),
	}
}

func (e *Engine) Catalog() *stage.Catalog { return e.catalog }

func (e *Engine) Stage() string { return e.st.stage }

func (e *Engine) current() stage.Stage {
	s, _ := e.catalog.Get(e.st.stage)
	return s
}

func (e *Engine) Ended() bool { return e.st.ended }

func (e *Engine) EndReason() string { return e.st.endReason }

func (e *Engine) TransitionCount() int { return e.st.transitionCount }

func (e *Engine) ForcedTransitionCount() int { return e.st.forcedTransitionCount }

// RequestTransition advances from believed to the next stage on behalf of the interactive side.
// A valid queued skip replaces the natural successor. Rejections never mutate state.
func (e *Engine) RequestTransition(believed, reason string) (Transition, error) {
	if e.st.ended {
		return Transition{}, ErrSessionEnded
	}
	if believed != e.st.stage {
		return Transition{}, &StaleStageError{Believed: believed, Current: e.st.stage}
	}
	next, ok := e.catalog.Next(e.st.stage)
	if !ok {
		return Transition{}, &NoNextStageError{Stage: e.st.stage}
	}

	cur := e.current()
	now := e.clock.Now()
	if elapsed := now.Sub(e.st.stageStartedAt); elapsed < cur.MinDwell {
		return Transition{}, &TooSoonError{Stage: cur.Name, Elapsed: elapsed, Required: cur.MinDwell}
	}

	kind := KindRequested
	if target, ok := e.ProcessSkipQueue(); ok {
		next, kind = target, KindSkipped
	}
	return e.commit(next, kind, reason, now), nil
}

// ForceTransition moves to the natural successor without the dwell gate.
func (e *Engine) ForceTransition(reason string) (Transition, error) {
	if e.st.ended {
		return Transition{}, ErrSessionEnded
	}
	next, ok := e.catalog.Next(e.st.stage)
	if !ok {
		return Transition{}, &NoNextStageError{Stage: e.st.stage}
	}
	return e.commit(next, KindForced, reason, e.clock.Now()), nil
}

// commit is the single place current stage is assigned.
func (e *Engine) commit(target stage.Stage, kind, reason string, now time.Time) Transition {
	from := e.st.stage
	tr := Transition{
		From:    from,
		To:      target.Name,
		Label:   target.Label,
		Kind:    kind,
		Reason:  reason,
		Elapsed: now.Sub(e.st.stageStartedAt),
		At:      now,
	}

	if !e.catalog.IsTerminal(from) {
		e.st.closingInitiated = false
		e.st.closingDelivered = false
	}
	e.st.stage = target.Name
	e.st.stageStartedAt = now
	e.st.transitionCount++
	e.st.pendingTransition = ""
	e.st.pendingTransitionReason = ""
	e.st.milestones = make(map[int]bool)

	switch kind {
	case KindForced:
		e.st.forcedTransitionCount++
	case KindSkipped:
		e.st.skippedStages = append(e.st.skippedStages, from)
		for _, s := range e.catalog.Between(from, target.Name) {
			tr.Bypassed = append(tr.Bypassed, s.Name)
		}
	}

	tr.Sequence = e.st.transitionCount
	tr.Ack = stage.AckFor(target, kind == KindForced, e.vars)
	if prev := e.st.ack.Pending(); prev != nil {
		e.log.Warn().Int("dropped_sequence", prev.Sequence).Int("sequence", tr.Sequence).
			Str("dropped_stage", prev.Stage).Msg("undelivered acknowledgement replaced")
	}
	e.st.ack.Queue(tr.Ack, target.Name, tr.Sequence)

	ev := e.log.Info().
		Str("from", from).
		Str("to", target.Name).
		Str("kind", kind).
		Int("sequence", tr.Sequence).
		Dur("elapsed", tr.Elapsed)
	if reason != "" {
		ev = ev.Str("reason", reason)
	}
	if len(tr.Bypassed) > 0 {
		ev = ev.Strs("bypassed", tr.Bypassed)
	}
	ev.Msg("stage transition")
	return tr
}

// End marks the session finished. Later calls keep the first reason.
func (e *Engine) End(reason string) bool {
	if e.st.ended {
		return false
	}
	e.st.ended = true
	e.st.endReason = reason
	e.st.endedAt = e.clock.Now()
	e.log.Info().Str("reason", reason).Str("stage", e.st.stage).Msg("session ended")
	return true
}

// MarkClosingInitiated notes that the wrap-up turn has started in the terminal stage.
func (e *Engine) MarkClosingInitiated() bool {
	if e.st.ended || !e.catalog.IsTerminal(e.st.stage) {
		return false
	}
	e.st.closingInitiated = true
	return true
}

// MarkClosingDelivered records the wrap-up as spoken and ends the session.
func (e *Engine) MarkClosingDelivered() bool {
	if e.st.ended || !e.catalog.IsTerminal(e.st.stage) {
		return false
	}
	e.st.closingInitiated = true
	e.st.closingDelivered = true
	return e.End(ReasonCompleted)
}

// QueueAck overwrites the pending acknowledgement.
func (e *Engine) QueueAck(message, target string) {
	e.st.ack.Queue(message, target, e.st.transitionCount)
}

// TryConsumeAck hands out the pending acknowledgement once the conversation is inside its stage.
func (e *Engine) TryConsumeAck(current string) (string, bool) {
	return e.st.ack.TryConsume(current)
}

// MarkAckDelivered is called after the acknowledgement for sequence was spoken directly.
func (e *Engine) MarkAckDelivered(sequence int) bool {
	return e.st.ack.MarkDelivered(sequence)
}

// Snapshot copies the state together with its progress figures.
func (e *Engine) Snapshot(sessionID string) Snapshot {
	now := e.clock.Now()
	ts := e.timeStatusAt(now)
	qs := e.QuestionStatus()
	counts := make(map[string]int, len(e.st.interactionsPerStage))
	for k, v := range e.st.interactionsPerStage {
		counts[k] = v
	}
	return Snapshot{
		SessionID:             sessionID,
		Stage:                 e.st.stage,
		Label:                 e.current().Label,
		StageIndex:            e.catalog.Index(e.st.stage),
		StageCount:            len(e.catalog.Stages),
		StartedAt:             e.st.startedAt,
		StageStartedAt:        e.st.stageStartedAt,
		Time:                  ts,
		Questions:             qs,
		Urgency:               UrgencyFor(ts.RemainingPct),
		ShouldTransitionSoon:  qs.MetMinimum && ts.ElapsedPct >= 50,
		Progress:              e.progressLine(ts, qs),
		InteractionsPerStage:  counts,
		TransitionCount:       e.st.transitionCount,
		ForcedTransitionCount: e.st.forcedTransitionCount,
		SkippedStages:         append([]string{}, e.st.skippedStages...),
		SkipRequests:          append([]string{}, e.st.skipRequests...),
		PendingAck:            e.st.ack.Pending(),
		Acknowledged:          e.st.ack.Acknowledged(),
		PendingTransition:     e.st.pendingTransition,
		PendingReason:         e.st.pendingTransitionReason,
		ClosingInitiated:      e.st.closingInitiated,
		ClosingDelivered:      e.st.closingDelivered,
		Ended:                 e.st.ended,
		EndReason:             e.st.endReason,
		EndedAt:               e.st.endedAt,
	}
}
