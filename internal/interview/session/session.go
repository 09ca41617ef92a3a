package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
	"github.com/rs/zerolog"
)

// Options wires a session to its collaborators. Nil collaborators are skipped.
type Options struct {
	Catalog      *stage.Catalog
	Clock        Clock
	Speaker      model.Speaker
	Notifier     model.Notifier
	Transcripts  model.TranscriptRepository
	Recorder     Recorder
	Logger       zerolog.Logger
	PollInterval time.Duration
	SpeakTimeout time.Duration
	// EndedRetention is how long a Manager keeps a finished session readable.
	EndedRetention time.Duration
}

// Session runs one interview. A single goroutine owns the Engine; API calls and escalation
// ticks are funnelled to it over a channel, so every state change happens on that goroutine.
type Session struct {
	id      string
	profile model.Profile
	opts    Options
	log     zerolog.Logger

	engine *Engine
	cmds   chan func(*Engine)
	done   chan struct{}
	cancel context.CancelFunc

	effects sync.WaitGroup

	// written by the actor goroutine before done is closed
	final   Snapshot
	summary model.Summary
}

func New(id string, profile model.Profile, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder
	}
	if opts.SpeakTimeout <= 0 {
		opts.SpeakTimeout = 5 * time.Second
	}
	log := opts.Logger.With().Str("session_id", id).Logger()
	vars := stage.Vars{CandidateName: profile.CandidateName, JobRole: profile.JobRole}
	return &Session{
		id:      id,
		profile: profile,
		opts:    opts,
		log:     log,
		engine:  NewEngine(opts.Catalog, opts.Clock, vars, log),
		cmds:    make(chan func(*Engine)),
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Profile() model.Profile { return s.profile }

func (s *Session) Catalog() *stage.Catalog { return s.opts.Catalog }

// Done is closed once the session has ended and its loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start launches the session loop. The loop outlives ctx only until ctx is cancelled.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.opts.Recorder.SessionStarted()
	s.log.Info().Str("stage", s.engine.Stage()).Str("candidate", s.profile.CandidateName).Msg("session started")
	s.notify(model.Event{Type: model.EventStageChange, Stage: s.engine.Stage(), Label: s.engine.current().Label})
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	var tick <-chan time.Time
	if s.opts.PollInterval > 0 {
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.engine.End(ReasonShutdown)
		case cmd := <-s.cmds:
			cmd(s.engine)
		case <-tick:
			s.handleTick(s.engine.Poll())
		}
		if s.engine.Ended() {
			s.finish()
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it.
func (s *Session) do(fn func(*Engine)) error {
	reply := make(chan struct{})
	select {
	case s.cmds <- func(e *Engine) {
		defer close(reply)
		fn(e)
	}:
	case <-s.done:
		return ErrSessionEnded
	}
	<-reply
	return nil
}

// Inspect gives fn consistent access to the engine. fn must not retain e.
func (s *Session) Inspect(fn func(e *Engine)) error {
	return s.do(fn)
}

func (s *Session) RequestTransition(believed, reason string) (Transition, error) {
	var (
		tr  Transition
		err error
	)
	if derr := s.do(func(e *Engine) { tr, err = e.RequestTransition(believed, reason) }); derr != nil {
		return Transition{}, derr
	}
	if err != nil {
		s.rejected("request_transition", err)
		return Transition{}, err
	}
	s.afterTransition(tr, false)
	return tr, nil
}

func (s *Session) ForceTransition(reason string) (Transition, error) {
	var (
		tr  Transition
		err error
	)
	if derr := s.do(func(e *Engine) { tr, err = e.ForceTransition(reason) }); derr != nil {
		return Transition{}, derr
	}
	if err != nil {
		s.rejected("force_transition", err)
		return Transition{}, err
	}
	s.afterTransition(tr, true)
	return tr, nil
}

func (s *Session) RecordInteraction(text string) (InteractionResult, error) {
	var (
		res InteractionResult
		err error
	)
	if derr := s.do(func(e *Engine) { res, err = e.RecordInteraction(text) }); derr != nil {
		return InteractionResult{}, derr
	}
	if err != nil {
		s.rejected("record_interaction", err)
	}
	return res, err
}

// QueueSkip returns the canonical target name on success.
func (s *Session) QueueSkip(target string) (string, error) {
	var (
		name string
		err  error
	)
	if derr := s.do(func(e *Engine) { name, err = e.QueueSkip(target) }); derr != nil {
		return "", derr
	}
	if err != nil {
		s.rejected("queue_skip", err)
	}
	return name, err
}

func (s *Session) TimeStatus() (TimeStatus, error) {
	var ts TimeStatus
	err := s.do(func(e *Engine) { ts = e.TimeStatus() })
	return ts, err
}

func (s *Session) QuestionStatus() (QuestionStatus, error) {
	var qs QuestionStatus
	err := s.do(func(e *Engine) { qs = e.QuestionStatus() })
	return qs, err
}

// TryConsumeAck is the relay path: the interactive side calls it when producing a turn in current.
func (s *Session) TryConsumeAck(current string) (string, bool) {
	var (
		msg string
		ok  bool
	)
	if err := s.do(func(e *Engine) { msg, ok = e.TryConsumeAck(current) }); err != nil {
		return "", false
	}
	if ok {
		s.opts.Recorder.AckDelivered(AckPathRelay)
	}
	return msg, ok
}

// MarkClosingInitiated is called when the interviewer starts speaking in the terminal stage.
func (s *Session) MarkClosingInitiated() bool {
	var ok bool
	_ = s.do(func(e *Engine) { ok = e.MarkClosingInitiated() })
	return ok
}

// MarkClosingDelivered ends the session when the wrap-up was spoken in the terminal stage.
func (s *Session) MarkClosingDelivered() bool {
	var ok bool
	_ = s.do(func(e *Engine) { ok = e.MarkClosingDelivered() })
	return ok
}

// End stops the session with reason and waits for its loop to exit.
func (s *Session) End(reason string) error {
	if err := s.do(func(e *Engine) { e.End(reason) }); err != nil {
		return err
	}
	<-s.done
	return nil
}

// Poll runs one escalation step immediately, outside the ticker.
func (s *Session) Poll() (TickResult, error) {
	var res TickResult
	err := s.do(func(e *Engine) {
		res = e.Poll()
		s.handleTick(res)
	})
	return res, err
}

// Snapshot returns the live state, or the final state once the session has ended.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	if err := s.do(func(e *Engine) { snap = e.Snapshot(s.id) }); err != nil {
		return s.final
	}
	return snap
}

// Summary is only meaningful after Done is closed.
func (s *Session) Summary() model.Summary {
	<-s.done
	return s.summary
}

// RecordTurn stores a transcript line tagged with the stage active right now.
func (s *Session) RecordTurn(ctx context.Context, role model.Role, text string) (model.Turn, error) {
	var name string
	if err := s.do(func(e *Engine) { name = e.Stage() }); err != nil {
		return model.Turn{}, err
	}
	turn := model.Turn{Role: role, Text: text, Stage: name, Timestamp: s.opts.Clock.Now()}
	if s.opts.Transcripts == nil {
		return turn, nil
	}
	if err := s.opts.Transcripts.AddTurn(ctx, s.id, turn); err != nil {
		return turn, fmt.Errorf("record turn: %w", err)
	}
	return turn, nil
}

// Wait blocks until outstanding speak/notify calls have returned.
func (s *Session) Wait() {
	s.effects.Wait()
}

// handleTick runs on the actor goroutine.
func (s *Session) handleTick(res TickResult) {
	for _, m := range res.Milestones {
		s.opts.Recorder.MilestoneReached(res.Stage, m)
	}
	if res.Forced != nil {
		s.afterTransition(*res.Forced, true)
	}
	if res.Fallback != "" {
		text := res.Fallback
		s.effect(func(ctx context.Context) {
			if err := s.speak(ctx, text); err != nil {
				s.log.Warn().Err(err).Msg("closing fallback not spoken")
			}
		})
	}
}

// afterTransition publishes a committed transition. Forced transitions also try to speak the
// acknowledgement right away; the relay keeps its copy until that succeeds.
func (s *Session) afterTransition(tr Transition, speakNow bool) {
	s.opts.Recorder.TransitionCommitted(tr.From, tr.To, tr.Kind)
	s.notify(model.Event{
		Type:     model.EventStageChange,
		Stage:    tr.To,
		Label:    tr.Label,
		From:     tr.From,
		Forced:   tr.Forced(),
		Skipped:  tr.Skipped(),
		Sequence: tr.Sequence,
		Reason:   tr.Reason,
	})
	if !speakNow {
		return
	}
	s.effect(func(ctx context.Context) {
		if err := s.speak(ctx, tr.Ack); err != nil {
			s.log.Warn().Err(err).Int("sequence", tr.Sequence).Msg("acknowledgement left queued for relay")
			return
		}
		var marked bool
		if err := s.do(func(e *Engine) { marked = e.MarkAckDelivered(tr.Sequence) }); err == nil && marked {
			s.opts.Recorder.AckDelivered(AckPathImmediate)
		}
	})
}

func (s *Session) speak(ctx context.Context, text string) error {
	if s.opts.Speaker == nil {
		return model.ErrSpeakerBusy
	}
	if err := s.opts.Speaker.Speak(ctx, s.id, text); err != nil {
		s.opts.Recorder.SpeakFailed()
		return err
	}
	return nil
}

func (s *Session) notify(ev model.Event) {
	if s.opts.Notifier == nil {
		return
	}
	ev.SessionID = s.id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.opts.Clock.Now()
	}
	s.effect(func(ctx context.Context) {
		if err := s.opts.Notifier.Notify(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("event", ev.Type).Msg("notification failed")
		}
	})
}

// effect runs fn off the actor goroutine with a bounded deadline.
func (s *Session) effect(fn func(ctx context.Context)) {
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SpeakTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Session) rejected(op string, err error) {
	reason := RejectionReason(err)
	s.opts.Recorder.OperationRejected(op, reason)
	if errors.Is(err, ErrSessionEnded) {
		return
	}
	s.log.Debug().Err(err).Str("op", op).Msg("operation rejected")
}

// finish runs on the actor goroutine right before the loop exits.
func (s *Session) finish() {
	if s.cancel != nil {
		s.cancel()
	}
	e := s.engine
	s.final = e.Snapshot(s.id)
	s.summary = model.Summary{
		SessionID:         s.id,
		CandidateName:     s.profile.CandidateName,
		JobRole:           s.profile.JobRole,
		ExperienceLevel:   s.profile.ExperienceLevel,
		FinalStage:        e.Stage(),
		EndedBy:           e.EndReason(),
		SkippedStages:     s.final.SkippedStages,
		TransitionCount:   e.TransitionCount(),
		ForcedTransitions: e.ForcedTransitionCount(),
		HasResume:         s.profile.ResumeText != "",
		HasJobDescription: s.profile.JobDescription != "",
		StartedAt:         s.final.StartedAt,
		EndedAt:           s.final.EndedAt,
	}

	reason := e.EndReason()
	s.opts.Recorder.SessionEnded(reason)
	s.notify(model.Event{Type: model.EventSessionEnd, Stage: e.Stage(), Reason: reason})

	if s.opts.Transcripts != nil {
		summary := s.summary
		s.effect(func(ctx context.Context) {
			if err := s.opts.Transcripts.SaveSummary(ctx, summary); err != nil {
				s.log.Error().Err(err).Msg("save summary failed")
			}
		})
	}
}
