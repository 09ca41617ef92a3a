package session

import "github.com/mockflow-core-poc-v1/server/internal/interview/stage"

// CanSkipTo reports whether target lies strictly after the current stage.
func (e *Engine) CanSkipTo(target string) bool {
	i := e.catalog.Index(target)
	return i >= 0 && i > e.catalog.Index(e.st.stage)
}

// QueueSkip accepts a forward-only jump request from an out-of-band channel.
// Rejected requests leave the queue untouched.
func (e *Engine) QueueSkip(target string) (string, error) {
	if e.st.ended {
		return "", ErrSessionEnded
	}
	s, ok := e.catalog.Lookup(target)
	if !ok {
		e.log.Warn().Str("target", target).Msg("skip to unknown stage ignored")
		return "", &InvalidSkipError{Target: target, Current: e.st.stage, Reason: "unknown stage"}
	}
	if !e.CanSkipTo(s.Name) {
		e.log.Warn().Str("target", s.Name).Str("current", e.st.stage).Msg("backward skip ignored")
		return "", &InvalidSkipError{Target: s.Name, Current: e.st.stage, Reason: "target is not ahead of the current stage"}
	}
	e.st.skipRequests = append(e.st.skipRequests, s.Name)
	e.log.Info().Str("target", s.Name).Int("queued", len(e.st.skipRequests)).Msg("skip queued")
	return s.Name, nil
}

// ProcessSkipQueue pops the oldest skip request and re-checks it against the current stage.
func (e *Engine) ProcessSkipQueue() (stage.Stage, bool) {
	if len(e.st.skipRequests) == 0 {
		return stage.Stage{}, false
	}
	head := e.st.skipRequests[0]
	e.st.skipRequests = e.st.skipRequests[1:]
	if !e.CanSkipTo(head) {
		e.log.Warn().Str("target", head).Str("current", e.st.stage).Msg("queued skip no longer valid")
		return stage.Stage{}, false
	}
	s, _ := e.catalog.Get(head)
	return s, true
}

// SkipPending reports whether a skip is waiting for the next requested transition.
func (e *Engine) SkipPending() (string, bool) {
	if len(e.st.skipRequests) == 0 {
		return "", false
	}
	return e.st.skipRequests[0], true
}
