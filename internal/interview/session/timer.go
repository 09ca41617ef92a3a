package session

import "github.com/mockflow-core-poc-v1/server/internal/interview/stage"

// Milestones are the elapsed-budget percentages reported once per stage visit.
var Milestones = []int{50, 75, 90, 100}

// TickResult is what one escalation poll decided.
type TickResult struct {
	// Stopped is set once the session has ended, before or during this tick.
	Stopped bool
	// Milestones crossed for the first time in this stage visit.
	Milestones []int
	Stage      string
	Forced     *Transition
	// Fallback is the wrap-up to speak when the closing timeout ended the session.
	Fallback string
}

// Poll runs one escalation step. It is the only place time alone moves a session forward.
func (e *Engine) Poll() TickResult {
	if e.st.ended {
		return TickResult{Stopped: true}
	}

	now := e.clock.Now()
	cur := e.current()
	res := TickResult{Stage: cur.Name}

	if e.catalog.IsTerminal(cur.Name) {
		if now.Sub(e.st.stageStartedAt) >= e.catalog.ClosingTimeout && !e.st.closingDelivered {
			res.Fallback = stage.Render(e.catalog.ClosingFallback, e.vars)
			e.log.Warn().
				Bool("closing_initiated", e.st.closingInitiated).
				Dur("timeout", e.catalog.ClosingTimeout).
				Msg("closing remark never delivered, ending session")
			e.End(ReasonClosingTimeout)
			res.Stopped = true
		}
		return res
	}

	if !e.catalog.Monitored(cur.Name) {
		return res
	}

	ts := e.timeStatusAt(now)
	for _, m := range Milestones {
		if ts.ElapsedPct < float64(m) || e.st.milestones[m] {
			continue
		}
		e.st.milestones[m] = true
		res.Milestones = append(res.Milestones, m)
		e.log.Info().Str("stage", cur.Name).Int("milestone", m).
			Float64("elapsed_seconds", ts.ElapsedSeconds).Msg("stage time milestone")
		if m == 90 {
			if next, ok := e.catalog.Next(cur.Name); ok {
				e.st.pendingTransition = next.Name
				e.st.pendingTransitionReason = "time budget nearly exhausted"
			}
		}
	}

	// budget exhausted
	if ts.RemainingSeconds <= 0 {
		tr, err := e.ForceTransition("time budget exceeded")
		if err != nil {
			e.log.Error().Err(err).Str("stage", cur.Name).Msg("forced transition failed")
			return res
		}
		res.Forced = &tr
	}
	return res
}
