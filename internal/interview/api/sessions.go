package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
)

type CreateSessionResponse struct {
	SessionID string           `json:"session_id"`
	Snapshot  session.Snapshot `json:"snapshot"`
}

// CreateSession starts a session for a candidate.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var profile model.Profile
	if err := c.Bind(&profile); err != nil {
		return badRequest(c, "invalid request body")
	}
	profile.CandidateName = strings.TrimSpace(profile.CandidateName)
	if profile.CandidateName == "" {
		return badRequest(c, "candidate_name is required")
	}

	sess, err := h.opts.Manager.Start(c.Request().Context(), profile)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, CreateSessionResponse{SessionID: sess.ID(), Snapshot: sess.Snapshot()})
}

// GetSession returns the live snapshot, or the final one after the session ended.
// GET /v1/sessions/:id
func (h *Handler) GetSession(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.opts.Manager.Lookup(id)
	if err == nil {
		return c.JSON(http.StatusOK, sess.Snapshot())
	}
	if !errors.Is(err, session.ErrSessionNotFound) || h.opts.Transcripts == nil {
		return fail(c, err)
	}

	// no longer retained in memory; the stored summary is all that is left
	summary, lerr := h.opts.Transcripts.LoadSummary(c.Request().Context(), id)
	if lerr != nil {
		return fail(c, lerr)
	}
	if summary == nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, ArchivedSessionResponse{SessionID: id, Ended: true, Summary: *summary})
}

// ArchivedSessionResponse describes a finished session the manager no longer holds.
type ArchivedSessionResponse struct {
	SessionID string        `json:"session_id"`
	Ended     bool          `json:"ended"`
	Summary   model.Summary `json:"summary"`
}

type EndSessionResponse struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Summary  model.Summary    `json:"summary"`
}

// EndSession stops a session on the client's behalf.
// DELETE /v1/sessions/:id
func (h *Handler) EndSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.opts.Manager.End(id, session.ReasonClientEnded); err != nil {
		return fail(c, err)
	}
	sess, err := h.opts.Manager.Lookup(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, EndSessionResponse{Snapshot: sess.Snapshot(), Summary: sess.Summary()})
}

type TransitionRequest struct {
	BelievedStage string `json:"believed_stage"`
	Reason        string `json:"reason"`
	Force         bool   `json:"force"`
}

// Transition requests (or forces) a move to the next stage.
// POST /v1/sessions/:id/transition
func (h *Handler) Transition(c echo.Context) error {
	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !req.Force && strings.TrimSpace(req.BelievedStage) == "" {
		return badRequest(c, "believed_stage is required")
	}

	sess, err := h.opts.Manager.Get(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}

	var tr session.Transition
	if req.Force {
		tr, err = sess.ForceTransition(req.Reason)
	} else {
		tr, err = sess.RequestTransition(strings.TrimSpace(req.BelievedStage), req.Reason)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tr)
}

type InteractionRequest struct {
	Question string `json:"question"`
}

// RecordInteraction counts a question toward the current stage's minimum.
// POST /v1/sessions/:id/interactions
func (h *Handler) RecordInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	sess, err := h.opts.Manager.Get(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	res, err := sess.RecordInteraction(req.Question)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type SkipRequest struct {
	TargetStageName string `json:"target_stage_name"`
}

// Skip queues a jump to a later stage; it takes effect on the next accepted transition.
// POST /v1/sessions/:id/skip
func (h *Handler) Skip(c echo.Context) error {
	var req SkipRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	sess, err := h.opts.Manager.Get(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	target, err := sess.QueueSkip(req.TargetStageName)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"target_stage_name": target})
}

type TurnRequest struct {
	Text string `json:"text"`
}

// Turn runs the interviewer on the candidate's utterance and returns the spoken reply.
// POST /v1/sessions/:id/turns
func (h *Handler) Turn(c echo.Context) error {
	if h.opts.Runner == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "interviewer model is not configured"})
	}
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	sess, err := h.opts.Manager.Get(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	reply, err := h.opts.Runner.Invoke(c.Request().Context(), sess, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

type TranscriptResponse struct {
	Turns   []model.Turn   `json:"turns"`
	Summary *model.Summary `json:"summary,omitempty"`
}

// Transcript returns the stage-tagged transcript and, once written, the session summary.
// GET /v1/sessions/:id/transcript
func (h *Handler) Transcript(c echo.Context) error {
	if h.opts.Transcripts == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "transcript store is not configured"})
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	turns, err := h.opts.Transcripts.LoadTranscript(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	summary, err := h.opts.Transcripts.LoadSummary(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if len(turns) == 0 && summary == nil {
		if _, err := h.opts.Manager.Lookup(id); err != nil {
			return fail(c, err)
		}
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return c.JSON(http.StatusOK, TranscriptResponse{Turns: turns, Summary: summary})
}
