package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
)

// ===================================
// Request Transition Tool
// ===================================

type RequestTransitionInput struct {
	Reason string `json:"reason,omitempty"`
}

type RequestTransitionOutput struct {
	Success bool   `json:"success"`
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message"`
}

func createRequestTransitionTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRequestTransition,
			Desc: "Move the interview to its next stage once the current stage is complete. May be refused if the stage started too recently; the result explains what to do instead.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"reason": {
					Type: "string",
					Desc: "Short reason the current stage is complete",
				},
			}),
		},
		func(ctx context.Context, in *RequestTransitionInput) (*RequestTransitionOutput, error) {
			turn, err := TurnFrom(ctx)
			if err != nil {
				return nil, err
			}
			tr, err := turn.Session.RequestTransition(turn.Stage, strings.TrimSpace(in.Reason))
			if err != nil {
				return &RequestTransitionOutput{From: turn.Stage, Message: Guidance(err)}, nil
			}
			msg := fmt.Sprintf("Moved to %s. Follow the new stage instructions from your next reply.", tr.Label)
			return &RequestTransitionOutput{
				Success: true,
				From:    tr.From,
				To:      tr.To,
				Skipped: tr.Skipped(),
				Message: msg,
			}, nil
		},
	)
}

// ===================================
// Record Interaction Tool
// ===================================

type RecordInteractionInput struct {
	Question string `json:"question"`
}

type RecordInteractionOutput struct {
	Accepted  bool   `json:"accepted"`
	Stage     string `json:"stage,omitempty"`
	Asked     int    `json:"asked"`
	Minimum   int    `json:"minimum"`
	Remaining int    `json:"remaining_to_minimum"`
	Message   string `json:"message"`
}

func createRecordInteractionTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRecordInteraction,
			Desc: "Record a question you are asking the candidate. Repeated or overlapping questions are refused.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"question": {
					Type:     "string",
					Desc:     "The question exactly as asked",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *RecordInteractionInput) (*RecordInteractionOutput, error) {
			turn, err := TurnFrom(ctx)
			if err != nil {
				return nil, err
			}
			res, err := turn.Session.RecordInteraction(in.Question)
			if err != nil {
				return &RecordInteractionOutput{Message: Guidance(err)}, nil
			}
			msg := "Question recorded."
			if res.Remaining > 0 {
				msg = fmt.Sprintf("Question recorded. %d more needed before this stage can end.", res.Remaining)
			}
			return &RecordInteractionOutput{
				Accepted:  true,
				Stage:     res.Stage,
				Asked:     res.Count,
				Minimum:   res.Minimum,
				Remaining: res.Remaining,
				Message:   msg,
			}, nil
		},
	)
}

// ===================================
// Status Tools
// ===================================

type StatusInput struct{}

type TimeStatusOutput struct {
	session.TimeStatus
	Urgency session.Urgency `json:"urgency"`
	Advice  string          `json:"advice"`
}

func createTimeStatusTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetTimeStatus,
			Desc: "Time spent and remaining in the current stage.",
		},
		func(ctx context.Context, _ *StatusInput) (*TimeStatusOutput, error) {
			turn, err := TurnFrom(ctx)
			if err != nil {
				return nil, err
			}
			ts, err := turn.Session.TimeStatus()
			if err != nil {
				return nil, err
			}
			urgency := session.UrgencyFor(ts.RemainingPct)
			return &TimeStatusOutput{TimeStatus: ts, Urgency: urgency, Advice: urgencyAdvice(urgency)}, nil
		},
	)
}

func createQuestionStatusTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetQuestionStatus,
			Desc: "Questions asked so far in the current stage against its minimum.",
		},
		func(ctx context.Context, _ *StatusInput) (*session.QuestionStatus, error) {
			turn, err := TurnFrom(ctx)
			if err != nil {
				return nil, err
			}
			qs, err := turn.Session.QuestionStatus()
			if err != nil {
				return nil, err
			}
			return &qs, nil
		},
	)
}

func urgencyAdvice(u session.Urgency) string {
	switch u {
	case session.UrgencyCritical:
		return "Time is almost up. Finish the current answer and move on."
	case session.UrgencyHigh:
		return "Ask at most one more question in this stage."
	case session.UrgencyModerate:
		return "Past the halfway mark. Prioritise the most important questions."
	default:
		return "Plenty of time left."
	}
}

// Guidance turns a session error into an instruction the interviewer can act on.
func Guidance(err error) string {
	var (
		stale *session.StaleStageError
		soon  *session.TooSoonError
		last  *session.NoNextStageError
		dup   *session.DuplicateInteractionError
	)
	switch {
	case errors.As(err, &stale):
		return fmt.Sprintf("The interview has already moved on to %s. Continue with that stage.", stale.Current)
	case errors.As(err, &soon):
		return fmt.Sprintf("Too early to move on: %.0fs of the required %.0fs have passed. Ask another question first.",
			soon.Elapsed.Seconds(), soon.Required.Seconds())
	case errors.As(err, &last):
		return "This is the final stage. Deliver your closing remark."
	case errors.As(err, &dup):
		return fmt.Sprintf("You already asked something similar (%q). Ask a different question.", dup.Previous)
	case errors.Is(err, session.ErrEmptyInteraction):
		return "The question was empty. Pass the exact question you asked."
	case errors.Is(err, session.ErrSessionEnded):
		return "The interview has ended."
	default:
		return err.Error()
	}
}
