package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/conversations"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/prompts"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/tools"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

const (
	NodeInputConverter       = "InputConverter"
	NodeInterviewerChatModel = "InterviewerChatModel"
	NodeToolExecutor         = "ToolExecutor"
	NodeFinalizer            = "Finalizer"
)

// Keys set on the Extra map of the finalized message.
const (
	ExtraStage        = "stage"
	ExtraAcknowledged = "acknowledged"
	ExtraEnded        = "ended"
	ExtraCostTotal    = "usage_cost_total_usd"
)

// NewInputConverterPreHandler resets the per-turn counters.
func NewInputConverterPreHandler() func(context.Context, model.TurnInput, *model.AppState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.AppState) (model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode records the candidate's utterance and assembles the prompt for the
// stage the session is in right now.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) ([]*schema.Message, error) {
		turn, err := tools.TurnFrom(ctx)
		if err != nil {
			return nil, err
		}
		sess := turn.Session

		if text := strings.TrimSpace(input.Text); text != "" {
			if _, err := sess.RecordTurn(ctx, model.RoleCandidate, text); err != nil {
				return nil, fmt.Errorf("record candidate turn: %w", err)
			}
		}

		view, err := stageView(sess)
		if err != nil {
			return nil, err
		}

		systemPrompt, err := prompts.RenderInterviewerSystem(ctx, sess.Profile(), view)
		if err != nil {
			return nil, fmt.Errorf("render interviewer system prompt: %w", err)
		}

		messages, err := mm.BuildContext(ctx, sess.ID(), systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("build interviewer context: %w", err)
		}

		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Stage = view.Stage.Name
			return nil
		})
		return messages, nil
	})
}

func stageView(sess *session.Session) (prompts.StageView, error) {
	var view prompts.StageView
	err := sess.Inspect(func(e *session.Engine) {
		current, _ := e.Catalog().Get(e.Stage())
		qs := e.QuestionStatus()
		view = prompts.StageView{
			Stage:                current,
			IsTerminal:           e.Catalog().IsTerminal(current.Name),
			Progress:             e.ProgressLine(),
			MinimumMet:           qs.MetMinimum,
			ShouldTransitionSoon: e.ShouldTransitionSoon(),
		}
		if target, ok := e.SkipPending(); ok {
			view.SkipTarget = target
		}
	})
	return view, err
}

// NewInterviewerChatModelPreHandler accumulates the tool loop history and appends a wrap-up
// notice once the tool budget is spent.
func NewInterviewerChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Some providers drop tool_call_id on tool results; reattach it from the last assistant call.
		if n := len(in); n > 0 {
			last := in[n-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					last.ToolCallID = msg.ToolCalls[0].ID
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if err := refreshSystemPrompt(ctx, state); err != nil {
			return nil, err
		}

		if markToolLimitBeforeModel(state, maxToolCalls) {
			state.History = append(state.History, schema.SystemMessage(fmt.Sprintf(
				"SYSTEM NOTICE: tool call limit (%d) reached. Do not call any more tools. "+
					"Reply to the candidate now, following the current stage instructions.",
				normalizeMaxToolCalls(maxToolCalls),
			)))
		}

		return state.History, nil
	}
}

// refreshSystemPrompt re-renders the leading system message when a tool call moved the
// session to another stage, so the next model call follows that stage's instructions.
func refreshSystemPrompt(ctx context.Context, state *model.AppState) error {
	if len(state.History) == 0 || state.History[0] == nil || state.History[0].Role != schema.System {
		return nil
	}
	turn, err := tools.TurnFrom(ctx)
	if err != nil {
		return err
	}
	view, err := stageView(turn.Session)
	if err != nil || view.Stage.Name == state.Stage {
		// an ended session is reported by the finalizer
		return nil
	}

	system, err := prompts.RenderInterviewerSystem(ctx, turn.Session.Profile(), view)
	if err != nil {
		return fmt.Errorf("render interviewer system prompt: %w", err)
	}
	log := logx.Session(state.SessionID)
	log.Debug().Str("from", state.Stage).Str("to", view.Stage.Name).Msg("Stage changed mid-turn, system prompt re-rendered")

	state.History[0] = schema.SystemMessage(system)
	state.Stage = view.Stage.Name
	return nil
}

// NewInterviewerChatModelPostHandler tracks cost and gives tool calls stable IDs.
func NewInterviewerChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return out, nil
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			usage := out.ResponseMeta.Usage
			_, _, total := model.ComputeCost(usage, model.ResolvePricing(modelName))
			state.TotalCostUSD += total

			log := logx.Session(state.SessionID)
			log.Debug().
				Str("node", NodeInterviewerChatModel).
				Str("model", modelName).
				Str("stage", state.Stage).
				Int("prompt_tokens", usage.PromptTokens).
				Int("completion_tokens", usage.CompletionTokens).
				Float64("total_cost_usd", total).
				Msg("LLM usage")
		}

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)
		return out, nil
	}
}

// NewToolExecutorCondition routes tool calls to the executor and everything else to the finalizer.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if len(input.ToolCalls) > 0 && !limitReached {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}
		return NodeFinalizer, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds against the per-turn budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		if countToolCall(state, maxToolCalls) {
			log := logx.Session(state.SessionID)
			log.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Msg("Tool call limit exceeded")
		}
		return in, nil
	}
}

// NewFinalizerNode turns the model output into the spoken reply. A pending stage acknowledgement
// is spoken first; a reply in the terminal stage is the wrap-up and ends the session. Both only
// apply when the reply was written for the current stage: if the stage moved during the final
// model call the acknowledgement stays queued and the session stays open.
func NewFinalizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
		turn, err := tools.TurnFrom(ctx)
		if err != nil {
			return nil, err
		}
		sess := turn.Session
		log := logx.Session(sess.ID())

		content := ""
		if msg != nil {
			content = strings.TrimSpace(msg.Content)
		}

		var (
			current  string
			terminal bool
		)
		if err := sess.Inspect(func(e *session.Engine) {
			current = e.Stage()
			terminal = e.Catalog().IsTerminal(current)
		}); err != nil {
			// ended while the model was thinking
			return finalMessage(content, sess.Snapshot().Stage, false, true), nil
		}

		promptedFor := current
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			if state.Stage != "" {
				promptedFor = state.Stage
			}
			return nil
		})
		inStage := promptedFor == current
		if !inStage {
			log.Debug().Str("prompted_for", promptedFor).Str("stage", current).Msg("Stage moved during the reply, acknowledgement left queued")
		}

		var (
			ack          string
			acknowledged bool
		)
		if inStage {
			ack, acknowledged = sess.TryConsumeAck(current)
		}
		if acknowledged {
			content = strings.TrimSpace(ack + " " + content)
		}

		if terminal && inStage {
			sess.MarkClosingInitiated()
		}

		if content != "" {
			if _, err := sess.RecordTurn(ctx, model.RoleInterviewer, content); err != nil {
				log.Error().Err(err).Msg("Error saving interviewer turn")
			}
		}

		ended := false
		if terminal && inStage && content != "" {
			ended = sess.MarkClosingDelivered()
		}

		return finalMessage(content, current, acknowledged, ended), nil
	})
}

// NewFinalizerPostHandler exposes the accumulated cost on the reply.
func NewFinalizerPostHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out != nil {
			out.Extra[ExtraCostTotal] = state.TotalCostUSD
		}
		return out, nil
	}
}

func finalMessage(content, stageName string, acknowledged, ended bool) *schema.Message {
	out := schema.AssistantMessage(content, nil)
	out.Extra = map[string]any{
		ExtraStage:        stageName,
		ExtraAcknowledged: acknowledged,
		ExtraEnded:        ended,
	}
	return out
}
