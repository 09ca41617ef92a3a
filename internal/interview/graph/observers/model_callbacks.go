package observers

import (
	"context"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/tools"
	interviewmodel "github.com/mockflow-core-poc-v1/server/internal/interview/model"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

type modelStartKey struct{}

// newModelHandler logs model calls and reports latency, tokens and cost to obs.
func newModelHandler(modelName string, obs LLMObserver) *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("component", info.Name).Str("stage", stageOf(ctx))
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Str("user", lastUserContent(input.Messages))
			}
			ev.Msg("Model start")
			return context.WithValue(ctx, modelStartKey{}, time.Now())
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			var (
				usage   *schema.TokenUsage
				content string
				calls   int
			)
			if output != nil && output.Message != nil {
				content = strings.TrimSpace(output.Message.Content)
				calls = len(output.Message.ToolCalls)
				if output.Message.ResponseMeta != nil {
					usage = output.Message.ResponseMeta.Usage
				}
			}
			logx.Debug().
				Str("component", info.Name).
				Int("tool_calls", calls).
				Str("assistant", content).
				Msg("Model end")

			if obs != nil {
				_, _, cost := interviewmodel.ComputeCost(usage, interviewmodel.ResolvePricing(modelName))
				var prompt, completion int
				if usage != nil {
					prompt, completion = usage.PromptTokens, usage.CompletionTokens
				}
				obs.ObserveLLM(modelName, stageOf(ctx), prompt, completion, cost, true, since(ctx))
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", info.Name).Msg("Model error")
			if obs != nil {
				obs.ObserveLLM(modelName, stageOf(ctx), 0, 0, 0, false, since(ctx))
			}
			return ctx
		},
	}
}

func since(ctx context.Context) time.Duration {
	if start, ok := ctx.Value(modelStartKey{}).(time.Time); ok {
		return time.Since(start)
	}
	return 0
}

func stageOf(ctx context.Context) string {
	if turn, err := tools.TurnFrom(ctx); err == nil {
		return turn.Stage
	}
	return ""
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m != nil && m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
