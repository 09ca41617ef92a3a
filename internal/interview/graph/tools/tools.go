package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
)

const (
	ToolRequestTransition = "request_transition"
	ToolRecordInteraction = "record_interaction"
	ToolGetTimeStatus     = "get_time_status"
	ToolGetQuestionStatus = "get_question_status"
)

type turnKey struct{}

// Turn binds tool calls to the session and the stage the current interviewer turn started in.
type Turn struct {
	Session *session.Session
	Stage   string
}

// WithTurn attaches t to ctx for the duration of one graph invocation.
func WithTurn(ctx context.Context, t Turn) context.Context {
	return context.WithValue(ctx, turnKey{}, t)
}

// TurnFrom returns the turn bound to ctx.
func TurnFrom(ctx context.Context) (Turn, error) {
	t, ok := ctx.Value(turnKey{}).(Turn)
	if !ok || t.Session == nil {
		return Turn{}, fmt.Errorf("no interview session bound to context")
	}
	return t, nil
}

// GetInterviewTools returns the stage tools the interviewer model may call.
func GetInterviewTools() []tool.BaseTool {
	return []tool.BaseTool{
		createRequestTransitionTool(),
		createRecordInteractionTool(),
		createTimeStatusTool(),
		createQuestionStatusTool(),
	}
}

// GetToolInfos extracts ToolInfo from tools.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
