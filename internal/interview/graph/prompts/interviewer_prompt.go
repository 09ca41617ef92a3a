package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/tools"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
)

//go:embed template/interviewer_prompt.txt
var interviewerSystemPrompt string

const (
	resumeLimit         = 1500
	jobDescriptionLimit = 1000
)

// StageView is what the prompt needs to know about the live session.
type StageView struct {
	Stage                stage.Stage
	IsTerminal           bool
	Progress             string
	MinimumMet           bool
	ShouldTransitionSoon bool
	SkipTarget           string
}

// RenderInterviewerSystem renders the interviewer system prompt through the Eino prompt component
// so prompt callbacks fire.
func RenderInterviewerSystem(ctx context.Context, profile model.Profile, view StageView) (string, error) {
	vars := stage.Vars{CandidateName: profile.CandidateName, JobRole: profile.JobRole}

	name := strings.TrimSpace(profile.CandidateName)
	if name == "" {
		name = "the candidate"
	}
	role := strings.TrimSpace(profile.JobRole)
	if role == "" {
		role = "a technical position"
	}
	level := strings.TrimSpace(profile.ExperienceLevel)
	if level == "" {
		level = "mid-level"
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(interviewerSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"CandidateName":        name,
		"JobRole":              role,
		"ExperienceLevel":      level,
		"RoleContext":          BuildRoleContext(profile.JobRole, profile.ExperienceLevel),
		"StageName":            view.Stage.Name,
		"StageLabel":           view.Stage.Label,
		"Instructions":         strings.TrimSpace(stage.Render(view.Stage.Instructions, vars)),
		"Documents":            DocumentContext(profile, view.Stage),
		"Progress":             view.Progress,
		"IsTerminal":           view.IsTerminal,
		"MinimumMet":           view.MinimumMet,
		"ShouldTransitionSoon": view.ShouldTransitionSoon,
		"SkipTarget":           view.SkipTarget,
		"TransitionTool":       tools.ToolRequestTransition,
		"RecordTool":           tools.ToolRecordInteraction,
		"TimeTool":             tools.ToolGetTimeStatus,
		"QuestionTool":         tools.ToolGetQuestionStatus,
	})
	if err != nil {
		return "", fmt.Errorf("interviewer prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("interviewer prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// DocumentContext returns the excerpt of the document the stage asks for, if the candidate
// supplied one and allowed its use.
func DocumentContext(profile model.Profile, s stage.Stage) string {
	if !profile.DocumentsEnabled() {
		return ""
	}
	switch s.Documents {
	case stage.DocumentResume:
		if text := strings.TrimSpace(profile.ResumeText); text != "" {
			return "Resume highlights:\n" + truncate(text, resumeLimit)
		}
	case stage.DocumentJobDescription:
		if text := strings.TrimSpace(profile.JobDescription); text != "" {
			return "Job description:\n" + truncate(text, jobDescriptionLimit)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
