package prompts

import (
	"fmt"
	"strings"
)

// first matching keyword wins
var roleFocus = []struct {
	keyword string
	focus   string
}{
	{"engineer", "technical skills, problem-solving, system design"},
	{"developer", "coding practices, frameworks, debugging"},
	{"software", "architecture, development process, code quality"},
	{"manager", "team leadership, project planning, stakeholder communication"},
	{"product", "product strategy, user research, roadmap"},
	{"designer", "design process, user research, collaboration"},
	{"analyst", "data analysis, business insights, technical tools"},
	{"devops", "infrastructure, CI/CD, monitoring"},
}

var levelGuidance = map[string]string{
	"entry":  "Focus on learning approach, academic/personal projects.",
	"junior": "Focus on recent projects, technical growth.",
	"mid":    "Focus on independent ownership, technical decisions.",
	"senior": "Focus on system design, mentoring, leadership.",
	"lead":   "Focus on architecture strategy, team guidance.",
	"staff":  "Focus on org-wide impact, technical strategy.",
}

const defaultFocus = "technical experience and problem-solving"

// BuildRoleContext derives interview focus from the job title and seniority.
func BuildRoleContext(jobRole, experienceLevel string) string {
	role := strings.ToLower(jobRole)
	level := strings.ToLower(strings.TrimSpace(experienceLevel))
	if level == "" {
		level = "mid"
	}

	focus := defaultFocus
	for _, rf := range roleFocus {
		if strings.Contains(role, rf.keyword) {
			focus = rf.focus
			break
		}
	}
	guidance, ok := levelGuidance[level]
	if !ok {
		guidance = levelGuidance["mid"]
	}

	title := strings.TrimSpace(jobRole)
	if title == "" {
		title = "position"
	}
	return fmt.Sprintf("For this %s role (%s level):\n- Key focus: %s\n- %s", title, level, focus, guidance)
}
