package nodes

import (
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
)

const DefaultMaxToolCalls = 6

func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// markToolLimitBeforeModel flags the state when the budget is already spent.
// It reports true only the first time.
func markToolLimitBeforeModel(state *model.AppState, max int) bool {
	if state.ToolCallLimitReached || state.ToolCallCount < normalizeMaxToolCalls(max) {
		return false
	}
	state.ToolCallLimitReached = true
	return true
}

// countToolCall records one tool round and reports whether it went over budget.
// The limit flag itself is raised by the next model call, which also gets the wrap-up notice.
func countToolCall(state *model.AppState, max int) bool {
	state.ToolCallCount++
	return state.ToolCallCount > normalizeMaxToolCalls(max)
}
