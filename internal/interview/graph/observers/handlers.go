package observers

import (
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// LLMObserver receives one record per interviewer model call.
type LLMObserver interface {
	ObserveLLM(model, stage string, promptTokens, completionTokens int, cost float64, success bool, duration time.Duration)
}

// NewAllCallbacks aggregates the prompt, tool and model handlers into one callbacks.Handler.
// obs may be nil.
func NewAllCallbacks(modelName string, obs LLMObserver) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Tool(newToolHandler()).
		ChatModel(newModelHandler(modelName, obs)).
		Prompt(newPromptHandler()).
		Handler()
}
