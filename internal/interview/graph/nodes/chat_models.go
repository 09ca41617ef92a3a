package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey      string
	BaseURL     string
	Interviewer *model.InterviewerModelConfig
}

// ChatModels holds the interviewer chat model
type ChatModels struct {
	Interviewer          einomodel.ChatModel
	InterviewerModelName string
}

// NewChatModels creates the Gemini-backed interviewer model
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Interviewer == nil {
		return nil, fmt.Errorf("interviewer model config is nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cfg := config.Interviewer
	interviewer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: cfg.ThinkingBudget > 0,
			ThinkingBudget:  genai.Ptr(cfg.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating interviewer model")
		return nil, fmt.Errorf("error creating interviewer model: %w", err)
	}

	return &ChatModels{
		Interviewer:          interviewer,
		InterviewerModelName: cfg.Model,
	}, nil
}

// BindToolsToInterviewer binds the stage tools to the interviewer model
func (cm *ChatModels) BindToolsToInterviewer(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Interviewer.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Int("tools", len(tools)).Msg("Bound tools to interviewer model")
	return nil
}
