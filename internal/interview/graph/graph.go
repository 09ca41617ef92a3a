package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/conversations"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/nodes"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/observers"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph/tools"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

// Runner produces one interviewer turn for a live session.
type Runner interface {
	Invoke(ctx context.Context, sess *session.Session, text string) (model.Reply, error)
}

// Config holds everything needed to compose the interviewer graph end-to-end.
// It constructs the Gemini chat model and the MessagesManager on top of GraphConfig.
type Config struct {
	APIKey       string
	BaseURL      string
	Interviewer  model.InterviewerModelConfig
	HistoryTurns int
	ToolMaxCalls int
	Transcripts  model.TranscriptRepository
	Observer     observers.LLMObserver
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	ToolMaxCalls    int
	Observer        observers.LLMObserver
}

// GraphBuilder handles the construction of the interviewer graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnInput, *schema.Message]
}

type graphRunner struct {
	runnable  compose.Runnable[model.TurnInput, *schema.Message]
	modelName string
	observer  observers.LLMObserver
}

func (r *graphRunner) Invoke(ctx context.Context, sess *session.Session, text string) (model.Reply, error) {
	if sess == nil {
		return model.Reply{}, fmt.Errorf("session is nil")
	}

	// The stage at the start of the turn is what the interviewer believes it is in.
	var believed string
	if err := sess.Inspect(func(e *session.Engine) { believed = e.Stage() }); err != nil {
		return model.Reply{}, err
	}
	ctx = tools.WithTurn(ctx, tools.Turn{Session: sess, Stage: believed})

	out, err := r.runnable.Invoke(ctx, model.TurnInput{
		SessionID: sess.ID(),
		Text:      text,
	}, compose.WithCallbacks(observers.NewAllCallbacks(r.modelName, r.observer)))
	if err != nil {
		return model.Reply{}, err
	}
	return replyFrom(out), nil
}

func replyFrom(out *schema.Message) model.Reply {
	if out == nil {
		return model.Reply{}
	}
	reply := model.Reply{Text: out.Content}
	if v, ok := out.Extra[nodes.ExtraStage].(string); ok {
		reply.Stage = v
	}
	if v, ok := out.Extra[nodes.ExtraAcknowledged].(bool); ok {
		reply.Acknowledged = v
	}
	if v, ok := out.Extra[nodes.ExtraEnded].(bool); ok {
		reply.Ended = v
	}
	if v, ok := out.Extra[nodes.ExtraCostTotal].(float64); ok {
		reply.CostUSD = v
	}
	return reply
}

// BuildInterviewerGraph composes the chat model and MessagesManager, builds the graph, and returns a Runner.
func BuildInterviewerGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Transcripts == nil {
		return nil, fmt.Errorf("transcript repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Interviewer: &cfg.Interviewer,
	})
	if err != nil {
		return nil, err
	}

	return NewRunner(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: conversations.NewMessagesManager(cfg.Transcripts, cfg.HistoryTurns),
		ToolMaxCalls:    cfg.ToolMaxCalls,
		Observer:        cfg.Observer,
	})
}

// NewRunner compiles the graph around already-constructed components.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Interviewer graph built successfully")
	return &graphRunner{
		runnable:  runnable,
		modelName: config.ChatModels.InterviewerModelName,
		observer:  config.Observer,
	}, nil
}

// BuildGraph constructs and returns the compiled interviewer graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Interviewer == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools binds the stage tools to the interviewer model and adds the executor node
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	stageTools := tools.GetInterviewTools()
	toolInfos, err := tools.GetToolInfos(ctx, stageTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModels.BindToolsToInterviewer(ctx, toolInfos); err != nil {
		return err
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               stageTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return sanitizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}
	return nil
}

// sanitizeArguments is best-effort; it never fails a tool call.
func sanitizeArguments(name, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		return "{}"
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}

	var field string
	switch name {
	case tools.ToolRecordInteraction:
		field = "question"
	case tools.ToolRequestTransition:
		field = "reason"
	default:
		return arguments
	}
	if v, ok := m[field]; ok {
		switch vv := v.(type) {
		case string:
			m[field] = strings.TrimSpace(vv)
		case nil:
			delete(m, field)
		default:
			m[field] = strings.TrimSpace(fmt.Sprint(v))
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(out)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeInterviewerChatModel,
		b.config.ChatModels.Interviewer,
		compose.WithStatePreHandler(nodes.NewInterviewerChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewInterviewerChatModelPostHandler(b.config.ChatModels.InterviewerModelName)),
	); err != nil {
		return fmt.Errorf("add interviewer model: %w", err)
	}

	if err := b.graph.AddLambdaNode(nodes.NodeFinalizer,
		nodes.NewFinalizerNode(),
		compose.WithStatePostHandler(nodes.NewFinalizerPostHandler()),
	); err != nil {
		return fmt.Errorf("add finalizer: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeInterviewerChatModel},
		{nodes.NodeToolExecutor, nodes.NodeInterviewerChatModel},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalizer:    true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeInterviewerChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	// Bound run steps so a model that keeps calling tools cannot loop forever.
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps), compose.WithGraphName("interviewer"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
