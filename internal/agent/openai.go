package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures OpenAIEngine. BaseURL points the client at any
// OpenAI-compatible endpoint such as OpenRouter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// chatCompleter is the part of *openai.Client the engine uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIEngine decides through chat completions with function calling. Tools
// are offered as functions; handoffs as transfer_to_<agent> functions.
type OpenAIEngine struct {
	client chatCompleter
	model  string
	logger *slog.Logger
}

// NewOpenAIEngine builds the engine from configuration.
func NewOpenAIEngine(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai engine requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAIEngine(openai.NewClientWithConfig(clientCfg), cfg.Model, logger), nil
}

func newOpenAIEngine(client chatCompleter, model string, logger *slog.Logger) *OpenAIEngine {
	if model == "" {
		model = defaultOpenAIModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initializing OpenAI engine", "model", model)
	return &OpenAIEngine{client: client, model: model, logger: logger}
}

// Name implements Engine.
func (e *OpenAIEngine) Name() string { return "openai" }

// Close implements Engine.
func (e *OpenAIEngine) Close() error { return nil }

// Decide implements Engine.
func (e *OpenAIEngine) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: openAIMessages(req),
		Tools:    openAITools(req.Agent),
	}

	resp, err := e.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: openai chat completion: %v", domain.ErrEngineFailure, err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: openai returned no choices", domain.ErrEngineFailure)
	}

	msg := resp.Choices[0].Message
	e.logger.Debug("Received decision from OpenAI",
		"agent", req.Agent.Name,
		"finish_reason", resp.Choices[0].FinishReason,
		"tool_calls", len(msg.ToolCalls),
	)

	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		var raw map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &raw); err != nil {
				return Decision{}, fmt.Errorf("%w: decode arguments for %s: %v", domain.ErrEngineFailure, tc.Function.Name, err)
			}
		}
		args := stringArgs(raw)
		if target, ok := strings.CutPrefix(tc.Function.Name, handoffToolPrefix); ok {
			return HandoffTo(target, args["reason"]), nil
		}
		return CallTool(tools.Call{ID: tc.ID, Name: tools.Name(tc.Function.Name), Args: args}), nil
	}
	return Final(strings.TrimSpace(msg.Content)), nil
}

func openAIMessages(req DecisionRequest) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	for _, o := range req.Outcomes {
		args, _ := json.Marshal(o.Call.Args)
		msgs = append(msgs,
			openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   o.Call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      string(o.Call.Name),
						Arguments: string(args),
					},
				}},
			},
			openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    PayloadJSON(o.Result),
				Name:       string(o.Call.Name),
				ToolCallID: o.Call.ID,
			},
		)
	}
	return msgs
}

func openAITools(def *Definition) []openai.Tool {
	var out []openai.Tool
	for _, spec := range def.ToolSpecs() {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(spec.Name),
				Description: spec.Description,
				Parameters:  jsonSchema(spec.Params),
			},
		})
	}
	for _, h := range def.Handoffs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        handoffToolName(h.Target),
				Description: "Hand off to " + h.Target + ". " + h.Description,
				Parameters: jsonSchema([]tools.Param{
					{Name: "reason", Description: "Why the conversation is being transferred."},
				}),
			},
		})
	}
	return out
}

// jsonSchema describes a flat object of required string parameters.
func jsonSchema(params []tools.Param) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		props[p.Name] = map[string]any{"type": "string", "description": p.Description}
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
