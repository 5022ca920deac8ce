package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures GeminiEngine.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiEngine decides through the Gemini API with function declarations.
type GeminiEngine struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiEngine creates a Gemini-backed engine.
func NewGeminiEngine(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini engine requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	logger.Info("Initializing Gemini engine", "model", cfg.Model)
	return &GeminiEngine{client: client, model: cfg.Model, logger: logger}, nil
}

// Name implements Engine.
func (e *GeminiEngine) Name() string { return "gemini" }

// Close implements Engine.
func (e *GeminiEngine) Close() error { return nil }

// Decide implements Engine.
func (e *GeminiEngine) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
	}
	if decls := geminiDeclarations(req.Agent); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, geminiContents(req), config)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: gemini generate content: %v", domain.ErrEngineFailure, err)
	}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		fc := calls[0]
		e.logger.Debug("Received function call from Gemini", "agent", req.Agent.Name, "function", fc.Name)
		args := stringArgs(fc.Args)
		if target, ok := strings.CutPrefix(fc.Name, handoffToolPrefix); ok {
			return HandoffTo(target, args["reason"]), nil
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", len(req.Outcomes)+1)
		}
		return CallTool(tools.Call{ID: id, Name: tools.Name(fc.Name), Args: args}), nil
	}
	return Final(strings.TrimSpace(resp.Text())), nil
}

func geminiContents(req DecisionRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+2*len(req.Outcomes))
	for _, m := range req.History {
		switch m.Role {
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case domain.RoleSystem:
			contents = append(contents, genai.NewContentFromText("[system] "+m.Content, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	for _, o := range req.Outcomes {
		args := make(map[string]any, len(o.Call.Args))
		for k, v := range o.Call.Args {
			args[k] = v
		}
		contents = append(contents,
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromFunctionCall(string(o.Call.Name), args),
			}, genai.RoleModel),
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromFunctionResponse(string(o.Call.Name), PayloadMap(o.Result)),
			}, genai.RoleUser),
		)
	}
	return contents
}

func geminiDeclarations(def *Definition) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, spec := range def.ToolSpecs() {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(spec.Name),
			Description: spec.Description,
			Parameters:  geminiSchema(spec.Params),
		})
	}
	for _, h := range def.Handoffs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        handoffToolName(h.Target),
			Description: "Hand off to " + h.Target + ". " + h.Description,
			Parameters: geminiSchema([]tools.Param{
				{Name: "reason", Description: "Why the conversation is being transferred."},
			}),
		})
	}
	return decls
}

// geminiSchema returns nil for parameterless functions; the API rejects an
// OBJECT schema with no properties.
func geminiSchema(params []tools.Param) *genai.Schema {
	if len(params) == 0 {
		return nil
	}
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(params)),
	}
	for _, p := range params {
		schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		schema.Required = append(schema.Required, p.Name)
	}
	return schema
}
