package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Engine providers accepted by NewEngine.
const (
	ProviderRules  = "rules"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGRPC   = "grpc"
)

// Config selects and configures the reasoning engine.
type Config struct {
	Provider      string
	ModelName     string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GoogleAPIKey  string
	GrpcAddr      string
}

// NewEngine builds the configured engine.
func NewEngine(ctx context.Context, cfg Config, logger *slog.Logger) (Engine, error) {
	switch cfg.Provider {
	case ProviderRules, "":
		return NewRulesEngine(), nil
	case ProviderOpenAI:
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.ModelName,
		}, logger)
	case ProviderGemini:
		return NewGeminiEngine(ctx, GeminiConfig{APIKey: cfg.GoogleAPIKey, Model: cfg.ModelName}, logger)
	case ProviderGRPC:
		gcfg := DefaultGrpcEngineConfig()
		if cfg.GrpcAddr != "" {
			gcfg.Address = cfg.GrpcAddr
		}
		return NewGrpcEngine(gcfg, logger)
	default:
		return nil, fmt.Errorf("unknown engine provider %q", cfg.Provider)
	}
}
