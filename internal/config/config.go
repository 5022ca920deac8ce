// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/wellness-planner/internal/agent"
	"github.com/ashureev/wellness-planner/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	Store       StoreConfig
	// AgentsFile overrides the embedded agent definition table when set.
	AgentsFile      string
	Engine          EngineConfig
	RateLimit       RateLimitConfig
	AuthTokenTTL    time.Duration
	SaveRetries     int
	ConversationLog ConversationLogConfig
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver     string
	DBPath     string
	BadgerPath string
}

// EngineConfig selects and tunes the reasoning engine.
type EngineConfig struct {
	Provider         string
	Model            string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GoogleAPIKey     string
	GrpcAddr         string
	Timeout          time.Duration
	MaxSteps         int
	FailureThreshold int
	HistoryWindow    int
}

// RateLimitConfig bounds chat turns per user.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		Store:       LoadStore(),
		AgentsFile:  getEnv("AGENTS_FILE", ""),
		Engine: EngineConfig{
			Provider:         strings.ToLower(getEnv("ENGINE_PROVIDER", agent.ProviderRules)),
			Model:            getEnv("ENGINE_MODEL", ""),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
			GrpcAddr:         getEnv("ENGINE_GRPC_ADDR", "localhost:50051"),
			Timeout:          getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),
			MaxSteps:         getEnvInt("ENGINE_MAX_STEPS", 6),
			FailureThreshold: getEnvInt("ENGINE_FAILURE_THRESHOLD", 3),
			HistoryWindow:    getEnvInt("ENGINE_HISTORY_WINDOW", 20),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 5),
		},
		AuthTokenTTL: getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		SaveRetries:  getEnvInt("SAVE_RETRIES", 3),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadStore reads only the store settings, for tools that do not run the engine.
func LoadStore() StoreConfig {
	return StoreConfig{
		Driver:     strings.ToLower(getEnv("STORE_DRIVER", store.DriverSQLite)),
		DBPath:     getEnv("DB_PATH", "./data/planner.db"),
		BadgerPath: getEnv("BADGER_PATH", "./data/badger"),
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store.Driver {
	case store.DriverSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case store.DriverBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", store.DriverSQLite, store.DriverBadger, c.Store.Driver)
	}

	switch c.Engine.Provider {
	case agent.ProviderRules:
	case agent.ProviderOpenAI:
		if c.Engine.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for ENGINE_PROVIDER=openai")
		}
	case agent.ProviderGemini:
		if c.Engine.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for ENGINE_PROVIDER=gemini")
		}
	case agent.ProviderGRPC:
		if c.Engine.GrpcAddr == "" {
			return fmt.Errorf("ENGINE_GRPC_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("unknown ENGINE_PROVIDER %q", c.Engine.Provider)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("ENGINE_TIMEOUT must be > 0")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("ENGINE_MAX_STEPS must be > 0")
	}
	if c.Engine.FailureThreshold <= 0 {
		return fmt.Errorf("ENGINE_FAILURE_THRESHOLD must be > 0")
	}
	if c.Engine.HistoryWindow < 0 {
		return fmt.Errorf("ENGINE_HISTORY_WINDOW must be >= 0")
	}

	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be > 0")
	}
	if c.SaveRetries < 0 {
		return fmt.Errorf("SAVE_RETRIES must be >= 0")
	}

	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AgentEngine returns the engine factory configuration.
func (c *Config) AgentEngine() agent.Config {
	return agent.Config{
		Provider:      c.Engine.Provider,
		ModelName:     c.Engine.Model,
		OpenAIAPIKey:  c.Engine.OpenAIAPIKey,
		OpenAIBaseURL: c.Engine.OpenAIBaseURL,
		GoogleAPIKey:  c.Engine.GoogleAPIKey,
		GrpcAddr:      c.Engine.GrpcAddr,
	}
}

// ConversationLogger returns the conversation log configuration.
func (c *Config) ConversationLogger() agent.ConversationLogConfig {
	out := agent.ConversationLogConfig{
		Enabled:   c.ConversationLog.Enabled,
		Dir:       c.ConversationLog.Dir,
		QueueSize: c.ConversationLog.QueueSize,
	}
	if c.ConversationLog.GlobalEnabled {
		out.GlobalFile = c.ConversationLog.GlobalPath
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("45s") or bare seconds ("45").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
