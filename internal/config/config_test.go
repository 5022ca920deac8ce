package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "ENGINE_PROVIDER", "ENGINE_TIMEOUT", "SAVE_RETRIES", "PORT"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("ENGINE_PROVIDER", "rules")
	t.Setenv("ENGINE_TIMEOUT", "45")
	t.Setenv("SAVE_RETRIES", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 2, cfg.SaveRetries)
	assert.Equal(t, 6, cfg.Engine.MaxSteps)
	assert.Equal(t, "", cfg.ConversationLogger().GlobalFile)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown provider", map[string]string{"ENGINE_PROVIDER": "oracle"}},
		{"openai without key", map[string]string{"ENGINE_PROVIDER": "openai", "OPENAI_API_KEY": ""}},
		{"gemini without key", map[string]string{"ENGINE_PROVIDER": "gemini", "GOOGLE_API_KEY": ""}},
		{"zero steps", map[string]string{"ENGINE_MAX_STEPS": "0"}},
		{"zero timeout", map[string]string{"ENGINE_TIMEOUT": "0s"}},
		{"negative retries", map[string]string{"SAVE_RETRIES": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "sqlite")
			t.Setenv("ENGINE_PROVIDER", "rules")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DURATION", time.Second))
	t.Setenv("X_DURATION", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("X_DURATION", time.Second))
}

func TestConversationLoggerGlobalFile(t *testing.T) {
	cfg := &Config{ConversationLog: ConversationLogConfig{
		Enabled:       true,
		Dir:           "logs",
		GlobalEnabled: true,
		GlobalPath:    "logs/all.ndjson",
		QueueSize:     10,
	}}
	got := cfg.ConversationLogger()
	assert.Equal(t, "logs/all.ndjson", got.GlobalFile)
	assert.Equal(t, 10, got.QueueSize)
}
