package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agora/backend/internal/orchestration"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "AGORA_ASK_RPS", "AGORA_ASK_BURST", "CORS_ALLOWED_ORIGINS",
		"AGORA_MAX_INVOCATIONS", "AGORA_MAX_MESSAGE_LENGTH", "AGORA_DECISION_MAX_TOKENS",
		"AGORA_FILTER_MAX_TOKENS", "AGORA_MANAGER", "AGORA_ROSTER_FILE", "STORE_BACKEND",
		"REDIS_DB", "LOG_LEVEL", "LOG_FORMAT", "ARK_STREAM",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Orchestration.MaxInvocations)
	assert.Equal(t, 500, cfg.Orchestration.MaxMessageLength)
	assert.Equal(t, 15, cfg.Orchestration.DecisionMaxTokens)
	assert.Equal(t, ManagerModel, cfg.Orchestration.Manager)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.AI.StreamResponse)
	assert.Empty(t, cfg.Server.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AGORA_MAX_INVOCATIONS", "5")
	t.Setenv("AGORA_MANAGER", "ROUND_ROBIN")
	t.Setenv("AGORA_FILTER_MAX_TOKENS", "0")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Orchestration.MaxInvocations)
	assert.Equal(t, ManagerRoundRobin, cfg.Orchestration.Manager)
	assert.Equal(t, 0, cfg.Orchestration.FilterMaxTokens)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)

	rt := cfg.Orchestration.Runtime(false)
	assert.Equal(t, orchestration.Config{MaxInvocations: 5, MaxQuestionLength: 500, DecisionMaxTokens: 15}, rt)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"PORT":                  "80 80",
		"AGORA_MAX_INVOCATIONS": "0",
		"AGORA_ASK_BURST":       "-1",
		"AGORA_MANAGER":         "random",
		"STORE_BACKEND":         "postgres",
		"ARK_TEMPERATURE":       "warm",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{}.Enabled())
	assert.True(t, AIConfig{Model: "doubao", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "doubao", AccessKey: "a", SecretKey: "s"}.Enabled())
}
