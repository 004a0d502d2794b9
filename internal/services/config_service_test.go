package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
)

func initTestConfig(t *testing.T, apiKey string) {
	t.Helper()
	require.NoError(t, config.InitConfig(&config.Config{
		Port:                  "8080",
		Env:                   config.EnvDevelopment,
		DataDir:               t.TempDir(),
		StorageDriver:         "file",
		AIGatewayURL:          config.DefaultGatewayURL,
		AIGatewayAPIKey:       apiKey,
		ScriptModel:           "google/gemini-2.5-flash",
		ImageModel:            "google/gemini-2.5-flash-image-preview",
		AuthSecretKey:         "test-secret",
		StoryboardConcurrency: 3,
	}))
}

func TestConfigService_UpdateAI(t *testing.T) {
	initTestConfig(t, "")
	ai := NewAIService()
	svc := NewConfigService(ai)

	before := svc.AISettings()
	assert.False(t, before.KeyConfigured)
	assert.False(t, before.Ready)
	assert.Equal(t, "API key not configured", before.ReadyState)

	_, err := svc.UpdateAI("admin", AISettingsInput{GatewayURL: "ftp://gateway.example"})
	assert.True(t, apperrors.IsValidationError(err))
	assert.Empty(t, svc.GetChangeHistory(0))

	after, err := svc.UpdateAI("admin", AISettingsInput{
		GatewayURL:  "https://gateway.example/v1",
		APIKey:      "sk-test-0123456789",
		ScriptModel: "openai/gpt-5-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/v1", after.GatewayURL)
	assert.Equal(t, "openai/gpt-5-mini", after.ScriptModel)
	assert.Equal(t, "google/gemini-2.5-flash-image-preview", after.ImageModel)
	assert.True(t, after.KeyConfigured)
	assert.Equal(t, "...6789", after.KeyHint)
	assert.True(t, after.Ready)

	history := svc.GetChangeHistory(0)
	require.Len(t, history, 3)
	assert.Equal(t, "ai_gateway_url", history[0].Section)
	assert.Equal(t, "ai_gateway_api_key", history[2].Section)
	assert.Equal(t, "<redacted>", history[2].NewValue)
	assert.Len(t, svc.GetChangeHistory(1), 1)
}

func TestHealthService_Check(t *testing.T) {
	env := newTestEnv(t)

	report := NewHealthService("file", env.ai, nil).Check(context.Background(), 5)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "file", report.Storage)
	assert.True(t, report.AIReady)
	assert.Positive(t, report.Goroutines)
	assert.NotZero(t, report.Memory.Sys)

	unconfigured := NewAIService(WithConfigSource(func() *config.AppConfig {
		return &config.AppConfig{AIGatewayURL: config.DefaultGatewayURL}
	}))
	report = NewHealthService("postgres", unconfigured, nil).Check(context.Background(), 0)
	assert.Equal(t, "degraded", report.Status)
	assert.False(t, report.AIReady)
	assert.Nil(t, report.Logs)
}
