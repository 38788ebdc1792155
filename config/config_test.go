package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4", cfg.Model.Name)
	assert.Equal(t, 25, cfg.Agents.MaxSteps)
	assert.Equal(t, "assistant", cfg.Agents.DefaultAgentID)
	assert.Empty(t, cfg.Checkpoint.Path)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.AllowedOrigins, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":8000", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("DEFAULT_MODEL_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DEFAULT_MODEL_TEMPERATURE", "0.5")
	t.Setenv("LOG_LEVEL", "debug")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "sk-ant", cfg.APIKey())
	assert.InDelta(t, 0.5, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8081
checkpoint:
  path: /tmp/kernel.db
agents:
  max_steps: 5
`), 0o600))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "/tmp/kernel.db", cfg.Checkpoint.Path)
	assert.Equal(t, 5, cfg.Agents.MaxSteps)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("PORT", "0")
	t.Setenv("DEFAULT_MODEL_PROVIDER", "gemini")
	t.Setenv("LOG_FORMAT", "xml")

	v, err := New("")
	require.NoError(t, err)
	_, err = Load(v)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"server.port", "model.provider", "logging.format"}, fields)
	assert.Contains(t, err.Error(), "3 validation errors")
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{ProviderOpenAI, "sk-openai"},
		{ProviderAnthropic, "sk-ant"},
		{ProviderOllama, "ollama"},
		{ProviderMock, "mock"},
		{"OTHER", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Default()
			cfg.Model.Provider = tt.provider
			cfg.Model.OpenAIAPIKey = "sk-openai"
			cfg.Model.AnthropicAPIKey = "sk-ant"
			assert.Equal(t, tt.want, cfg.APIKey())
		})
	}
}
