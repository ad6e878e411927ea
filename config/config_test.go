package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/logging"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, 10, cfg.Loop.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Loop.ToolTimeout)
	assert.Equal(t, 1000, cfg.Events.QueueSize)
	assert.Equal(t, logging.LogLevelInfo, cfg.LogLevel())
}

func TestParse_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Parse([]byte(`
model:
  provider: openai
  name: gpt-4o-mini
  temperature: 0.2
  system: "Be brief."
loop:
  max_iterations: 4
  tool_timeout: 5s
events:
  queue_size: 50
logging:
  level: debug
  format: json
server:
  poll_interval: 10ms
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	require.NotNil(t, cfg.Model.Temperature)
	assert.InDelta(t, 0.2, *cfg.Model.Temperature, 1e-9)
	assert.Equal(t, 4096, cfg.Model.MaxTokens)
	assert.Equal(t, 4, cfg.Loop.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Loop.ToolTimeout)
	assert.Equal(t, 50, cfg.Events.QueueSize)
	assert.True(t, cfg.Events.RegisterDefaults)
	assert.Equal(t, logging.LogLevelDebug, cfg.LogLevel())
	assert.Equal(t, 10*time.Millisecond, cfg.Server.PollInterval)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Loop, cfg.Loop)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("loop:\n  max_iteration: 3\n"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"provider", "model:\n  provider: bard\n"},
		{"iterations", "loop:\n  max_iterations: 0\n"},
		{"queue", "events:\n  queue_size: -1\n"},
		{"temperature", "model:\n  temperature: 3\n"},
		{"level", "logging:\n  level: loud\n"},
		{"format", "logging:\n  format: xml\n"},
		{"timeout", "loop:\n  tool_timeout: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{"ANTHROPIC_API_KEY": "provider-key"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "provider-key", cfg.Model.APIKey)

	env[EnvAPIKey] = "override"
	cfg = Default()
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "override", cfg.Model.APIKey)

	cfg = Default()
	cfg.Model.APIKey = "explicit"
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "explicit", cfg.Model.APIKey)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: scripted\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderScripted, cfg.Model.Provider)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
