package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/convogate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
provider: anthropic
persona: "You are the assistant for a wealth planning app."
history_window: 20
store:
  driver: sqlite
  dsn: /var/lib/convogate/entities.db
listen: ":8080"
log_level: debug
anthropic:
  model: claude-sonnet-4-20250514
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convogate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, 20, cfg.HistoryWindow)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/convogate/entities.db", cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Anthropic.Model)
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, "provider: mock\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONVOGATE_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCompletionMock(t *testing.T) {
	cfg := Default()
	completion, err := cfg.Completion()
	require.NoError(t, err)
	assert.IsType(t, &model.MockCompletion{}, completion)
}

func TestCompletionUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider = "cohere"
	_, err := cfg.Completion()
	assert.Error(t, err)
}
