// Package config loads service configuration from YAML with environment
// overrides for credentials, and builds the completion backend selected by
// the provider field.
package config

import (
	"fmt"
	"os"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/convogate/model"
	"github.com/hupe1980/convogate/model/anthropic"
	"github.com/hupe1980/convogate/model/openai"
	"gopkg.in/yaml.v3"
)

// Recognized completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Config is the top-level service configuration.
type Config struct {
	// Provider selects the completion backend: anthropic, openai or mock.
	Provider string `yaml:"provider"`

	Anthropic ProviderConfig `yaml:"anthropic"`
	OpenAI    ProviderConfig `yaml:"openai"`

	// Persona frames every completion request.
	Persona string `yaml:"persona"`

	// HistoryWindow caps the history included in direct prompts.
	HistoryWindow int `yaml:"history_window"`

	Store  StoreConfig `yaml:"store"`
	Listen string      `yaml:"listen"` // WebSocket push hub address, e.g. ":8080"

	LogLevel string `yaml:"log_level"`
}

// ProviderConfig holds per-provider completion settings. API keys can be
// supplied via environment instead (ANTHROPIC_API_KEY, OPENAI_API_KEY).
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// StoreConfig selects the entity store backend.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`

	// DSN is the sqlite database path, ignored for memory.
	DSN string `yaml:"dsn"`
}

// Default returns the configuration used when no file is present: mock
// completion backend and in-memory storage.
func Default() *Config {
	return &Config{
		Provider:      ProviderMock,
		HistoryWindow: 10,
		Store:         StoreConfig{Driver: "memory"},
		LogLevel:      "info",
	}
}

// Load reads a YAML config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to defaults
// otherwise. Environment overrides apply in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONVOGATE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
}

// Completion builds the completion backend selected by Provider.
func (c *Config) Completion() (model.Completion, error) {
	switch c.Provider {
	case ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			if c.Anthropic.APIKey != "" {
				o.APIKey = c.Anthropic.APIKey
			}
			if c.Anthropic.Model != "" {
				o.Model = sdk.Model(c.Anthropic.Model)
			}
		}), nil
	case ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			if c.OpenAI.APIKey != "" {
				o.APIKey = c.OpenAI.APIKey
			}
			if c.OpenAI.Model != "" {
				o.Model = c.OpenAI.Model
			}
		}), nil
	case ProviderMock, "":
		return model.NewMockCompletion(), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", c.Provider)
	}
}
