// Package config loads kernel configuration through viper from defaults, an
// optional YAML file and environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Model providers.
const (
	ProviderOpenAI    = "OPENAI"
	ProviderAnthropic = "ANTHROPIC"
	ProviderOllama    = "OLLAMA"
	ProviderMock      = "MOCK"
)

// Config is the complete kernel configuration.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Model       ModelConfig      `mapstructure:"model"`
	Checkpoint  CheckpointConfig `mapstructure:"checkpoint"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Agents      AgentsConfig     `mapstructure:"agents"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// SendTimeoutSeconds bounds a single event delivery to an observer.
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds"`
}

// ModelConfig selects and configures the language-model provider.
type ModelConfig struct {
	Provider        string  `mapstructure:"provider"`
	Name            string  `mapstructure:"name"`
	Temperature     float64 `mapstructure:"temperature"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	OllamaBaseURL   string  `mapstructure:"ollama_base_url"`
}

// CheckpointConfig selects the conversation store. An empty Path keeps
// checkpoints in memory.
type CheckpointConfig struct {
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LoggingConfig configures the kernel logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AgentsConfig configures personas and the reasoning loop.
type AgentsConfig struct {
	PersonasFile     string `mapstructure:"personas_file"`
	DefaultAgentID   string `mapstructure:"default_agent_id"`
	MaxSteps         int    `mapstructure:"max_steps"`
	MaxParallelTools int    `mapstructure:"max_parallel_tools"`
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8000,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://localhost:3002",
			},
			SendTimeoutSeconds: 5,
		},
		Model: ModelConfig{
			Provider:      ProviderOpenAI,
			Name:          "gpt-4",
			Temperature:   0,
			OllamaBaseURL: "http://localhost:11434/v1",
		},
		Checkpoint: CheckpointConfig{
			PoolSize: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Agents: AgentsConfig{
			DefaultAgentID:   "assistant",
			MaxSteps:         25,
			MaxParallelTools: 4,
		},
	}
}

// envBindings maps config keys onto their environment variables.
var envBindings = map[string]string{
	"environment":               "ENVIRONMENT",
	"server.port":               "PORT",
	"server.allowed_origins":    "ALLOWED_ORIGINS",
	"model.provider":            "DEFAULT_MODEL_PROVIDER",
	"model.name":                "DEFAULT_MODEL_NAME",
	"model.temperature":         "DEFAULT_MODEL_TEMPERATURE",
	"model.openai_api_key":      "OPENAI_API_KEY",
	"model.anthropic_api_key":   "ANTHROPIC_API_KEY",
	"model.ollama_base_url":     "OLLAMA_BASE_URL",
	"checkpoint.path":           "CHECKPOINT_PATH",
	"logging.level":             "LOG_LEVEL",
	"logging.format":            "LOG_FORMAT",
	"agents.personas_file":      "PERSONAS_FILE",
	"agents.max_steps":          "MAX_STEPS",
	"agents.max_parallel_tools": "MAX_PARALLEL_TOOLS",
}

// SetDefaults registers the defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("environment", defaults.Environment)

	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("server.send_timeout_seconds", defaults.Server.SendTimeoutSeconds)

	v.SetDefault("model.provider", defaults.Model.Provider)
	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.temperature", defaults.Model.Temperature)
	v.SetDefault("model.openai_api_key", "")
	v.SetDefault("model.anthropic_api_key", "")
	v.SetDefault("model.ollama_base_url", defaults.Model.OllamaBaseURL)

	v.SetDefault("checkpoint.path", defaults.Checkpoint.Path)
	v.SetDefault("checkpoint.pool_size", defaults.Checkpoint.PoolSize)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("agents.personas_file", defaults.Agents.PersonasFile)
	v.SetDefault("agents.default_agent_id", defaults.Agents.DefaultAgentID)
	v.SetDefault("agents.max_steps", defaults.Agents.MaxSteps)
	v.SetDefault("agents.max_parallel_tools", defaults.Agents.MaxParallelTools)

	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}
}

// New returns a viper instance with defaults and environment bindings set.
// A non-empty configFile is read as well.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Model.Provider = strings.ToUpper(strings.TrimSpace(c.Model.Provider))
	origins := c.Server.AllowedOrigins[:0]
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.AllowedOrigins = origins
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// APIKey returns the credential of the configured provider. Providers that
// need none report a fixed placeholder.
func (c *Config) APIKey() string {
	switch c.Model.Provider {
	case ProviderOpenAI:
		return c.Model.OpenAIAPIKey
	case ProviderAnthropic:
		return c.Model.AnthropicAPIKey
	case ProviderOllama:
		return "ollama"
	case ProviderMock:
		return "mock"
	default:
		return ""
	}
}
