package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // config key, e.g. "server.port"
	Value   any
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every validation failure of a Config.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidProviders returns the supported model providers.
func ValidProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderMock}
}

// ValidLogLevels returns the accepted log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted log formats.
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate checks c and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateModel()...)
	errs = append(errs, c.validateCheckpoint()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateAgents()...)
	return errs
}

func (c *Config) validateServer() []ValidationError {
	var errs []ValidationError
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Value: c.Server.Port, Message: "must be between 1 and 65535"})
	}
	if c.Server.SendTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{Field: "server.send_timeout_seconds", Value: c.Server.SendTimeoutSeconds, Message: "must be at least 1"})
	}
	return errs
}

func (c *Config) validateModel() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidProviders(), c.Model.Provider) {
		errs = append(errs, ValidationError{
			Field:   "model.provider",
			Value:   c.Model.Provider,
			Message: "must be one of " + strings.Join(ValidProviders(), ", "),
		})
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "model.temperature", Value: c.Model.Temperature, Message: "must be between 0 and 2"})
	}
	if c.Model.Provider == ProviderOllama && c.Model.OllamaBaseURL == "" {
		errs = append(errs, ValidationError{Field: "model.ollama_base_url", Value: c.Model.OllamaBaseURL, Message: "required for the OLLAMA provider"})
	}
	return errs
}

func (c *Config) validateCheckpoint() []ValidationError {
	if c.Checkpoint.Path != "" && c.Checkpoint.PoolSize < 1 {
		return []ValidationError{{Field: "checkpoint.pool_size", Value: c.Checkpoint.PoolSize, Message: "must be at least 1"}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of " + strings.Join(ValidLogLevels(), ", "),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: "must be one of " + strings.Join(ValidLogFormats(), ", "),
		})
	}
	return errs
}

func (c *Config) validateAgents() []ValidationError {
	var errs []ValidationError
	if c.Agents.DefaultAgentID == "" {
		errs = append(errs, ValidationError{Field: "agents.default_agent_id", Value: c.Agents.DefaultAgentID, Message: "must not be empty"})
	}
	if c.Agents.MaxSteps < 1 {
		errs = append(errs, ValidationError{Field: "agents.max_steps", Value: c.Agents.MaxSteps, Message: "must be at least 1"})
	}
	if c.Agents.MaxParallelTools < 1 {
		errs = append(errs, ValidationError{Field: "agents.max_parallel_tools", Value: c.Agents.MaxParallelTools, Message: "must be at least 1"})
	}
	return errs
}
