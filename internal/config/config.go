package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML configuration file, applies defaults
// and expands environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	expandEnvVars(&cfg)
	return &cfg
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Workspace.Path == "" {
		errors = append(errors, fmt.Errorf("workspace.path is required"))
	} else if err := validatePath(c.Workspace.Path, "workspace.path"); err != nil {
		errors = append(errors, err)
	}

	switch c.Agent.Provider {
	case "":
		errors = append(errors, fmt.Errorf("agent.provider is required"))
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			errors = append(errors, fmt.Errorf("llm.openai.api_key is required when provider is 'openai'"))
		} else if err := validateAPIKey(c.LLM.OpenAI.APIKey, "llm.openai.api_key"); err != nil {
			errors = append(errors, err)
		}
	case "mock":
		// No credentials needed.
	default:
		errors = append(errors, fmt.Errorf("invalid agent.provider: %s (expected: openai, mock)", c.Agent.Provider))
	}

	if c.Agent.MaxIterations < 1 {
		errors = append(errors, fmt.Errorf("agent.max_iterations must be at least 1"))
	}

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Scheduler.TickSeconds < 1 {
		errors = append(errors, fmt.Errorf("scheduler.tick_seconds must be at least 1"))
	}

	if c.Watcher.RescanSeconds < 1 {
		errors = append(errors, fmt.Errorf("watcher.rescan_seconds must be at least 1"))
	}

	if c.Bus.Capacity < 1 {
		errors = append(errors, fmt.Errorf("bus.capacity must be at least 1"))
	}

	return errors
}

func validateAPIKey(key, fieldName string) error {
	if len(key) < 10 {
		return fmt.Errorf("%s is too short (minimum 10 characters, got %d)", fieldName, len(key))
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if strings.HasPrefix(path, "~") {
		return nil
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}
