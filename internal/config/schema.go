// Package config provides configuration loading and validation for Pulse.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [workspace]: Workspace directory holding tasks, pending items and results
//   - [agent]: Agent model and loop behavior configuration
//   - [llm.openai]: OpenAI-compatible provider configuration
//   - [logging]: Logging level, format, and output
//   - [scheduler]: Scheduler tick configuration
//   - [watcher]: Watcher re-scan configuration
//   - [bus]: Event bus capacity settings
//   - [tools]: Tool configurations (fetch)
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax. For example: api_key = "${OPENAI_API_KEY}"
package config

// Config represents the main application configuration.
type Config struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	Agent     AgentConfig     `toml:"agent"`
	LLM       LLMConfig       `toml:"llm"`
	Logging   LoggingConfig   `toml:"logging"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Bus       BusConfig       `toml:"bus"`
	Tools     ToolsConfig     `toml:"tools"`
}

// WorkspaceConfig holds the workspace directory settings.
type WorkspaceConfig struct {
	Path string `toml:"path"`
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	Provider       string  `toml:"provider"` // openai, mock
	Model          string  `toml:"model"`
	SystemPrompt   string  `toml:"system_prompt"`
	MaxTokens      int     `toml:"max_tokens"`
	MaxIterations  int     `toml:"max_iterations"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// LLMConfig holds provider-specific LLM settings.
type LLMConfig struct {
	OpenAI OpenAIConfig `toml:"openai"`
}

// OpenAIConfig holds settings for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// SchedulerConfig holds scheduler tick settings.
type SchedulerConfig struct {
	TickSeconds int `toml:"tick_seconds"`
}

// WatcherConfig holds watcher re-scan settings.
type WatcherConfig struct {
	RescanSeconds int `toml:"rescan_seconds"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Capacity int `toml:"capacity"`
}

// ToolsConfig holds tool settings.
type ToolsConfig struct {
	Fetch FetchConfig `toml:"fetch"`
}

// FetchConfig holds settings for the fetch tool.
type FetchConfig struct {
	Enabled          bool   `toml:"enabled"`
	MaxResponseBytes int64  `toml:"max_response_bytes"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	UserAgent        string `toml:"user_agent"`
}
