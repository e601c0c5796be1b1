package config

// applyDefaults fills in default values for unset fields.
func applyDefaults(c *Config) {
	if c.Workspace.Path == "" {
		c.Workspace.Path = "~/.pulse"
	}

	if c.Agent.Provider == "" {
		c.Agent.Provider = "openai"
	}
	if c.Agent.Model == "" {
		c.Agent.Model = "gpt-4o-mini"
	}
	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = "You are Pulse, a helpful personal assistant."
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 8192
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 20
	}
	if c.Agent.Temperature == 0 {
		c.Agent.Temperature = 0.7
	}
	if c.Agent.TimeoutSeconds == 0 {
		c.Agent.TimeoutSeconds = 60
	}

	if c.LLM.OpenAI.BaseURL == "" {
		c.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.OpenAI.TimeoutSeconds == 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Scheduler.TickSeconds == 0 {
		c.Scheduler.TickSeconds = 10
	}

	if c.Watcher.RescanSeconds == 0 {
		c.Watcher.RescanSeconds = 30
	}

	if c.Bus.Capacity == 0 {
		c.Bus.Capacity = 100
	}

	if c.Tools.Fetch.MaxResponseBytes == 0 {
		c.Tools.Fetch.MaxResponseBytes = 512 * 1024
	}
	if c.Tools.Fetch.TimeoutSeconds == 0 {
		c.Tools.Fetch.TimeoutSeconds = 30
	}
	if c.Tools.Fetch.UserAgent == "" {
		c.Tools.Fetch.UserAgent = "Pulse/1.0"
	}
}
