package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadEnv loads environment variables from a .env file.
// Lines in KEY=VALUE format are applied via os.Setenv; empty lines
// and comments (lines starting with #) are skipped.
func LoadEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if key != "" {
			os.Setenv(key, value)
		}
	}

	return nil
}

// LoadEnvOptional loads a .env file if it exists, returning nil when absent.
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return LoadEnv(path)
}

// expandEnvVars expands ${VAR} references and ~ in the configuration.
func expandEnvVars(c *Config) {
	c.LLM.OpenAI.APIKey = expandEnv(c.LLM.OpenAI.APIKey)
	c.LLM.OpenAI.BaseURL = expandEnv(c.LLM.OpenAI.BaseURL)
	c.Workspace.Path = expandHome(expandEnv(c.Workspace.Path))
}

// expandEnv expands a ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end < 0 {
		return s
	}

	expr := s[2:end]
	name := expr
	def := ""
	if idx := strings.Index(expr, ":"); idx >= 0 {
		name = expr[:idx]
		def = expr[idx+1:]
	}

	if value, ok := os.LookupEnv(name); ok {
		return value + s[end+1:]
	}
	return def + s[end+1:]
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
