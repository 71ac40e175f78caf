package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chatyfile configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Prompt  PromptConfig  `yaml:"prompt"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the code generation service.
type LLMConfig struct {
	Provider         string  `yaml:"provider"` // gemini, openai
	APIKey           string  `yaml:"api_key"`
	Model            string  `yaml:"model"`
	BaseURL          string  `yaml:"base_url"`
	Timeout          string  `yaml:"timeout"`
	MaxOutputTokens  int     `yaml:"max_output_tokens"`
	MaxResponseBytes int     `yaml:"max_response_bytes"`
	Temperature      float32 `yaml:"temperature"`
	HistoryTurns     int     `yaml:"history_turns"` // prior exchanges resent as context
}

// SandboxConfig bounds snippet execution and plot size.
type SandboxConfig struct {
	Timeout        string `yaml:"timeout"`
	MaxOutputBytes int    `yaml:"max_output_bytes"`
	PlotWidth      int    `yaml:"plot_width"`
	PlotHeight     int    `yaml:"plot_height"`
}

// PromptConfig controls how much of the dataset the prompt shows.
type PromptConfig struct {
	SampleRows   int `yaml:"sample_rows"`
	MaxCellWidth int `yaml:"max_cell_width"`
}

// SessionConfig configures conversation sessions.
type SessionConfig struct {
	ExitTokens  []string `yaml:"exit_tokens"`
	PreviewRows int      `yaml:"preview_rows"` // 0 disables the load preview
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:         "gemini",
			Model:            "gemini-2.0-flash",
			Timeout:          "60s",
			MaxOutputTokens:  1024,
			MaxResponseBytes: 32 << 10,
			Temperature:      0.1,
			HistoryTurns:     6,
		},
		Sandbox: SandboxConfig{
			Timeout:        "10s",
			MaxOutputBytes: 64 << 10,
			PlotWidth:      640,
			PlotHeight:     400,
		},
		Prompt: PromptConfig{
			SampleRows:   5,
			MaxCellWidth: 40,
		},
		Session: SessionConfig{
			ExitTokens:  []string{"salir", "exit"},
			PreviewRows: 10,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. A provider key
// also selects its provider. When both keys are set the configured provider
// decides.
func (c *Config) applyEnvOverrides() {
	gemini := os.Getenv("GEMINI_API_KEY")
	openai := os.Getenv("OPENAI_API_KEY")
	switch {
	case openai != "" && (gemini == "" || c.LLM.Provider == "openai"):
		c.LLM.APIKey = openai
		c.LLM.Provider = "openai"
	case gemini != "":
		c.LLM.APIKey = gemini
		c.LLM.Provider = "gemini"
	}

	if v := os.Getenv("CHATYFILE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CHATYFILE_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CHATYFILE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHATYFILE_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetLLMTimeout returns the generation timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetSandboxTimeout returns the snippet execution timeout as a duration.
func (c *Config) GetSandboxTimeout() time.Duration {
	return parseDuration(c.Sandbox.Timeout, 10*time.Second)
}

// ValidProviders lists the supported generation providers.
var ValidProviders = []string{"gemini", "openai"}

// Validate checks the parts of the configuration that cannot fall back to
// a default.
func (c *Config) Validate() error {
	valid := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid LLM provider: %q (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}
	for name, v := range map[string]string{"llm.timeout": c.LLM.Timeout, "sandbox.timeout": c.Sandbox.Timeout} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	for _, tok := range c.Session.ExitTokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("session.exit_tokens contains a blank token")
		}
	}
	return nil
}
