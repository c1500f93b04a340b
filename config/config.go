package config

import (
	"fmt"
	"time"
)

// Config represents the core PromptForge configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	AI        AIConfig        `mapstructure:"ai"`
	Library   LibraryConfig   `mapstructure:"library"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the MCP server's HTTP transport
type ServerConfig struct {
	Host  string `mapstructure:"host"`
	Port  *int   `mapstructure:"port"`  // nil = default 8080, 0 is invalid (omit for default)
	Debug bool   `mapstructure:"debug"` // debug logging regardless of verbosity flags
}

// Server port constants
const (
	DefaultServerPort = 8080
	DefaultServerHost = "localhost"
)

// ProvidersConfig configures the upstream AI providers
type ProvidersConfig struct {
	// Default names the provider used when a model name matches no
	// known family marker: "openai" or "anthropic".
	Default   string         `mapstructure:"default"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds per-provider credentials and endpoint settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"` // provider's default model
}

// AIConfig configures analysis and execution behavior
type AIConfig struct {
	AnalysisModel           string `mapstructure:"analysis_model"`            // default model for analyze operations
	ExecutionModel          string `mapstructure:"execution_model"`           // default model for execute operations
	MaxPromptLength         int    `mapstructure:"max_prompt_length"`         // longest accepted prompt, in characters
	AnalysisTimeoutSeconds  int    `mapstructure:"analysis_timeout_seconds"`  // per-call deadline for analysis requests
	ExecutionTimeoutSeconds int    `mapstructure:"execution_timeout_seconds"` // per-call deadline for execution requests
	RequestsPerMinute       int    `mapstructure:"requests_per_minute"`       // upstream rate limit, 0 = unlimited
	BlockPrivateIPs         bool   `mapstructure:"block_private_ips"`         // refuse upstream calls to private address space
}

// LibraryConfig configures the prompt library
type LibraryConfig struct {
	ImportDir string `mapstructure:"import_dir"` // watched directory for prompt file import, empty = disabled
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "promptforge.db" // Fallback default
	}
	return c.Database.Path
}

// GetServerPort returns the configured HTTP port, or the default when omitted
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetServerHost returns the configured HTTP host, or the default when omitted
func (c *Config) GetServerHost() string {
	if c.Server.Host == "" {
		return DefaultServerHost
	}
	return c.Server.Host
}

// GetAnalysisTimeout returns the per-call deadline for analysis requests
func (c *Config) GetAnalysisTimeout() time.Duration {
	if c.AI.AnalysisTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AI.AnalysisTimeoutSeconds) * time.Second
}

// GetExecutionTimeout returns the per-call deadline for execution requests
func (c *Config) GetExecutionTimeout() time.Duration {
	if c.AI.ExecutionTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AI.ExecutionTimeoutSeconds) * time.Second
}

// GetMaxPromptLength returns the longest accepted prompt length
func (c *Config) GetMaxPromptLength() int {
	if c.AI.MaxPromptLength <= 0 {
		return 50000
	}
	return c.AI.MaxPromptLength
}

// GetAnalysisModel returns the default model for analyze operations
func (c *Config) GetAnalysisModel() string {
	if c.AI.AnalysisModel == "" {
		return "claude-3-sonnet-20240229"
	}
	return c.AI.AnalysisModel
}

// GetExecutionModel returns the default model for execute operations
func (c *Config) GetExecutionModel() string {
	if c.AI.ExecutionModel == "" {
		return "claude-3-sonnet-20240229"
	}
	return c.AI.ExecutionModel
}

// AvailableProviders reports which providers have a credential configured.
// Keys are provider names, values indicate a usable API key.
func (c *Config) AvailableProviders() map[string]bool {
	return map[string]bool{
		"openai":    c.Providers.OpenAI.APIKey != "",
		"anthropic": c.Providers.Anthropic.APIKey != "",
	}
}

// ModelForProvider returns the configured default model for a provider name.
// Unknown names fall back to the analysis model.
func (c *Config) ModelForProvider(provider string) string {
	switch provider {
	case "openai":
		if c.Providers.OpenAI.Model != "" {
			return c.Providers.OpenAI.Model
		}
	case "anthropic":
		if c.Providers.Anthropic.Model != "" {
			return c.Providers.Anthropic.Model
		}
	}
	return c.GetAnalysisModel()
}

// String returns a string representation of the config.
// API keys are never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: %s:%d, DefaultProvider: %s}",
		c.GetDatabasePath(), c.GetServerHost(), c.GetServerPort(), c.Providers.Default)
}
