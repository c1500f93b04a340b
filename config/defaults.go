package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "promptforge.db")

	// Server defaults
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.debug", false)

	// Provider defaults
	v.SetDefault("providers.default", "anthropic")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.model", "gpt-4-turbo-preview")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	// providers.anthropic.model has no default: ModelForProvider falls
	// back to ai.analysis_model when it is unset.

	// AI defaults
	v.SetDefault("ai.analysis_model", "claude-3-sonnet-20240229")
	v.SetDefault("ai.execution_model", "claude-3-sonnet-20240229")
	v.SetDefault("ai.max_prompt_length", 50000)      // characters
	v.SetDefault("ai.analysis_timeout_seconds", 30)  // per-call deadline for analysis
	v.SetDefault("ai.execution_timeout_seconds", 60) // per-call deadline for execution
	v.SetDefault("ai.requests_per_minute", 0)        // 0 = unlimited
	v.SetDefault("ai.block_private_ips", false)      // allow local OpenAI-compatible servers

	// Library defaults
	v.SetDefault("library.import_dir", "") // empty = file import disabled
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment
// variables. Each key accepts both the PROMPTFORGE_-prefixed name and the
// legacy flat name; the prefixed form wins when both are set.
func BindSensitiveEnvVars(v *viper.Viper) {
	// Provider credentials
	v.BindEnv("providers.openai.api_key", "PROMPTFORGE_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("providers.openai.base_url", "PROMPTFORGE_PROVIDERS_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	v.BindEnv("providers.openai.model", "PROMPTFORGE_PROVIDERS_OPENAI_MODEL", "OPENAI_MODEL")
	v.BindEnv("providers.anthropic.api_key", "PROMPTFORGE_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("providers.anthropic.base_url", "PROMPTFORGE_PROVIDERS_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL")
	v.BindEnv("providers.default", "PROMPTFORGE_PROVIDERS_DEFAULT", "DEFAULT_AI_PROVIDER")

	// Database path
	v.BindEnv("database.path", "PROMPTFORGE_DATABASE_PATH", "DATABASE_PATH")

	// Server configuration
	v.BindEnv("server.port", "PROMPTFORGE_SERVER_PORT", "MCP_SERVER_PORT")
	v.BindEnv("server.debug", "PROMPTFORGE_SERVER_DEBUG", "DEBUG_MODE")

	// AI limits and models
	v.BindEnv("ai.max_prompt_length", "PROMPTFORGE_AI_MAX_PROMPT_LENGTH", "MAX_PROMPT_LENGTH")
	v.BindEnv("ai.analysis_timeout_seconds", "PROMPTFORGE_AI_ANALYSIS_TIMEOUT_SECONDS", "ANALYSIS_TIMEOUT")
	v.BindEnv("ai.execution_timeout_seconds", "PROMPTFORGE_AI_EXECUTION_TIMEOUT_SECONDS", "EXECUTION_TIMEOUT")
	v.BindEnv("ai.analysis_model", "PROMPTFORGE_AI_ANALYSIS_MODEL", "DEFAULT_ANALYSIS_MODEL")
	v.BindEnv("ai.execution_model", "PROMPTFORGE_AI_EXECUTION_MODEL", "DEFAULT_EXECUTION_MODEL")
}
