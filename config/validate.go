package config

import "github.com/teranos/promptforge/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Database path is optional - empty defaults to "promptforge.db" per defaults.go

	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 8080)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}
	if c.Server.Port != nil && *c.Server.Port > 65535 {
		return errors.Newf("server.port must be <= 65535, got %d", *c.Server.Port)
	}

	// Default provider must name a known provider
	if c.Providers.Default != "openai" && c.Providers.Default != "anthropic" {
		return errors.Newf("providers.default must be \"openai\" or \"anthropic\", got %q", c.Providers.Default)
	}

	// Validate provider endpoints only when a credential is configured
	if c.Providers.OpenAI.APIKey != "" && c.Providers.OpenAI.BaseURL == "" {
		return errors.New("providers.openai.base_url cannot be empty when an API key is set")
	}
	if c.Providers.Anthropic.APIKey != "" && c.Providers.Anthropic.BaseURL == "" {
		return errors.New("providers.anthropic.base_url cannot be empty when an API key is set")
	}

	// Prompt length limit: must be positive, every request is checked against it
	if c.AI.MaxPromptLength <= 0 {
		return errors.Newf("ai.max_prompt_length must be > 0, got %d", c.AI.MaxPromptLength)
	}

	// Timeouts: 0 would fail every upstream call immediately
	if c.AI.AnalysisTimeoutSeconds <= 0 {
		return errors.Newf("ai.analysis_timeout_seconds must be > 0, got %d", c.AI.AnalysisTimeoutSeconds)
	}
	if c.AI.ExecutionTimeoutSeconds <= 0 {
		return errors.Newf("ai.execution_timeout_seconds must be > 0, got %d", c.AI.ExecutionTimeoutSeconds)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.AI.RequestsPerMinute < 0 {
		return errors.Newf("ai.requests_per_minute must be >= 0, got %d", c.AI.RequestsPerMinute)
	}

	return nil
}
