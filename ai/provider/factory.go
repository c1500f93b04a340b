package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/promptforge/ai/anthropic"
	"github.com/teranos/promptforge/ai/openai"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/errors"
)

// AIClient is the provider-independent chat interface. Both adapters take
// the canonical request type from ai/openai, so switching providers is a
// routing decision rather than a request translation.
type AIClient interface {
	Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
}

// Compile-time interface checks for both adapters
var (
	_ AIClient = (*openai.Client)(nil)
	_ AIClient = (*anthropic.Client)(nil)
)

// NewClient builds the configured adapter for a provider. Returns a
// ConfigurationError when the provider has no API key, before any network
// I/O is attempted.
func NewClient(cfg *config.Config, p Provider, logger *zap.SugaredLogger) (AIClient, error) {
	switch p {
	case ProviderOpenAI:
		pc := cfg.Providers.OpenAI
		if pc.APIKey == "" {
			return nil, errors.NewConfigurationError("OpenAI API key not configured")
		}
		return openai.NewClient(openai.Config{
			APIKey:          pc.APIKey,
			BaseURL:         pc.BaseURL,
			Model:           cfg.ModelForProvider(string(p)),
			BlockPrivateIPs: cfg.AI.BlockPrivateIPs,
			Logger:          logger,
		}), nil

	case ProviderAnthropic:
		pc := cfg.Providers.Anthropic
		if pc.APIKey == "" {
			return nil, errors.NewConfigurationError("Anthropic API key not configured")
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:          pc.APIKey,
			BaseURL:         pc.BaseURL,
			Model:           cfg.ModelForProvider(string(p)),
			BlockPrivateIPs: cfg.AI.BlockPrivateIPs,
			Logger:          logger,
		}), nil

	default:
		return nil, errors.NewValidationError("unknown AI provider %q (supported: openai, anthropic)", string(p))
	}
}

// ForModel routes a model name to its provider and builds the client in one
// step. The returned Provider is valid even when the client could not be
// built, so callers can report which provider was missing its credential.
func ForModel(cfg *config.Config, model string, logger *zap.SugaredLogger) (AIClient, Provider, error) {
	p := Route(model, Provider(cfg.Providers.Default))
	client, err := NewClient(cfg, p, logger)
	if err != nil {
		return nil, p, err
	}
	return client, p, nil
}
