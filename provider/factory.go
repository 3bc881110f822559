package provider

import (
	"fmt"

	"mercurial/model"
)

// NewProvider creates a provider based on configuration.
//
// Empty BaseURL and Model fall back to the provider's defaults. Returns an
// error if the provider type is unknown or the provider-specific constructor
// fails (missing API key, invalid URL).
//
// Example:
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeDeepSeek,
//	    Model:  "deepseek-chat",
//	    APIKey: "sk-...",
//	})
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeDeepSeek:
		return checked(NewDeepSeekProvider(cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeOpenAI:
		return checked(NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeOpenRouter:
		return checked(NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeAnthropic:
		return checked(NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeOllama:
		return checked(NewOllamaProvider(cfg.BaseURL, cfg.Model))
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a config provider ID to a factory ProviderType.
// Unknown IDs are passed through as-is, and the factory rejects them.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "deepseek":
		return ProviderTypeDeepSeek
	case "openai":
		return ProviderTypeOpenAI
	case "openrouter":
		return ProviderTypeOpenRouter
	case "anthropic":
		return ProviderTypeAnthropic
	case "ollama":
		return ProviderTypeOllama
	default:
		return ProviderType(id)
	}
}

// checked keeps a failed constructor's typed nil out of the interface.
func checked[P model.Provider](p P, err error) (model.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
