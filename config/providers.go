package config

import (
	"fmt"
	"strings"
)

var providerIDs = []string{"deepseek", "openai", "openrouter", "anthropic", "ollama"}

// ProviderIDs lists the upstream providers mercurial knows how to reach.
func ProviderIDs() []string {
	return append([]string(nil), providerIDs...)
}

// DefaultProviders is the [[providers]] list written on first run. Only
// DeepSeek is enabled.
func DefaultProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(providerIDs))
	for _, id := range providerIDs {
		out = append(out, ProviderConfig{
			ID:      id,
			BaseURL: DefaultBaseURL(id),
			Model:   DefaultModel(id),
			Enabled: id == "deepseek",
		})
	}
	return out
}

// UpdateProviderField updates a single provider setting and saves it.
//
// Fields: "base_url", "model", "enabled", and "apikey" (stored in the
// credential store rather than config.toml).
func UpdateProviderField(cfg *Config, providerID, fieldName, value string) error {
	if !isKnownProvider(providerID) {
		return fmt.Errorf("unknown provider: %s", providerID)
	}
	dataDir := cfg.DataDir()

	if fieldName == "apikey" {
		if cfg.CredentialStore == nil {
			return fmt.Errorf("credential store not loaded")
		}
		if err := cfg.CredentialStore.Set(providerID, value); err != nil {
			return fmt.Errorf("failed to set API key: %w", err)
		}
		if err := cfg.CredentialStore.Save(dataDir); err != nil {
			return fmt.Errorf("failed to persist credentials: %w", err)
		}
		return nil
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entry := findOrAddProvider(userCfg, providerID)
	switch fieldName {
	case "base_url":
		entry.BaseURL = value
	case "model":
		entry.Model = value
	case "enabled":
		entry.Enabled = value == "true"
	default:
		return fmt.Errorf("unknown field for %s: %s", providerID, fieldName)
	}

	if err := SaveUserConfig(userCfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cfg.Providers = userCfg.Providers
	return nil
}

func findOrAddProvider(cfg *UserConfig, providerID string) *ProviderConfig {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == providerID {
			return &cfg.Providers[i]
		}
	}
	cfg.Providers = append(cfg.Providers, ProviderConfig{
		ID:      providerID,
		BaseURL: DefaultBaseURL(providerID),
		Model:   DefaultModel(providerID),
	})
	return &cfg.Providers[len(cfg.Providers)-1]
}

func isKnownProvider(id string) bool {
	for _, known := range providerIDs {
		if known == id {
			return true
		}
	}
	return false
}

// ProviderDisplayName returns the human-readable provider name.
func ProviderDisplayName(providerID string) string {
	switch providerID {
	case "deepseek":
		return "DeepSeek"
	case "ollama":
		return "Ollama"
	case "openrouter":
		return "OpenRouter"
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	default:
		return providerID
	}
}

// DefaultBaseURL returns the API base URL used when none is configured.
func DefaultBaseURL(providerID string) string {
	switch providerID {
	case "deepseek":
		return "https://api.deepseek.com"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "anthropic":
		return "https://api.anthropic.com"
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(providerID string) string {
	switch providerID {
	case "deepseek":
		return "deepseek-chat"
	case "openrouter":
		return "deepseek/deepseek-chat"
	case "anthropic":
		return "claude-sonnet-4-5-20250929"
	case "openai":
		return "gpt-4o-mini"
	case "ollama":
		return "llama3.1:latest"
	default:
		return ""
	}
}

// APIKeyEnvVar names the environment variable consulted when the credential
// store has no key for a provider.
func APIKeyEnvVar(providerID string) string {
	if providerID == "ollama" || !isKnownProvider(providerID) {
		return ""
	}
	return strings.ToUpper(providerID) + "_API_KEY"
}
