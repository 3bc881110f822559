package provider

import (
	"fmt"

	"mercurial/config"
	"mercurial/model"
)

// Initialize creates the provider named by cfg.DefaultProvider, using its
// configured base URL and model and the API key from the credential store or
// environment.
func Initialize(cfg *config.Config) (model.Provider, error) {
	active := cfg.ActiveProvider()
	p, err := fromConfig(cfg, active)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", active.ID, err)
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Initialized active provider: %s (model: %s)", active.ID, p.GetModel())
	}
	return p, nil
}

// InitializeProviders creates every enabled provider instance.
//
// Failures are logged and skipped so one missing API key does not stop the
// others from being available. The active provider is always attempted, even
// when its entry is not marked enabled.
func InitializeProviders(cfg *config.Config) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	entries := append([]config.ProviderConfig{cfg.ActiveProvider()}, cfg.Providers...)
	for _, entry := range entries {
		if _, done := providers[entry.ID]; done {
			continue
		}
		if !entry.Enabled && entry.ID != cfg.DefaultProvider {
			continue
		}
		if filled, ok := cfg.Provider(entry.ID); ok {
			entry = filled
		}

		p, err := fromConfig(cfg, entry)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Provider] Warning: failed to initialize provider %s: %v", entry.ID, err)
			}
			continue
		}

		providers[entry.ID] = p
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Provider] Initialized provider: %s (type: %s)", entry.ID, MapProviderIDToType(entry.ID))
		}
	}

	return providers
}

func fromConfig(cfg *config.Config, entry config.ProviderConfig) (model.Provider, error) {
	return NewProvider(Config{
		Type:    MapProviderIDToType(entry.ID),
		BaseURL: entry.BaseURL,
		Model:   entry.Model,
		APIKey:  cfg.APIKey(entry.ID),
	})
}
