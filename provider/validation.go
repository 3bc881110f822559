package provider

import (
	"context"
	"fmt"

	"mercurial/config"
	"mercurial/model"
)

// PingProvider validates a provider's reachability and credentials by
// building a throwaway instance and calling Ping.
func PingProvider(ctx context.Context, providerID, baseURL, apiKey string) error {
	p, err := NewProvider(Config{
		Type:    MapProviderIDToType(providerID),
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
	if err != nil {
		return err
	}

	if err := p.Ping(ctx); err != nil {
		return err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Ping ok: %s", providerID)
	}
	return nil
}

// FetchModels lists the models a single provider offers.
func FetchModels(ctx context.Context, providerID, baseURL, apiKey string) ([]model.ModelInfo, error) {
	p, err := NewProvider(Config{
		Type:    MapProviderIDToType(providerID),
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, err
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models from %s: %w", config.ProviderDisplayName(providerID), err)
	}
	return models, nil
}
