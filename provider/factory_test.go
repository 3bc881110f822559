package provider

import (
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		wantModel   string
	}{
		{
			name:      "deepseek provider with defaults",
			config:    Config{Type: ProviderTypeDeepSeek, APIKey: "test-key"},
			wantModel: "deepseek-chat",
		},
		{
			name:        "deepseek provider without key",
			config:      Config{Type: ProviderTypeDeepSeek},
			expectError: true,
		},
		{
			name:      "ollama provider with defaults",
			config:    Config{Type: ProviderTypeOllama},
			wantModel: "llama3.1:latest",
		},
		{
			name: "ollama provider with custom config",
			config: Config{
				Type:    ProviderTypeOllama,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
			wantModel: "llama3.1",
		},
		{
			name: "openai provider",
			config: Config{
				Type:    ProviderTypeOpenAI,
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
				APIKey:  "test-key",
			},
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "openrouter provider",
			config:    Config{Type: ProviderTypeOpenRouter, APIKey: "test-key", Model: "x/y"},
			wantModel: "x/y",
		},
		{
			name: "anthropic provider",
			config: Config{
				Type:    ProviderTypeAnthropic,
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-sonnet-4-5-20250929",
				APIKey:  "test-key",
			},
			wantModel: "claude-sonnet-4-5-20250929",
		},
		{
			name:        "anthropic provider without key",
			config:      Config{Type: ProviderTypeAnthropic},
			expectError: true,
		},
		{
			name: "unknown provider type",
			config: Config{
				Type:    ProviderType("unknown"),
				BaseURL: "http://localhost",
				Model:   "test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if provider != nil {
					t.Errorf("expected nil provider, got %T", provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := provider.GetModel(); got != tt.wantModel {
				t.Errorf("GetModel() = %q, want %q", got, tt.wantModel)
			}
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := map[string]ProviderType{
		"deepseek":   ProviderTypeDeepSeek,
		"openai":     ProviderTypeOpenAI,
		"openrouter": ProviderTypeOpenRouter,
		"anthropic":  ProviderTypeAnthropic,
		"ollama":     ProviderTypeOllama,
		"custom":     ProviderType("custom"),
	}
	for id, want := range tests {
		if got := MapProviderIDToType(id); got != want {
			t.Errorf("MapProviderIDToType(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestSetModel(t *testing.T) {
	p, err := NewProvider(Config{Type: ProviderTypeDeepSeek, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	p.SetModel("deepseek-coder")
	if p.GetModel() != "deepseek-coder" {
		t.Errorf("GetModel() = %q after SetModel", p.GetModel())
	}
}
