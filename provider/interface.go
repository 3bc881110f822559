// Package provider adapts upstream model services to model.Provider.
//
// Every adapter turns the service's streaming reply into an ordered sequence
// of text fragments delivered through a model.StreamCallback. The relay and
// code-extraction pipeline only ever sees that capability, so the upstream can
// be swapped through configuration without touching the core.
//
// # Supported upstreams
//
//   - DeepSeek (default), OpenAI and OpenRouter through the OpenAI-compatible
//     chat completions API (OpenAIProvider)
//   - Anthropic through the Messages API (AnthropicProvider)
//   - a local Ollama server (OllamaProvider)
//
// # Errors
//
// A failure to reach the service or a non-success status is returned wrapped
// as-is. A stream that was received but could not be decoded is additionally
// wrapped with model.ErrProtocol. An error returned by the callback aborts the
// stream and is returned unchanged.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeDeepSeek,
//	    APIKey: os.Getenv("DEEPSEEK_API_KEY"),
//	})
//	if err != nil {
//	    // handle error
//	}
//	err = p.Chat(ctx, messages, func(chunk string) error {
//	    fmt.Print(chunk)
//	    return nil
//	})
package provider

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeDeepSeek   ProviderType = "deepseek"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeOllama     ProviderType = "ollama"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}
