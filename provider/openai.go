package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mercurial/config"
	"mercurial/model"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements model.Provider for any OpenAI-compatible chat
// completions API. DeepSeek, OpenAI and OpenRouter all use it with different
// base URLs and default models.
type OpenAIProvider struct {
	client  openai.Client
	id      string
	model   string
	baseURL string
}

// NewDeepSeekProvider creates a provider for DeepSeek's OpenAI-compatible API
// (default base URL "https://api.deepseek.com", model "deepseek-chat").
func NewDeepSeekProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	return newOpenAICompatible("deepseek", baseURL, apiKey, model, opts...)
}

// NewOpenAIProvider creates a provider for the OpenAI API
// (default base URL "https://api.openai.com/v1", model "gpt-4o-mini").
func NewOpenAIProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	return newOpenAICompatible("openai", baseURL, apiKey, model, opts...)
}

// NewOpenRouterProvider creates a provider for OpenRouter, which is 100%
// OpenAI-compatible (default base URL "https://openrouter.ai/api/v1").
func NewOpenRouterProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	return newOpenAICompatible("openrouter", baseURL, apiKey, model, opts...)
}

func newOpenAICompatible(id, baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL(id)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", config.ProviderDisplayName(id))
	}
	if model == "" {
		model = config.DefaultModel(id)
	}

	clientOpts := append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)

	return &OpenAIProvider{
		client:  openai.NewClient(clientOpts...),
		id:      id,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat implements Provider.Chat with streaming support.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" || callback == nil {
			continue
		}
		if err := callback(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return wrapStreamError(config.ProviderDisplayName(p.id), err)
	}

	return nil
}

// wrapStreamError marks undecodable stream data as a protocol error.
func wrapStreamError(name string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%s streaming error: %w: %w", name, model.ErrProtocol, err)
	}
	return fmt.Errorf("%s streaming error: %w", name, err)
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", config.ProviderDisplayName(p.id), err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:     m.ID,
			Provider: p.id,
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", config.ProviderDisplayName(p.id), err)
	}
	return nil
}
