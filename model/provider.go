package model

import (
	"context"
	"errors"
)

// ErrProtocol marks an upstream stream that was readable but malformed
// (undecodable frame, event out of sequence). Providers wrap it so callers
// can tell it apart from a plain transport failure.
var ErrProtocol = errors.New("upstream protocol error")

// Provider abstracts the upstream model service (DeepSeek, OpenAI, Anthropic, Ollama).
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the session and
// stream packages use Provider without importing the provider package.
type Provider interface {
	// Chat sends messages and streams the reply back via callback, one
	// fragment per call, in arrival order. It returns when the upstream
	// stream ends, fails, or ctx is cancelled.
	Chat(ctx context.Context, messages []Message, callback StreamCallback) error

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable and the credentials are accepted.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each fragment of a streamed response.
// Returning an error aborts the stream.
type StreamCallback func(chunk string) error

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
	Provider string `json:"provider"` // Provider ID: "deepseek", "openai", "anthropic", "ollama"
}
