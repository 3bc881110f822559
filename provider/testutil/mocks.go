package testutil

import (
	"context"
	"errors"
	"sync"

	"mercurial/model"
)

// ErrUpstream is the error returned by FailingProvider.
var ErrUpstream = errors.New("mock upstream failure")

// MockProvider implements model.Provider for testing. Every method delegates
// to a replaceable func field.
type MockProvider struct {
	ChatFunc       func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	mu           sync.Mutex
	currentModel string
	calls        [][]model.Message
}

// NewMockProvider creates a mock provider that replies with a single chunk.
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.ChatFunc = ScriptedChat("Mock response")
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = func(context.Context) error { return nil }
	return mock
}

// NewScriptedProvider replies to every Chat call with chunks, in order.
func NewScriptedProvider(chunks ...string) *MockProvider {
	mock := NewMockProvider("scripted")
	mock.ChatFunc = ScriptedChat(chunks...)
	return mock
}

// NewFailingProvider emits chunks and then fails with err.
func NewFailingProvider(failure error, chunks ...string) *MockProvider {
	mock := NewMockProvider("failing")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
		if err := ScriptedChat(chunks...)(ctx, messages, callback); err != nil {
			return err
		}
		return failure
	}
	return mock
}

// NewBlockingProvider emits chunks, signals started, then blocks until ctx is
// done and returns ctx.Err().
func NewBlockingProvider(started chan<- struct{}, chunks ...string) *MockProvider {
	mock := NewMockProvider("blocking")
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
		if err := ScriptedChat(chunks...)(ctx, messages, callback); err != nil {
			return err
		}
		if started != nil {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return mock
}

// ScriptedChat returns a ChatFunc that delivers chunks in order and stops at
// the first callback error or context cancellation.
func ScriptedChat(chunks ...string) func(context.Context, []model.Message, model.StreamCallback) error {
	return func(ctx context.Context, _ []model.Message, callback model.StreamCallback) error {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if callback == nil {
				continue
			}
			if err := callback(chunk); err != nil {
				return err
			}
		}
		return nil
	}
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	m.mu.Lock()
	m.calls = append(m.calls, append([]model.Message(nil), messages...))
	m.mu.Unlock()
	return m.ChatFunc(ctx, messages, callback)
}

// Calls returns the message lists passed to Chat, oldest first.
func (m *MockProvider) Calls() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Message(nil), m.calls...)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "test-model-1", Size: 1000000, Provider: "mock"},
		{Name: "test-model-2", Size: 2000000, Provider: "mock"},
	}, nil
}
