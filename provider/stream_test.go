package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercurial/model"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ model.Provider = (*OpenAIProvider)(nil)
	_ model.Provider = (*AnthropicProvider)(nil)
	_ model.Provider = (*OllamaProvider)(nil)
)

func sseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", content)
}

func collect(t *testing.T, p model.Provider) (string, error) {
	t.Helper()
	var sb strings.Builder
	err := p.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	return sb.String(), err
}

func TestOpenAICompatibleStreamsDeltas(t *testing.T) {
	body := openAIChunk("Hel") + openAIChunk("") + openAIChunk("lo") + "data: [DONE]\n\n"
	srv := sseServer(t, http.StatusOK, body)

	p, err := NewDeepSeekProvider(srv.URL, "test-key", "", option.WithMaxRetries(0))
	require.NoError(t, err)

	got, err := collect(t, p)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestOpenAICompatibleMalformedStreamIsProtocolError(t *testing.T) {
	srv := sseServer(t, http.StatusOK, openAIChunk("partial")+"data: {not json\n\n")

	p, err := NewDeepSeekProvider(srv.URL, "test-key", "", option.WithMaxRetries(0))
	require.NoError(t, err)

	got, err := collect(t, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProtocol)
	assert.Equal(t, "partial", got)
}

func TestOpenAICompatibleErrorStatusIsNotProtocolError(t *testing.T) {
	srv := sseServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)

	p, err := NewOpenAIProvider(srv.URL, "test-key", "", option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = collect(t, p)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrProtocol)
}

const anthropicStart = "event: message_start\n" +
	`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5-20250929","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}}` + "\n\n"

func anthropicDelta(text string) string {
	return "event: content_block_delta\n" +
		fmt.Sprintf(`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text) + "\n\n"
}

func TestAnthropicStreamsTextDeltas(t *testing.T) {
	body := anthropicStart +
		"event: content_block_start\n" +
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
		anthropicDelta("Hel") + anthropicDelta("lo") +
		"event: content_block_stop\n" + `data: {"type":"content_block_stop","index":0}` + "\n\n" +
		"event: message_delta\n" + `data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}` + "\n\n" +
		"event: message_stop\n" + `data: {"type":"message_stop"}` + "\n\n"
	srv := sseServer(t, http.StatusOK, body)

	p, err := NewAnthropicProvider(srv.URL, "test-key", "", anthropicopt.WithMaxRetries(0))
	require.NoError(t, err)

	got, err := collect(t, p)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestAnthropicDeltaWithoutBlockIsProtocolError(t *testing.T) {
	srv := sseServer(t, http.StatusOK, anthropicStart+anthropicDelta("orphan"))

	p, err := NewAnthropicProvider(srv.URL, "test-key", "", anthropicopt.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = collect(t, p)
	assert.ErrorIs(t, err, model.ErrProtocol)
}

func TestWrapStreamError(t *testing.T) {
	transport := errors.New("connection reset")
	err := wrapStreamError("DeepSeek", transport)
	assert.ErrorIs(t, err, transport)
	assert.NotErrorIs(t, err, model.ErrProtocol)
	assert.Contains(t, err.Error(), "DeepSeek")
}
