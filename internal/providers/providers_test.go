package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/asimov/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

var conversation = []engine.ChatMessage{
	{Role: engine.RoleSystem, Content: "system-format"},
	{Role: engine.RoleUser, Content: "task-step"},
	{Role: engine.RoleAssistant, Content: `{"ability":{"name":"read_file","args":{"file_path":"a.txt"}}}`},
	{Role: engine.RoleAssistant, Content: "Here is the output of the ability read_file"},
	{Role: engine.RoleUser, Content: "Okay, what's next?"},
}

func TestOpenAIClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"thoughts\":{\"speak\":\"hi\"}}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("sk-test", srv.URL)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), "gpt-4", conversation, engine.ChatOptions{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"thoughts":{"speak":"hi"}}`, resp.Assistant.Content)
	assert.Equal(t, engine.RoleAssistant, resp.Assistant.Role)
	assert.Equal(t, engine.Usage{Prompt: 12, Completion: 4, Total: 16}, resp.Usage)
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, "gpt-4", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, len(conversation))
	for i, m := range msgs {
		assert.Equal(t, string(conversation[i].Role), m.(map[string]any)["role"])
	}
}

func TestOpenAIClient_ChatErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "invalid_request_error"}}`))
			}))
			defer srv.Close()

			client, err := NewOpenAIClient("sk-test", srv.URL)
			require.NoError(t, err)

			_, err = client.Chat(context.Background(), "gpt-4", conversation, engine.ChatOptions{})
			require.Error(t, err)

			var te *engine.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.HTTPStatus)
			assert.Equal(t, tt.retryable, te.Class == engine.RetryClassRetryable)
		})
	}
}

func TestAnthropicClient_Chat(t *testing.T) {
	var got struct {
		System   []map[string]any `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-latest",
			"content": [{"type": "text", "text": "{\"thoughts\":{\"speak\":\"ok\"}}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("sk-ant", srv.URL)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), "claude-3-5-sonnet-latest", conversation, engine.ChatOptions{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"thoughts":{"speak":"ok"}}`, resp.Assistant.Content)
	assert.Equal(t, engine.Usage{Prompt: 20, Completion: 6, Total: 26}, resp.Usage)
	assert.Equal(t, "stop", resp.FinishReason)

	require.Len(t, got.System, 1)
	assert.Equal(t, "system-format", got.System[0]["text"])

	// user, assistant (two merged), user
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, conversation[2].Content+"\n\n"+conversation[3].Content, got.Messages[1].Content[0].Text)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestAppendTurn(t *testing.T) {
	var turns []turn
	turns = appendTurn(turns, engine.RoleUser, "a")
	turns = appendTurn(turns, engine.RoleUser, "b")
	turns = appendTurn(turns, engine.RoleAssistant, "c")
	require.Len(t, turns, 2)
	assert.Equal(t, []string{"a", "b"}, turns[0].parts)
	assert.Equal(t, []string{"c"}, turns[1].parts)
}

func TestNewLLMClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	client, err := NewLLMClient(Options{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	client, err = NewLLMClient(Options{Provider: "Anthropic", APIKey: "sk-ant"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)

	_, err = NewLLMClient(Options{Provider: "openai"})
	assert.EqualError(t, err, "OPENAI_API_KEY not set")

	t.Setenv("OPENAI_API_KEY", "from-env")
	_, err = NewLLMClient(Options{Provider: "openai"})
	assert.NoError(t, err)

	client, err = NewLLMClient(Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", client.(*OpenAIClient).baseURL)

	_, err = NewLLMClient(Options{Provider: "palm"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	assert.Equal(t, "GROQ_API_KEY", APIKeyEnv("groq"))
	assert.Contains(t, Supported(), "deepseek")
}

func TestExtractErrorMetadata(t *testing.T) {
	status, retryAfter := extractErrorMetadata(errors.New("status 429: slow down, Retry-After: 30"))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "30", retryAfter)

	status, retryAfter = extractErrorMetadata(errors.New("dial tcp: connection refused"))
	assert.Zero(t, status)
	assert.Empty(t, retryAfter)

	status, _ = extractErrorMetadata(errors.New("read tcp 10.0.0.2:40123->104.18.6.192:443: connection reset by peer"))
	assert.Zero(t, status, "ports are not status codes")

	status, _ = extractErrorMetadata(fmt.Errorf("error, status code: %d, message: %w", 401, errors.New("invalid x-api-key")))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = extractErrorMetadata(&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "overloaded"})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = extractErrorMetadata(&anthropic.RequestError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestWrapLLMError_NetworkFailuresStayRetryable(t *testing.T) {
	for _, msg := range []string{
		"read tcp 10.0.0.2:40123->104.18.6.192:443: connection reset by peer",
		"dial tcp 10.1.1.1:54012: i/o timeout",
		"Post \"https://api.openai.com/v1/chat/completions\": dial tcp 162.159.140.245:443: connect: connection refused",
	} {
		err := errors.New(msg)
		status, retryAfter := extractErrorMetadata(err)
		var te *engine.TransportError
		require.True(t, errors.As(engine.WrapLLMError(err, status, retryAfter), &te))
		assert.Equal(t, engine.RetryClassRetryable, te.Class, msg)
	}
}
