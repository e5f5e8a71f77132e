package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlo-ai/parlo/pkg/schema"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIGateway(srv.URL, "test-key", "gpt-4o-mini", "", testLogger())
}

func completionReply(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGatewayCallWithContext(t *testing.T) {
	var captured chatCompletionRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionReply("Hello Ada!")))
	})

	reply, err := gw.Call(context.Background(), CallRequest{
		Instruction:  "Greet the customer",
		SystemPrompt: "You are a receptionist.",
		Context:      map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", reply)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "developer", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "CONTEXT DATA:")
	assert.Contains(t, captured.Messages[1].Content, `"name":"Ada"`)
	assert.Equal(t, "user", captured.Messages[2].Role)
	assert.Equal(t, "Greet the customer", captured.Messages[2].Content)

	assert.InDelta(t, 0.2, captured.Temperature, 1e-9)
	assert.Equal(t, 800, captured.MaxTokens)
	assert.Equal(t, []string{"</json>", "</end>"}, captured.Stop)
	assert.Nil(t, captured.ResponseFormat)
}

func TestGatewayCallWithHistory(t *testing.T) {
	var captured chatCompletionRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionReply("Sure thing.")))
	})

	_, err := gw.Call(context.Background(), CallRequest{
		SystemPrompt: "You are a receptionist.",
		History: []ChatMessage{
			{Role: "user", Content: "Can I book a haircut?"},
			{Role: "assistant", Content: "Of course, when?"},
			{Role: "user", Content: "Tomorrow."},
		},
	})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "Tomorrow.", captured.Messages[3].Content)
}

func TestGatewayExtractionMode(t *testing.T) {
	var captured chatCompletionRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionReply(`{}`)))
	})

	_, err := gw.Call(context.Background(), CallRequest{
		SystemPrompt: extractionSystemPrompt,
		History:      []ChatMessage{{Role: "user", Content: "extract"}},
		Extraction:   true,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.1, captured.Temperature, 1e-9)
	assert.Equal(t, 200, captured.MaxTokens)
	assert.Empty(t, captured.Stop)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestGatewayCallFailures(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		gw := NewOpenAIGateway("http://unused", "", "gpt-4o-mini", "", testLogger())
		_, err := gw.Call(context.Background(), CallRequest{Instruction: "hi"})
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeGateway, schema.CodeOf(err))
	})

	t.Run("upstream error status", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		})
		_, err := gw.Call(context.Background(), CallRequest{Instruction: "hi"})
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeGateway, schema.CodeOf(err))
	})

	t.Run("empty choices", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		})
		_, err := gw.Call(context.Background(), CallRequest{Instruction: "hi"})
		require.Error(t, err)
	})
}
