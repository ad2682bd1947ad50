package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatWithToolsParsesToolCalls(t *testing.T) {
	var captured ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{
			"model": "llama3.1",
			"done": true,
			"prompt_eval_count": 12,
			"eval_count": 3,
			"message": {"role": "assistant", "content": "", "tool_calls": [
				{"function": {"name": "search_pr", "arguments": {"input": "what changed in auth.go"}}}
			]}
		}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	tools := []llm.ToolDefinition{{
		Name:        "search_pr",
		Description: "diff search",
		Parameters:  []llm.Parameter{{Name: "input", Required: true}},
	}}
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "be helpful"},
		{Role: llm.RoleUser, Content: "what changed?"},
	}

	completion, err := p.ChatWithTools(context.Background(), history, tools)
	require.NoError(t, err)

	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "search_pr", completion.ToolCalls[0].Name)
	assert.Equal(t, "what changed in auth.go", completion.ToolCalls[0].Arguments["input"])
	assert.NotEmpty(t, completion.ToolCalls[0].ID)
	assert.Equal(t, int64(12), completion.Usage.PromptTokens)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "search_pr", captured.Tools[0].Function.Name)
	assert.False(t, captured.Stream)
}

func TestChatReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	_, err := p.Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
