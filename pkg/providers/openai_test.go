package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

func TestOpenAI_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Fresh ad copy"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p := providers.NewOpenAI("gpt-4o-mini", providers.ClientConfig{APIKey: "sk-test", BaseURL: srv.URL})
	assert.Equal(t, "openai:gpt-4o-mini", p.ID().String())

	text, err := p.Complete(context.Background(), "write an ad", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "Fresh ad copy", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "write an ad", got.Messages[1].Content)
}

func TestOpenAI_NoSystemMessage(t *testing.T) {
	var got struct {
		Messages []json.RawMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := providers.NewOpenAI("gpt-4o", providers.ClientConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestOpenAI_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	p := providers.NewOpenAI("gpt-4o", providers.ClientConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")
	require.Error(t, err)

	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, "openai:gpt-4o", pe.Provider)
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := providers.NewOpenAI("gpt-4o", providers.ClientConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")
	assert.ErrorContains(t, err, "empty completion")
}
