package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

func TestAnthropic_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "On-brand "}, {"type": "text", "text": "reply"}],
			"usage": {"input_tokens": 20, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-haiku-latest", providers.ClientConfig{APIKey: "sk-ant-test", BaseURL: srv.URL + "/"})
	assert.Equal(t, "anthropic:claude-3-5-haiku-latest", p.ID().String())

	text, err := p.Complete(context.Background(), "rewrite this", "brand voice")
	require.NoError(t, err)
	assert.Equal(t, "On-brand reply", text)

	assert.Equal(t, "claude-3-5-haiku-latest", got["model"])
	assert.Equal(t, "brand voice", got["system"])
	assert.EqualValues(t, 1024, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestAnthropic_MaxTokensOverride(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-sonnet-latest", providers.ClientConfig{BaseURL: srv.URL, MaxTokens: 256})
	_, err := p.Complete(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.EqualValues(t, 256, got["max_tokens"])
	_, hasSystem := got["system"]
	assert.False(t, hasSystem)
}

func TestAnthropic_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-haiku-latest", providers.ClientConfig{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")

	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 529, pe.StatusCode)
	assert.Contains(t, err.Error(), "overloaded_error: Overloaded")
}

func TestAnthropic_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-haiku-latest", providers.ClientConfig{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")
	assert.ErrorContains(t, err, "Bad Gateway")
}

func TestAnthropic_NoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-haiku-latest", providers.ClientConfig{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "hi", "")
	assert.ErrorContains(t, err, "no text content")
}

func TestAnthropic_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := providers.NewAnthropic("claude-3-5-haiku-latest", providers.ClientConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, "hi", "")
	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Timeout())
}
