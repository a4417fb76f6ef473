package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://127.0.0.1:11434"

// Ollama calls a local Ollama server's chat endpoint without streaming.
type Ollama struct {
	id      ID
	baseURL string
	client  *http.Client
}

// NewOllama creates a provider for a locally served model.
func NewOllama(model string, cfg ClientConfig) *Ollama {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOllamaURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		id:      ID{Kind: KindOllama, Model: model},
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) ID() ID { return o.id }

func (o *Ollama) Complete(ctx context.Context, prompt, system string) (string, error) {
	messages := make([]ollamaMessage, 0, 2)
	if system != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	var resp ollamaChatResponse
	req := ollamaChatRequest{Model: o.id.Model, Messages: messages, Stream: false}
	if err := postJSON(ctx, o.client, o.id.String(), o.baseURL+"/api/chat", nil, req, &resp, decodeOllamaError); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func decodeOllamaError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
