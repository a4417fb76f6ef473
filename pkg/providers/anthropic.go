package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"
	// The Messages API rejects requests without max_tokens.
	defaultAnthropicMaxTokens = 1024
)

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	id      ID
	apiKey  string
	baseURL string
	maxTok  int
	client  *http.Client
}

// NewAnthropic creates a Messages API provider for model.
func NewAnthropic(model string, cfg ClientConfig) *Anthropic {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultAnthropicURL
	}
	maxTok := cfg.MaxTokens
	if maxTok <= 0 {
		maxTok = defaultAnthropicMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Anthropic{
		id:      ID{Kind: KindAnthropic, Model: model},
		apiKey:  cfg.APIKey,
		baseURL: base,
		maxTok:  maxTok,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *Anthropic) ID() ID { return a.id }

func (a *Anthropic) Complete(ctx context.Context, prompt, system string) (string, error) {
	req := anthropicRequest{
		Model:     a.id.Model,
		MaxTokens: a.maxTok,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var resp anthropicResponse
	if err := postJSON(ctx, a.client, a.id.String(), a.baseURL+"/v1/messages", header, req, &resp, decodeAnthropicError); err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &Error{Provider: a.id.String(), Err: errors.New("response has no text content")}
	}
	return text.String(), nil
}

func decodeAnthropicError(body []byte) string {
	var e anthropicError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Type + ": " + e.Error.Message
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
