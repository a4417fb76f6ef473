package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI calls the chat completions API of OpenAI or any compatible server.
type OpenAI struct {
	id      ID
	client  *openai.Client
	timeout time.Duration
	maxTok  int
}

// NewOpenAI creates an OpenAI-compatible chat provider for model.
func NewOpenAI(model string, cfg ClientConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		id:      ID{Kind: KindOpenAI, Model: model},
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: cfg.Timeout,
		maxTok:  cfg.MaxTokens,
	}
}

func (o *OpenAI) ID() ID { return o.id }

func (o *OpenAI) Complete(ctx context.Context, prompt, system string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:    o.id.Model,
		Messages: messages,
	}
	if o.maxTok > 0 {
		req.MaxCompletionTokens = o.maxTok
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", o.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: o.id.String(), Err: errors.New("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapError extracts the HTTP status and API message when present.
func (o *OpenAI) wrapError(err error) error {
	pe := &Error{Provider: o.id.String(), Err: err}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Err = fmt.Errorf("%s: %w", apiErr.Message, err)
		return pe
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		pe.StatusCode = reqErr.HTTPStatusCode
	}
	return pe
}
