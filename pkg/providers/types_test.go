package providers_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    providers.ID
		wantErr bool
	}{
		{"openai:gpt-4o-mini", providers.ID{Kind: providers.KindOpenAI, Model: "gpt-4o-mini"}, false},
		{"ollama:llama3.1", providers.ID{Kind: providers.KindOllama, Model: "llama3.1"}, false},
		{"ollama:qwen2.5-coder:14b", providers.ID{Kind: providers.KindOllama, Model: "qwen2.5-coder:14b"}, false},
		{"anthropic:claude-3-5-haiku-latest", providers.ID{Kind: providers.KindAnthropic, Model: "claude-3-5-haiku-latest"}, false},
		{"gpt-4o", providers.ID{}, true},
		{"openai:", providers.ID{}, true},
		{"mistral:large", providers.ID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := providers.ParseID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestMustParseID_Panics(t *testing.T) {
	assert.Panics(t, func() { providers.MustParseID("nope") })
}

func TestKind_Local(t *testing.T) {
	assert.True(t, providers.KindOllama.Local())
	assert.False(t, providers.KindOpenAI.Local())
	assert.False(t, providers.KindAnthropic.Local())
}

func TestError(t *testing.T) {
	err := &providers.Error{Provider: "openai:gpt-4o", StatusCode: 429, Err: errors.New("slow down")}
	assert.Equal(t, "provider openai:gpt-4o: status 429: slow down", err.Error())

	timeout := &providers.Error{Provider: "ollama:llama3.1", Err: fmt.Errorf("call: %w", context.DeadlineExceeded)}
	assert.True(t, timeout.Timeout())
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.False(t, err.Timeout())
}
