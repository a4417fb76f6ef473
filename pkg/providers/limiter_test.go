package providers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

func TestWithRateLimit_ZeroIsPassthrough(t *testing.T) {
	p := &stubProvider{id: providers.MustParseID("openai:gpt-4o")}
	assert.Same(t, p, providers.WithRateLimit(p, 0, 0))
}

func TestWithRateLimit_KeepsID(t *testing.T) {
	p := &stubProvider{id: providers.MustParseID("openai:gpt-4o")}
	limited := providers.WithRateLimit(p, 10, 1)
	assert.Equal(t, p.ID(), limited.ID())

	text, err := limited.Complete(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", text)
}

func TestWithRateLimit_WaitRespectsContext(t *testing.T) {
	p := &stubProvider{id: providers.MustParseID("anthropic:claude-3-5-haiku-latest")}
	limited := providers.WithRateLimit(p, 0.01, 1)

	_, err := limited.Complete(context.Background(), "first", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, "second", "")

	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, 1, p.calls)
}
