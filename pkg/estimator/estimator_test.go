package estimator_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/pkg/estimator"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"under four characters", "abc", 0},
		{"exactly four", "abcd", 1},
		{"floor", "abcdefghi", 2},
		{"whitespace counts", "    ", 1},
		{"multibyte counts characters", "héllo wörld", 2},
		{"cjk counts characters", "新しい靴を発表します", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimator.EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokens_Monotonic(t *testing.T) {
	prev := 0
	for n := range 200 {
		got := estimator.EstimateTokens(strings.Repeat("x", n))
		assert.GreaterOrEqual(t, got, prev, "length %d", n)
		prev = got
	}
}

func TestEstimateCost(t *testing.T) {
	e := estimator.New(map[string]estimator.Rate{
		"openai:gpt-4o-mini": {InputPer1K: 0.15, OutputPer1K: 0.6},
		"vllm:local":         {InputPer1K: 5, OutputPer1K: 5, Local: true},
		"open":               {InputPer1K: 0.01, OutputPer1K: 0.02},
	})

	tests := []struct {
		name      string
		provider  string
		in, out   int
		want      float64
	}{
		{"hosted", "openai:gpt-4o-mini", 1000, 2000, 0.15 + 1.2},
		{"fractional thousands", "openai:gpt-4o-mini", 500, 0, 0.075},
		{"unknown falls back to open", "mistral:large", 1000, 1000, 0.03},
		{"local flag is free", "vllm:local", 100000, 100000, 0},
		{"ollama kind is free", "ollama:anything", 100000, 100000, 0},
		{"zero tokens", "openai:gpt-4o-mini", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.EstimateCost(tt.provider, tt.in, tt.out), 1e-12)
		})
	}
}

func TestEstimateCost_LocalIsExactlyZero(t *testing.T) {
	e := estimator.New(nil)
	assert.Equal(t, 0.0, e.EstimateCost("ollama:llama3.1", 12345, 6789))
}

func TestEstimateCost_MonotonicInTokens(t *testing.T) {
	e := estimator.New(nil)
	prev := 0.0
	for n := 0; n < 10000; n += 250 {
		got := e.EstimateCost("openai:gpt-4o", n, n)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestNew_InheritsOpenRate(t *testing.T) {
	e := estimator.New(map[string]estimator.Rate{"openai:gpt-4o": {InputPer1K: 1}})
	r, dedicated := e.Rate("unknown:model")
	assert.False(t, dedicated)
	assert.Equal(t, estimator.DefaultRates[estimator.OpenRateKey], r)

	_, dedicated = e.Rate("openai:gpt-4o")
	assert.True(t, dedicated)
}

func TestRates_ReturnsCopy(t *testing.T) {
	e := estimator.New(nil)
	rates := e.Rates()
	rates["openai:gpt-4o-mini"] = estimator.Rate{InputPer1K: 99}
	r, _ := e.Rate("openai:gpt-4o-mini")
	assert.NotEqual(t, 99.0, r.InputPer1K)
}

func TestLoadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	data := []byte(`
updated: "2026-03-01"
rates:
  openai:gpt-4o-mini:
    input_per_1k: 0.2
    output_per_1k: 0.8
  vllm:mixtral:
    local: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	rates, err := estimator.LoadRates(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rates["openai:gpt-4o-mini"].InputPer1K, 1e-12)
	assert.True(t, rates["vllm:mixtral"].Local)
	assert.Contains(t, rates, "anthropic:claude-3-5-sonnet-latest")
	assert.Contains(t, rates, estimator.OpenRateKey)
}

func TestLoadRates_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"invalid yaml", "rates: [yaml", "parse pricing data"},
		{"no rates", "updated: x\nrates: {}\n", "no rates"},
		{"negative", "rates:\n  a:b:\n    input_per_1k: -1\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := estimator.LoadRates(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadRates_FileNotFound(t *testing.T) {
	_, err := estimator.LoadRates("/nonexistent/pricing.yaml")
	assert.Error(t, err)
}

func BenchmarkEstimateCost(b *testing.B) {
	e := estimator.New(nil)
	for b.Loop() {
		e.EstimateCost("openai:gpt-4o-mini", 1200, 400)
	}
}
