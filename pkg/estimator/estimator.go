// Package estimator derives token counts and USD cost for a generation
// without consulting the provider's own accounting.
package estimator

import (
	"strings"
	"unicode/utf8"
)

// OpenRateKey is the rate table entry used for provider ids that have no
// entry of their own.
const OpenRateKey = "open"

// Rate is a per-1k-token price pair.
type Rate struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
	// Local marks self-hosted models; their cost is always zero.
	Local bool `yaml:"local,omitempty"`
}

// DefaultRates is the built-in rate table.
var DefaultRates = map[string]Rate{
	"openai:gpt-4o-mini":                 {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"openai:gpt-4o":                      {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"openai:gpt-4.1-mini":                {InputPer1K: 0.0004, OutputPer1K: 0.0016},
	"anthropic:claude-3-5-haiku-latest":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"anthropic:claude-3-5-sonnet-latest": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"ollama:llama3.1":                    {Local: true},
	OpenRateKey:                          {InputPer1K: 0.0001, OutputPer1K: 0.0001},
}

// localKinds are provider kinds that never bill, whatever the table says.
var localKinds = []string{"ollama:"}

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded down. It is deliberately coarse and not a tokenizer.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// Estimator prices generations from a rate table.
type Estimator struct {
	rates map[string]Rate
}

// New creates an estimator. A nil table selects DefaultRates; a table without
// an "open" entry inherits the default one.
func New(rates map[string]Rate) *Estimator {
	if rates == nil {
		rates = DefaultRates
	}
	table := make(map[string]Rate, len(rates)+1)
	for id, r := range rates {
		table[id] = r
	}
	if _, ok := table[OpenRateKey]; !ok {
		table[OpenRateKey] = DefaultRates[OpenRateKey]
	}
	return &Estimator{rates: table}
}

// Rate returns the rate applied to providerID and whether it came from a
// dedicated entry rather than the open fallback.
func (e *Estimator) Rate(providerID string) (Rate, bool) {
	r, ok := e.rates[providerID]
	if !ok {
		return e.rates[OpenRateKey], false
	}
	return r, true
}

// Rates returns a copy of the table.
func (e *Estimator) Rates() map[string]Rate {
	out := make(map[string]Rate, len(e.rates))
	for id, r := range e.rates {
		out[id] = r
	}
	return out
}

// EstimateCost returns tokensIn/1000*input + tokensOut/1000*output for the
// provider. Local providers cost exactly zero.
func (e *Estimator) EstimateCost(providerID string, tokensIn, tokensOut int) float64 {
	if isLocal(providerID) {
		return 0
	}
	r, _ := e.Rate(providerID)
	if r.Local {
		return 0
	}
	return float64(tokensIn)/1000*r.InputPer1K + float64(tokensOut)/1000*r.OutputPer1K
}

func isLocal(providerID string) bool {
	for _, prefix := range localKinds {
		if strings.HasPrefix(providerID, prefix) {
			return true
		}
	}
	return false
}
