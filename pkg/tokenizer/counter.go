// Package tokenizer counts tokens precisely where a BPE encoding is known.
// The routing core bills with the coarse estimator; this package backs the
// operator-facing comparison in the estimate command.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/ogulcanaydogan/genroute/pkg/estimator"
)

// encodingForModel maps OpenAI model names to tiktoken encodings.
var encodingForModel = map[string]tokenizer.Encoding{
	"gpt-4o":        tokenizer.O200kBase,
	"gpt-4o-mini":   tokenizer.O200kBase,
	"gpt-4.1":       tokenizer.O200kBase,
	"gpt-4.1-mini":  tokenizer.O200kBase,
	"o3-mini":       tokenizer.O200kBase,
	"gpt-4-turbo":   tokenizer.Cl100kBase,
	"gpt-4":         tokenizer.Cl100kBase,
	"gpt-3.5-turbo": tokenizer.Cl100kBase,
}

var (
	codecMu sync.Mutex
	codecs  = map[tokenizer.Encoding]tokenizer.Codec{}
)

// Count is a token count together with how it was obtained.
type Count struct {
	Tokens int
	// Exact is false when the count fell back to the coarse estimate.
	Exact    bool
	Encoding string
}

// CountTokens counts the tokens of text for a "kind:model" provider id.
// OpenAI models use tiktoken; every other provider gets the coarse estimate.
func CountTokens(providerID, text string) (Count, error) {
	kind, model, _ := strings.Cut(providerID, ":")
	if kind != "openai" {
		return Count{Tokens: estimator.EstimateTokens(text)}, nil
	}

	enc, ok := encodingForModel[model]
	if !ok {
		enc = tokenizer.Cl100kBase
	}
	codec, err := codecFor(enc)
	if err != nil {
		return Count{}, err
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return Count{}, fmt.Errorf("encode text: %w", err)
	}
	return Count{Tokens: len(ids), Exact: true, Encoding: string(enc)}, nil
}

// CountPrompt counts a system+user exchange, adding the chat framing overhead
// of four tokens per message plus two for reply priming.
func CountPrompt(providerID, prompt, system string) (Count, error) {
	total := Count{Exact: true}
	messages := []string{prompt}
	if system != "" {
		messages = append(messages, system)
	}
	for _, m := range messages {
		c, err := CountTokens(providerID, m)
		if err != nil {
			return Count{}, err
		}
		total.Tokens += c.Tokens + 4
		total.Exact = total.Exact && c.Exact
		total.Encoding = c.Encoding
	}
	total.Tokens += 2
	return total, nil
}

func codecFor(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	codecMu.Lock()
	defer codecMu.Unlock()

	if c, ok := codecs[enc]; ok {
		return c, nil
	}
	c, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", enc, err)
	}
	codecs[enc] = c
	return c, nil
}
