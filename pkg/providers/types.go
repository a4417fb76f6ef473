package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of provider backends.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindOllama    Kind = "ollama" // local, never billed
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindOpenAI, KindAnthropic, KindOllama}

// Valid reports whether k is a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindAnthropic, KindOllama:
		return true
	}
	return false
}

// Local reports whether k runs self-hosted models.
func (k Kind) Local() bool { return k == KindOllama }

// ID identifies a provider and model, written "kind:model".
type ID struct {
	Kind  Kind
	Model string
}

func (id ID) String() string { return string(id.Kind) + ":" + id.Model }

// ParseID parses a "kind:model" provider id. Unknown kinds are rejected.
func ParseID(s string) (ID, error) {
	kind, model, ok := strings.Cut(s, ":")
	if !ok || model == "" {
		return ID{}, fmt.Errorf("provider id %q: want kind:model", s)
	}
	id := ID{Kind: Kind(kind), Model: model}
	if !id.Kind.Valid() {
		return ID{}, fmt.Errorf("provider id %q: unknown kind %q", s, kind)
	}
	return id, nil
}

// MustParseID is ParseID for compile-time constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Provider produces a completion for a prompt.
type Provider interface {
	// ID returns the provider and model this instance calls.
	ID() ID

	// Complete sends one system+user exchange and returns the reply text.
	Complete(ctx context.Context, prompt, system string) (string, error)
}

// Error is a provider call failure.
type Error struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *Error) Timeout() bool { return errors.Is(e.Err, context.DeadlineExceeded) }

// ClientConfig holds connection settings for one backend.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RPS limits request rate; 0 means unlimited.
	RPS   float64
	Burst int
	// MaxTokens caps reply length where the API requires it.
	MaxTokens int
}
