package providers

import (
	"fmt"
	"sync"
)

// Registry manages provider instances by id. Providers not registered
// explicitly are built on first use from Settings.
type Registry struct {
	mu        sync.RWMutex
	providers map[ID]Provider
	settings  *Settings
}

// NewRegistry creates an empty provider registry that can only serve
// explicitly registered providers.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ID]Provider),
	}
}

// NewRegistryWithSettings creates a registry that builds missing providers
// from s.
func NewRegistryWithSettings(s Settings) *Registry {
	r := NewRegistry()
	r.settings = &s
	return r
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}
	r.providers[id] = p
	return nil
}

// Get returns the provider for id, building it when settings are present.
func (r *Registry) Get(id ID) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	if r.settings == nil {
		return nil, fmt.Errorf("provider %q not found", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	p, err := r.settings.Build(id)
	if err != nil {
		return nil, err
	}
	r.providers[id] = p
	return p, nil
}

// Settings holds per-backend connection settings.
type Settings struct {
	OpenAI    ClientConfig
	Anthropic ClientConfig
	Ollama    ClientConfig
}

// Build constructs a provider for id, rate limited when its backend sets RPS.
func (s Settings) Build(id ID) (Provider, error) {
	var (
		p   Provider
		cfg ClientConfig
	)
	switch id.Kind {
	case KindOpenAI:
		cfg = s.OpenAI
		p = NewOpenAI(id.Model, cfg)
	case KindAnthropic:
		cfg = s.Anthropic
		p = NewAnthropic(id.Model, cfg)
	case KindOllama:
		cfg = s.Ollama
		p = NewOllama(id.Model, cfg)
	default:
		return nil, fmt.Errorf("provider %q: unknown kind", id)
	}
	return WithRateLimit(p, cfg.RPS, cfg.Burst), nil
}
