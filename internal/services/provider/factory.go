package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/braincargo/brainblog/internal/config"
)

// ErrNoProviders means no provider could be constructed.
var ErrNoProviders = errors.New("No LLM providers available")

// New builds the adapter for cfg.Type. The set of vendors is closed.
func New(ctx context.Context, name string, cfg config.ProviderConfig) (Provider, error) {
	switch Type(cfg.Type) {
	case TypeOpenAI:
		return NewOpenAI(name, cfg)
	case TypeAnthropic:
		return NewAnthropic(name, cfg)
	case TypeGrok:
		return NewGrok(name, cfg)
	case TypeGemini:
		return NewGemini(ctx, name, cfg)
	case "":
		return nil, fmt.Errorf("provider %s has no type", name)
	default:
		return nil, fmt.Errorf("unknown provider type %q for %s", cfg.Type, name)
	}
}

// Set is the ordered collection of constructed providers. Order follows the
// configuration, so "first available" is deterministic.
type Set struct {
	providers []Provider
}

// NewSet constructs every configured provider and keeps those that build,
// available or not. An empty result is ErrNoProviders.
func NewSet(ctx context.Context, configs config.ProviderList) (*Set, error) {
	s := &Set{}
	for _, pc := range configs {
		p, err := New(ctx, pc.Name, pc)
		if err != nil {
			slog.Warn("Skipping provider", "provider", pc.Name, "type", pc.Type, "error", err)
			continue
		}
		slog.Info("Provider initialized", "provider", pc.Name, "type", pc.Type)
		s.providers = append(s.providers, p)
	}
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}
	return s, nil
}

// NewSetFrom wraps already constructed providers.
func NewSetFrom(providers ...Provider) *Set {
	return &Set{providers: providers}
}

func (s *Set) All() []Provider {
	if s == nil {
		return nil
	}
	return s.providers
}

func (s *Set) Len() int {
	return len(s.All())
}

// Get finds a provider by configured name.
func (s *Set) Get(name string) (Provider, bool) {
	for _, p := range s.All() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Lookup finds a provider by name, then by vendor type.
func (s *Set) Lookup(key string) (Provider, bool) {
	if p, ok := s.Get(key); ok {
		return p, true
	}
	for _, p := range s.All() {
		if string(p.Type()) == key {
			return p, true
		}
	}
	return nil, false
}

// Available returns the providers that currently report available.
func (s *Set) Available(ctx context.Context) []Provider {
	var out []Provider
	for _, p := range s.All() {
		if p.IsAvailable(ctx) {
			out = append(out, p)
		}
	}
	return out
}

// Fallback returns the preferred provider when it is available and otherwise
// the first available one. It returns nil when nothing is available.
func (s *Set) Fallback(ctx context.Context, preferred string) Provider {
	if preferred != "" {
		if p, ok := s.Lookup(preferred); ok && p.IsAvailable(ctx) {
			return p
		}
	}
	for _, p := range s.All() {
		if p.IsAvailable(ctx) {
			if preferred != "" {
				slog.Info("Preferred provider unavailable, falling back", "preferred", preferred, "provider", p.Name())
			}
			return p
		}
	}
	return nil
}

// Status maps each provider name to its availability.
func (s *Set) Status(ctx context.Context) map[string]bool {
	status := make(map[string]bool, s.Len())
	for _, p := range s.All() {
		status[p.Name()] = p.IsAvailable(ctx)
	}
	return status
}

// Embedder returns the first provider able to embed text.
func (s *Set) Embedder() (Embedder, bool) {
	for _, p := range s.All() {
		if e, ok := p.(Embedder); ok {
			return e, true
		}
	}
	return nil, false
}
