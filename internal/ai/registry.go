package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

// ProviderFactory builds a provider for an already resolved model name.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type registration struct {
	factory      ProviderFactory
	defaultModel string
}

// Registry maps AI_PROVIDER names to provider factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds f under name. defaultModel is passed to f when the caller
// asks for no particular model.
func (r *Registry) Register(name, defaultModel string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[normalizeName(name)] = registration{factory: f, defaultModel: defaultModel}
}

func (r *Registry) lookup(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalizeName(name)]
	return e, ok
}

// Model resolves the model Get would build for name.
func (r *Registry) Model(name, model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	e, _ := r.lookup(name)
	return e.defaultModel
}

func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownProvider, normalizeName(name), strings.Join(r.Names(), ", "))
	}
	return e.factory(ctx, r.Model(name, model))
}

// NewAssistant builds the named provider and wraps it with timeout.
func (r *Registry) NewAssistant(ctx context.Context, name, model string, timeout time.Duration) (*Assistant, error) {
	p, err := r.Get(ctx, name, model)
	if err != nil {
		return nil, err
	}
	return NewAssistant(p, timeout), nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for n := range r.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
