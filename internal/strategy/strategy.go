// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry of named strategy factories.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"vicitrade/internal/domain"
	"vicitrade/internal/engine"
	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
)

// ErrUnknownStrategy is returned when a strategy name is not registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the interface that all trading strategies must implement. A
// Strategy instance may keep state between bars and must not be shared by
// concurrent runs.
type Strategy interface {
	// Name returns the display name of this strategy.
	Name() string

	// Indicators lists the indicator columns to precompute for every
	// symbol before the first bar.
	Indicators() []domain.IndicatorConfig

	// OnStart is called once before the first bar.
	OnStart(p *portfolio.Portfolio, symbols []string) error

	// OnBar is called for each trading date with one row per symbol. Orders
	// placed here fill at the prices given and are reflected in the same
	// date's equity snapshot.
	OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error

	// OnEnd is called once after the last bar.
	OnEnd(p *portfolio.Portfolio) error
}

// Compile-time check that every Strategy can be driven by the engine.
var _ engine.Strategy = Strategy(nil)

// Base provides no-op lifecycle hooks for embedding.
type Base struct{}

func (Base) Indicators() []domain.IndicatorConfig         { return nil }
func (Base) OnStart(*portfolio.Portfolio, []string) error { return nil }
func (Base) OnEnd(*portfolio.Portfolio) error             { return nil }

// Params holds numeric strategy parameters.
type Params map[string]float64

// Get returns the named parameter, or def when it is absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory builds a fresh Strategy from parameters.
type Factory func(params Params) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// New builds a new instance of the named strategy.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("building strategy %q: %w", name, err)
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
