package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by [Registry.CreateVAD] when no
// factory has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps VAD engine names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	vad map[string]func(ProviderEntry) (vad.Engine, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad: make(map[string]func(ProviderEntry) (vad.Engine, error)),
	}
}

// RegisterVAD registers a VAD engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateVAD instantiates a VAD engine using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// VADNames returns the registered engine names in sorted order.
func (r *Registry) VADNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.vad))
	for n := range r.vad {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// FloatOption reads a numeric option. YAML decodes integers as int and
// decimals as float64; both are accepted. Absent keys return def.
func (e ProviderEntry) FloatOption(key string, def float64) (float64, error) {
	v, ok := e.Options[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("config: option %q: want number, got %T", key, v)
	}
}

// FloatsOption reads a list of numbers of exactly length n. Absent keys
// return nil.
func (e ProviderEntry) FloatsOption(key string, n int) ([]float64, error) {
	v, ok := e.Options[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("config: option %q: want list, got %T", key, v)
	}
	if len(list) != n {
		return nil, fmt.Errorf("config: option %q: want %d values, got %d", key, n, len(list))
	}
	out := make([]float64, n)
	for i, item := range list {
		switch x := item.(type) {
		case int:
			out[i] = float64(x)
		case float64:
			out[i] = x
		default:
			return nil, fmt.Errorf("config: option %q[%d]: want number, got %T", key, i, item)
		}
	}
	return out, nil
}
