package circuitbreaker

import (
	"fmt"
)

// Registry holds exactly one breaker per backend name.
// The set of backends is fixed when the registry is built.
type Registry struct {
	order    []string
	breakers map[string]*Breaker
}

// NewRegistry creates a closed breaker for each name using base as the template.
// The Name field of base is overwritten per backend.
func NewRegistry(base Config, names ...string) (*Registry, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		order:    make([]string, 0, len(names)),
		breakers: make(map[string]*Breaker, len(names)),
	}
	for _, name := range names {
		if _, exists := r.breakers[name]; exists {
			return nil, fmt.Errorf("duplicate backend name %q", name)
		}
		cfg := base
		cfg.Name = name
		r.breakers[name] = New(cfg)
		r.order = append(r.order, name)
	}

	return r, nil
}

// Get returns the breaker for the named backend, or nil if unknown.
func (r *Registry) Get(name string) *Breaker {
	return r.breakers[name]
}

// Snapshots returns the state of every breaker in registration order.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.breakers[name].Snapshot())
	}
	return out
}

// Reset closes every breaker.
func (r *Registry) Reset() {
	for _, name := range r.order {
		r.breakers[name].Reset()
	}
}
