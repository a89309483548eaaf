package controller

import "fmt"

// Registry looks controllers up by axis name.
type Registry struct {
	order  []string
	byName map[string]Controller
}

// NewRegistry creates a registry in the given order.
func NewRegistry(controllers ...Controller) *Registry {
	r := &Registry{byName: make(map[string]Controller, len(controllers))}
	for _, c := range controllers {
		if _, exists := r.byName[c.Name()]; !exists {
			r.order = append(r.order, c.Name())
		}
		r.byName[c.Name()] = c
	}
	return r
}

// Get returns the controller for an axis.
func (r *Registry) Get(name string) (Controller, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
	}
	return c, nil
}

// All returns every controller in registration order.
func (r *Registry) All() []Controller {
	out := make([]Controller, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the registered axis names.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// CancelAll cancels every active transition.
func (r *Registry) CancelAll() {
	for _, c := range r.All() {
		c.CancelActiveTransition()
	}
}
