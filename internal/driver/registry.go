package driver

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/state"
)

// Registry selects the active hardware driver: the first registered driver
// whose device is available.
type Registry struct {
	drivers []Driver
	active  *state.Cell[Driver]

	// mu is held across selection and notification so watchers see
	// changes in the order they were made.
	mu sync.Mutex
}

// NewRegistry creates a registry over drivers in priority order.
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{
		drivers: drivers,
		active:  state.NewCell[Driver](nil),
	}

	for _, d := range drivers {
		d.Available().Subscribe(func(bool) { r.reselect() })
	}
	r.reselect()

	return r
}

func (r *Registry) reselect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next Driver
	for _, d := range r.drivers {
		if d.Available().Get() {
			next = d
			break
		}
	}

	if state.SetDistinct(r.active, next) {
		if next == nil {
			log.Info().Msg("No hardware brightness driver available")
		} else {
			log.Info().Str("driver", next.ID()).Msg("Hardware brightness driver selected")
		}
	}
}

// Active returns the selected driver or nil.
func (r *Registry) Active() Driver {
	return r.active.Get()
}

// Watch calls fn whenever the active driver changes.
func (r *Registry) Watch(fn func(Driver)) func() {
	return r.active.Subscribe(fn)
}

// All returns every registered driver.
func (r *Registry) All() []Driver {
	return append([]Driver(nil), r.drivers...)
}
