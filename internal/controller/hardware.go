package controller

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/driver"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
)

// Hardware drives the display backlight through whichever hardware driver
// the registry currently selects.
type Hardware struct {
	*axis
	registry *driver.Registry

	mu            sync.Mutex
	unwatchBounds func()
}

type hardwareTarget struct {
	registry *driver.Registry
}

func (t hardwareTarget) bounds() (calibration.Range, bool) {
	d := t.registry.Active()
	if d == nil {
		return calibration.Range{}, false
	}
	return d.Bounds(), true
}

func (t hardwareTarget) read(ctx context.Context) (float64, error) {
	d := t.registry.Active()
	if d == nil {
		return 0, ErrUnavailable
	}
	return d.Percentage(ctx)
}

func (t hardwareTarget) write(ctx context.Context, v float64, _ bool) error {
	d := t.registry.Active()
	if d == nil {
		return ErrUnavailable
	}
	return d.SetPercentage(ctx, v)
}

// NewHardware creates the display controller.
func NewHardware(registry *driver.Registry, deps Deps) *Hardware {
	h := &Hardware{
		axis:     newAxis(AxisDisplay, hardwareTarget{registry: registry}, deps),
		registry: registry,
	}

	h.bind(registry.Active())
	registry.Watch(h.onDriverChanged)

	return h
}

// Driver returns the active hardware driver or nil.
func (h *Hardware) Driver() driver.Driver {
	return h.registry.Active()
}

func (h *Hardware) onDriverChanged(d driver.Driver) {
	h.reset()
	h.bind(d)

	data := map[string]interface{}{"available": d != nil}
	if d != nil {
		data["driver"] = d.ID()
	}
	h.publish(eventbus.EventTypeAvailabilityChanged, data)
}

func (h *Hardware) bind(d driver.Driver) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unwatchBounds != nil {
		h.unwatchBounds()
		h.unwatchBounds = nil
	}
	if d != nil {
		h.unwatchBounds = d.WatchBounds(h.reclamp)
	}
}

// reclamp restores the value inside new bounds after a cap change.
func (h *Hardware) reclamp(b calibration.Range) {
	cur, known := h.Value()
	if !known {
		return
	}
	clamped := b.Clamp(cur)
	if clamped == cur {
		return
	}

	log.Info().
		Str("axis", h.name).
		Float64("value", cur).
		Float64("clamped", clamped).
		Msg("Bounds changed, re-clamping current value")

	if err := h.apply(h.deps.Context, clamped, writeOpts{reason: "bounds_changed"}); err != nil {
		log.Error().Err(err).Str("axis", h.name).Msg("Failed to re-clamp value")
	}
}
