package controller

import (
	"context"
	"sync/atomic"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/driver"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/task"
	"github.com/dokzlo13/dimmerd/internal/transition"
)

// Simple is a single brightness dial spanning the image and display layers.
//
// With a hardware driver, values below the display floor (the breakpoint)
// dim the image layer while the display stays at its floor; values above it
// keep the image at 100 and drive the display directly. Without one the dial
// is the image layer.
type Simple struct {
	*axis
	hw *Hardware
	sw *Software

	// composing is set while Simple writes its own layers.
	composing atomic.Bool
}

type simpleTarget struct {
	s *Simple
}

// NewSimple creates the composite controller.
func NewSimple(hw *Hardware, sw *Software, deps Deps) *Simple {
	s := &Simple{hw: hw, sw: sw}
	s.axis = newAxis(AxisSimple, simpleTarget{s: s}, deps)
	s.axis.observers = append(s.axis.observers, s.settleLayers)

	// A layer written by anyone else invalidates the composed value.
	layerChanged := func(float64) {
		if !s.composing.Load() {
			s.forget()
		}
	}
	hw.Watch(layerChanged)
	sw.Watch(layerChanged)
	hw.registry.Watch(func(driver.Driver) {
		s.CancelActiveTransition()
		s.forget()
	})

	return s
}

// Breakpoint returns the display floor, false without a hardware driver.
func (s *Simple) Breakpoint() (float64, bool) {
	b, ok := s.hw.Bounds()
	return b.Min, ok
}

// Split maps a dial value onto (image, display) layer values. display is
// meaningless when hasDisplay is false.
func Split(v, breakpoint float64, hasDisplay bool) (image, display float64) {
	if !hasDisplay {
		return v, 0
	}
	if v < breakpoint {
		return v / breakpoint * 100, breakpoint
	}
	return 100, v
}

func (t simpleTarget) bounds() (calibration.Range, bool) {
	if hb, ok := t.s.hw.Bounds(); ok {
		return calibration.Range{Min: 0, Max: hb.Max}, true
	}
	if _, ok := t.s.sw.Bounds(); ok {
		return calibration.Range{Min: 0, Max: 100}, true
	}
	return calibration.Range{}, false
}

func (t simpleTarget) read(ctx context.Context) (float64, error) {
	img, err := t.s.sw.current(ctx)
	if err != nil {
		return 0, err
	}

	bp, ok := t.s.Breakpoint()
	if !ok {
		return img, nil
	}
	if img < 100 {
		return img / 100 * bp, nil
	}
	return t.s.hw.current(ctx)
}

func (t simpleTarget) write(ctx context.Context, v float64, quiet bool) error {
	s := t.s
	s.composing.Store(true)
	defer s.composing.Store(false)

	bp, hasDisplay := s.Breakpoint()
	image, display := Split(v, bp, hasDisplay)

	if hasDisplay {
		if err := s.writeLayer(ctx, s.hw.axis, display, quiet); err != nil {
			return err
		}
	}
	return s.writeLayer(ctx, s.sw.axis, image, quiet)
}

func (s *Simple) writeLayer(ctx context.Context, layer *axis, v float64, quiet bool) error {
	layer.CancelActiveTransition()
	return layer.apply(ctx, v, writeOpts{quiet: quiet})
}

// settleLayers publishes value_changed for each layer a transition moved.
// Ticks are quiet, so without this the layers would report their old values.
func (s *Simple) settleLayers(tr *transition.Task) {
	layers := []*axis{s.hw.axis, s.sw.axis}
	before := make([]float64, len(layers))
	known := make([]bool, len(layers))
	for i, l := range layers {
		before[i], known[i] = l.Value()
	}

	tr.OnFinish(func(task.Status) {
		for i, l := range layers {
			v, ok := l.Value()
			if !ok || (known[i] && v == before[i]) {
				continue
			}
			l.publish(eventbus.EventTypeValueChanged, map[string]interface{}{
				"value":  v,
				"reason": tr.Reason(),
			})
		}
	})
}
