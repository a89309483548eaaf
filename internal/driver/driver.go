// Package driver maps logical percentages onto specific devices.
//
// A driver couples a calibration curve with a hardware quantity, an
// availability signal derived from device enumeration, and optional
// user-configured safety caps that narrow its upper bound.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/hwio"
	"github.com/dokzlo13/dimmerd/internal/state"
)

// ErrValueUnavailable is returned when the device has no readable value.
var ErrValueUnavailable = errors.New("driver value unavailable")

// Driver is the capability every device family implements.
type Driver interface {
	ID() string
	Quantity() hwio.Quantity
	Available() *state.Cell[bool]
	Percentage(ctx context.Context) (float64, error)
	SetPercentage(ctx context.Context, p float64) error
	Bounds() calibration.Range
	WatchBounds(fn func(calibration.Range)) func()
	Thresholds() calibration.Thresholds
}

// Curve is a calibration between percentages and native units.
// Implemented by calibration.Stops and calibration.SampledCurve.
type Curve interface {
	Bounds() calibration.Range
	NativeBounds() calibration.Range
	ToNative(p float64) (float64, error)
	ToPercentage(native float64) (float64, error)
}

// Caps provides user safety caps keyed by driver family.
type Caps interface {
	MaxBrightness(family string) (float64, bool)
	Watch(fn func()) func()
}

// Calibrated is a driver backed by a Curve.
type Calibrated struct {
	id         string
	quantity   hwio.Quantity
	curve      Curve
	thresholds calibration.Thresholds
	port       hwio.Port
	available  *state.Cell[bool]
	caps       Caps
	bounds     *state.Cell[calibration.Range]
}

// Options configures a Calibrated driver.
type Options struct {
	ID         string
	Quantity   hwio.Quantity
	Curve      Curve
	Thresholds calibration.Thresholds
	Port       hwio.Port
	// Available defaults to always available.
	Available *state.Cell[bool]
	// Caps may narrow the upper bound; nil disables capping.
	Caps Caps
}

// NewCalibrated creates a driver.
func NewCalibrated(opts Options) *Calibrated {
	avail := opts.Available
	if avail == nil {
		avail = state.NewCell(true)
	}

	d := &Calibrated{
		id:         opts.ID,
		quantity:   opts.Quantity,
		curve:      opts.Curve,
		thresholds: opts.Thresholds,
		port:       opts.Port,
		available:  avail,
		caps:       opts.Caps,
	}
	d.bounds = state.NewCell(d.computeBounds())

	if d.caps != nil {
		d.caps.Watch(func() {
			b := d.computeBounds()
			if state.SetDistinct(d.bounds, b) {
				log.Info().
					Str("driver", d.id).
					Float64("min", b.Min).
					Float64("max", b.Max).
					Msg("Driver bounds changed")
			}
		})
	}

	return d
}

// ID returns the driver family.
func (d *Calibrated) ID() string { return d.id }

// Quantity returns the hardware quantity the driver writes.
func (d *Calibrated) Quantity() hwio.Quantity { return d.quantity }

// Available reports whether the device is connected.
func (d *Calibrated) Available() *state.Cell[bool] { return d.available }

// Thresholds returns the overdrive/risk labels.
func (d *Calibrated) Thresholds() calibration.Thresholds { return d.thresholds }

// Bounds returns the logical range, narrowed by any safety cap.
func (d *Calibrated) Bounds() calibration.Range {
	return d.bounds.Get()
}

// WatchBounds calls fn whenever the bounds change.
func (d *Calibrated) WatchBounds(fn func(calibration.Range)) func() {
	return d.bounds.Subscribe(fn)
}

func (d *Calibrated) computeBounds() calibration.Range {
	b := d.curve.Bounds()
	if d.caps == nil {
		return b
	}
	if limit, ok := d.caps.MaxBrightness(d.id); ok && limit < b.Max {
		b.Max = calibration.Clamp(limit, b.Min, b.Max)
	}
	return b
}

// Percentage reads the native value and maps it back to a percentage.
func (d *Calibrated) Percentage(ctx context.Context) (float64, error) {
	native, err := d.port.Get(ctx, d.quantity)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrValueUnavailable, d.id, err)
	}

	nb := d.curve.NativeBounds()
	if !nb.Contains(native) {
		log.Debug().
			Str("driver", d.id).
			Float64("native", native).
			Msg("Native reading outside calibration, clamping")
		native = nb.Clamp(native)
	}

	return d.curve.ToPercentage(native)
}

// SetPercentage clamps p to the bounds, maps it to native units and writes it.
func (d *Calibrated) SetPercentage(ctx context.Context, p float64) error {
	b := d.Bounds()
	clamped := b.Clamp(p)
	if clamped != p {
		log.Warn().
			Str("driver", d.id).
			Float64("requested", p).
			Float64("clamped", clamped).
			Msg("Percentage outside driver bounds, clamping")
	}

	native, err := d.curve.ToNative(clamped)
	if err != nil {
		return err
	}

	return d.port.Set(ctx, d.quantity, native)
}
