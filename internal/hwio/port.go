// Package hwio is the boundary to the hardware: reading and writing native
// values of the physical quantities the daemon controls.
package hwio

import (
	"context"
	"errors"
)

// ErrNoValue is returned when a quantity has never been reported by the device.
var ErrNoValue = errors.New("no value reported for quantity")

// Quantity names a physical quantity on the device.
type Quantity string

const (
	QuantityDisplayGain      Quantity = "display_gain"
	QuantityBeyondBrightness Quantity = "beyond_brightness"
	QuantityImageGain        Quantity = "image_gain"
	QuantityColorTemperature Quantity = "color_temperature"
)

// Port reads and writes native values. Calls are idempotent and either
// complete or fail; there are no partial writes.
type Port interface {
	Get(ctx context.Context, q Quantity) (float64, error)
	Set(ctx context.Context, q Quantity, v float64) error
}
