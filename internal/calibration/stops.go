// Package calibration maps a logical percentage scale to a device's native
// control range and back.
package calibration

import (
	"fmt"
	"sort"
)

// Range is a closed interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	return Clamp(v, r.Min, r.Max)
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Stops is a monotonic piecewise-linear map between logical percentages
// (Software) and native device units (Hardware). Both slices are ascending
// and have the same length.
type Stops struct {
	software []float64
	hardware []float64
}

// NewStops validates and builds a stop table.
func NewStops(software, hardware []float64) (*Stops, error) {
	if len(software) != len(hardware) {
		return nil, fmt.Errorf("%w: %d software stops, %d hardware stops", ErrInvalidStops, len(software), len(hardware))
	}
	if len(software) < 2 {
		return nil, fmt.Errorf("%w: need at least two stops", ErrInvalidStops)
	}
	if !sort.Float64sAreSorted(software) || !sort.Float64sAreSorted(hardware) {
		return nil, fmt.Errorf("%w: stops must be ascending", ErrInvalidStops)
	}

	return &Stops{
		software: append([]float64(nil), software...),
		hardware: append([]float64(nil), hardware...),
	}, nil
}

// MustStops is NewStops for static tables; it panics on invalid input.
func MustStops(software, hardware []float64) *Stops {
	s, err := NewStops(software, hardware)
	if err != nil {
		panic(err)
	}
	return s
}

// Bounds returns the logical percentage range.
func (s *Stops) Bounds() Range {
	return Range{Min: s.software[0], Max: s.software[len(s.software)-1]}
}

// NativeBounds returns the native unit range.
func (s *Stops) NativeBounds() Range {
	return Range{Min: s.hardware[0], Max: s.hardware[len(s.hardware)-1]}
}

// ToNative maps a logical percentage to native units.
func (s *Stops) ToNative(percentage float64) (float64, error) {
	return interpolate(s.software, s.hardware, percentage)
}

// ToPercentage maps native units back to a logical percentage.
func (s *Stops) ToPercentage(native float64) (float64, error) {
	return interpolate(s.hardware, s.software, native)
}

// interpolate finds the bracket [from[i], from[i+1]] holding v and maps it
// linearly onto [to[i], to[i+1]].
func interpolate(from, to []float64, v float64) (float64, error) {
	last := len(from) - 1
	if v < from[0] || v > from[last] {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, v, from[0], from[last])
	}

	for i := 0; i < last; i++ {
		lo, hi := from[i], from[i+1]
		if v < lo || v > hi {
			continue
		}
		if hi == lo {
			return to[i], nil
		}
		return Lerp(to[i], to[i+1], (v-lo)/(hi-lo)), nil
	}

	return 0, fmt.Errorf("%w: %v", ErrNoSegment, v)
}
