package calibration

import (
	"fmt"
	"sort"
)

// Region is a linear segment between a percentage range and a native range.
type Region struct {
	Percent Range
	Native  Range
}

func (r Region) toNative(p float64) float64 {
	if r.Percent.Max == r.Percent.Min {
		return r.Native.Min
	}
	return Lerp(r.Native.Min, r.Native.Max, (p-r.Percent.Min)/(r.Percent.Max-r.Percent.Min))
}

// SampledCurve calibrates devices whose firmware response is non-linear and
// undocumented below a pivot.
//
// Forward mapping (percentage -> native) uses the two documented linear
// regions either side of the pivot. Inverse mapping (native -> percentage)
// uses an empirical sample table, because readings from the device follow the
// measured curve rather than the documented one.
type SampledCurve struct {
	pivot   float64
	below   Region
	above   Region
	keys    []float64
	samples map[float64]float64
}

// NewSampledCurve builds a curve from the documented regions and a table of
// native reading -> percentage samples.
func NewSampledCurve(pivot float64, below, above Region, samples map[float64]float64) (*SampledCurve, error) {
	if below.Percent.Max != pivot || above.Percent.Min != pivot {
		return nil, fmt.Errorf("%w: regions must meet at pivot %v", ErrInvalidStops, pivot)
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: need at least two samples", ErrInvalidStops)
	}

	keys := make([]float64, 0, len(samples))
	for k := range samples {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	for i := 1; i < len(keys); i++ {
		if samples[keys[i]] < samples[keys[i-1]] {
			return nil, fmt.Errorf("%w: samples must be monotonic at native %v", ErrInvalidStops, keys[i])
		}
	}

	table := make(map[float64]float64, len(samples))
	for k, v := range samples {
		table[k] = v
	}

	return &SampledCurve{
		pivot:   pivot,
		below:   below,
		above:   above,
		keys:    keys,
		samples: table,
	}, nil
}

// MustSampledCurve is NewSampledCurve for static tables; it panics on invalid input.
func MustSampledCurve(pivot float64, below, above Region, samples map[float64]float64) *SampledCurve {
	c, err := NewSampledCurve(pivot, below, above, samples)
	if err != nil {
		panic(err)
	}
	return c
}

// Bounds returns the logical percentage range.
func (c *SampledCurve) Bounds() Range {
	return Range{Min: c.below.Percent.Min, Max: c.above.Percent.Max}
}

// NativeBounds returns the sampled native range.
func (c *SampledCurve) NativeBounds() Range {
	return Range{Min: c.keys[0], Max: c.keys[len(c.keys)-1]}
}

// ToNative maps a percentage through the documented linear regions.
func (c *SampledCurve) ToNative(percentage float64) (float64, error) {
	b := c.Bounds()
	if !b.Contains(percentage) {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, percentage, b.Min, b.Max)
	}
	if percentage <= c.pivot {
		return c.below.toNative(percentage), nil
	}
	return c.above.toNative(percentage), nil
}

// ToPercentage recovers a percentage from a native reading using the sample
// table: the nearest sample at or below the reading is found by scanning the
// sorted keys from the top, then interpolated against the next sample up.
func (c *SampledCurve) ToPercentage(native float64) (float64, error) {
	last := len(c.keys) - 1
	if native < c.keys[0] || native > c.keys[last] {
		return 0, fmt.Errorf("%w: native %v not in [%v, %v]", ErrOutOfRange, native, c.keys[0], c.keys[last])
	}

	lo := -1
	for i := last; i >= 0; i-- {
		if c.keys[i] <= native {
			lo = i
			break
		}
	}
	if lo < 0 {
		return 0, fmt.Errorf("%w: native %v", ErrNoSegment, native)
	}

	loKey := c.keys[lo]
	if loKey == native || lo == last {
		return c.samples[loKey], nil
	}

	hiKey := c.keys[lo+1]
	return Lerp(c.samples[loKey], c.samples[hiKey], (native-loKey)/(hiKey-loKey)), nil
}
