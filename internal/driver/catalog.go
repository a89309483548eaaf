package driver

import (
	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/hwio"
	"github.com/dokzlo13/dimmerd/internal/state"
)

// Driver families.
const (
	FamilyValveIndex       = "valve_index"
	FamilyBigscreenBeyond  = "bigscreen_beyond"
	FamilyImage            = "image"
	FamilyColorTemperature = "color_temperature"
)

// Device predicates for the hardware families.
var (
	ValveIndexDevice      = devices.MatchModel("Valve", "Index")
	BigscreenBeyondDevice = devices.MatchModel("Bigscreen", "Beyond")
)

// The Index exposes display brightness as an analog gain multiplier.
// 100% is gain 1.0; above that the panel is overdriven.
var valveIndexStops = calibration.MustStops(
	[]float64{20, 40, 60, 80, 100, 130, 160},
	[]float64{0.03, 0.18, 0.4, 0.68, 1.0, 1.3, 1.6},
)

// The Beyond firmware takes a raw brightness register. The vendor documents a
// linear response either side of 100%, but the panel's measured response
// below it is not linear, so readings are recovered from samples.
var beyondCurve = calibration.MustSampledCurve(
	100,
	calibration.Region{
		Percent: calibration.Range{Min: 5, Max: 100},
		Native:  calibration.Range{Min: 10, Max: 200},
	},
	calibration.Region{
		Percent: calibration.Range{Min: 100, Max: 150},
		Native:  calibration.Range{Min: 200, Max: 266},
	},
	map[float64]float64{
		10:  5,
		20:  9,
		30:  14,
		45:  21,
		60:  29,
		80:  39,
		100: 49,
		125: 61,
		150: 73,
		175: 86,
		200: 100,
		233: 125,
		266: 150,
	},
)

var imageStops = calibration.MustStops(
	[]float64{0, 100},
	[]float64{0, 1},
)

// Colour temperature is written in Kelvin.
var colorTemperatureStops = calibration.MustStops(
	[]float64{1000, 6600, 10000},
	[]float64{1000, 6600, 10000},
)

// ValveIndex creates the Valve Index display brightness driver.
func ValveIndex(port hwio.Port, available *state.Cell[bool], caps Caps) *Calibrated {
	return NewCalibrated(Options{
		ID:         FamilyValveIndex,
		Quantity:   hwio.QuantityDisplayGain,
		Curve:      valveIndexStops,
		Thresholds: calibration.Thresholds{Overdrive: 100, Risk: 140},
		Port:       port,
		Available:  available,
		Caps:       caps,
	})
}

// BigscreenBeyond creates the Bigscreen Beyond display brightness driver.
func BigscreenBeyond(port hwio.Port, available *state.Cell[bool], caps Caps) *Calibrated {
	return NewCalibrated(Options{
		ID:         FamilyBigscreenBeyond,
		Quantity:   hwio.QuantityBeyondBrightness,
		Curve:      beyondCurve,
		Thresholds: calibration.Thresholds{Overdrive: 100, Risk: 130},
		Port:       port,
		Available:  available,
		Caps:       caps,
	})
}

// ImageGain creates the compositor image brightness driver.
func ImageGain(port hwio.Port) *Calibrated {
	return NewCalibrated(Options{
		ID:       FamilyImage,
		Quantity: hwio.QuantityImageGain,
		Curve:    imageStops,
		Port:     port,
	})
}

// ColorTemperature creates the compositor colour temperature driver.
func ColorTemperature(port hwio.Port) *Calibrated {
	return NewCalibrated(Options{
		ID:       FamilyColorTemperature,
		Quantity: hwio.QuantityColorTemperature,
		Curve:    colorTemperatureStops,
		Port:     port,
	})
}
