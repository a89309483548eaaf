package controller

import (
	"context"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/driver"
)

// fixedTarget binds an axis to a single driver.
type fixedTarget struct {
	driver driver.Driver
}

func (t fixedTarget) bounds() (calibration.Range, bool) {
	if !t.driver.Available().Get() {
		return calibration.Range{}, false
	}
	return t.driver.Bounds(), true
}

func (t fixedTarget) read(ctx context.Context) (float64, error) {
	return t.driver.Percentage(ctx)
}

func (t fixedTarget) write(ctx context.Context, v float64, _ bool) error {
	return t.driver.SetPercentage(ctx, v)
}

// Software controls the image gain layer.
type Software struct {
	*axis
}

// NewSoftware creates the image gain controller.
func NewSoftware(d driver.Driver, deps Deps) *Software {
	return &Software{axis: newAxis(AxisImage, fixedTarget{driver: d}, deps)}
}

// CCT controls colour temperature in Kelvin.
type CCT struct {
	*axis
}

// NewCCT creates the colour temperature controller.
func NewCCT(d driver.Driver, deps Deps) *CCT {
	return &CCT{axis: newAxis(AxisCCT, fixedTarget{driver: d}, deps)}
}
