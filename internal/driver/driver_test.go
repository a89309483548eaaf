package driver

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/hwio"
	"github.com/dokzlo13/dimmerd/internal/state"
)

type fakeCaps struct {
	mu       sync.Mutex
	max      map[string]float64
	watchers []func()
}

func newFakeCaps() *fakeCaps {
	return &fakeCaps{max: make(map[string]float64)}
}

func (c *fakeCaps) MaxBrightness(family string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.max[family]
	return v, ok
}

func (c *fakeCaps) Watch(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
	return func() {}
}

func (c *fakeCaps) set(family string, v float64) {
	c.mu.Lock()
	c.max[family] = v
	watchers := append([]func(){}, c.watchers...)
	c.mu.Unlock()
	for _, fn := range watchers {
		fn()
	}
}

func TestValveIndex_SetPercentage(t *testing.T) {
	ctx := context.Background()
	port := hwio.NewMemory(nil)
	d := ValveIndex(port, nil, nil)

	if err := d.SetPercentage(ctx, 100); err != nil {
		t.Fatalf("SetPercentage(100) error = %v", err)
	}
	if got, _ := port.Get(ctx, hwio.QuantityDisplayGain); got != 1.0 {
		t.Errorf("native after SetPercentage(100) = %v, want 1.0", got)
	}

	// Out-of-range input is clamped before mapping.
	if err := d.SetPercentage(ctx, 500); err != nil {
		t.Fatalf("SetPercentage(500) error = %v", err)
	}
	if got, _ := port.Get(ctx, hwio.QuantityDisplayGain); got != 1.6 {
		t.Errorf("native after SetPercentage(500) = %v, want 1.6", got)
	}

	if err := d.SetPercentage(ctx, 0); err != nil {
		t.Fatalf("SetPercentage(0) error = %v", err)
	}
	if got, _ := port.Get(ctx, hwio.QuantityDisplayGain); got != 0.03 {
		t.Errorf("native after SetPercentage(0) = %v, want 0.03", got)
	}
}

func TestValveIndex_Percentage(t *testing.T) {
	ctx := context.Background()
	port := hwio.NewMemory(nil)
	d := ValveIndex(port, nil, nil)

	if _, err := d.Percentage(ctx); !errors.Is(err, ErrValueUnavailable) {
		t.Errorf("Percentage() with no reading error = %v, want %v", err, ErrValueUnavailable)
	}

	port.Seed(hwio.QuantityDisplayGain, 1.3)
	got, err := d.Percentage(ctx)
	if err != nil {
		t.Fatalf("Percentage() error = %v", err)
	}
	if math.Abs(got-130) > 1e-9 {
		t.Errorf("Percentage() = %v, want 130", got)
	}

	// Readings outside the calibration are clamped, not rejected.
	port.Seed(hwio.QuantityDisplayGain, 5)
	got, err = d.Percentage(ctx)
	if err != nil {
		t.Fatalf("Percentage() error = %v", err)
	}
	if got != 160 {
		t.Errorf("Percentage() = %v, want 160", got)
	}
}

func TestBigscreenBeyond_Asymmetric(t *testing.T) {
	ctx := context.Background()
	port := hwio.NewMemory(nil)
	d := BigscreenBeyond(port, nil, nil)

	if err := d.SetPercentage(ctx, 100); err != nil {
		t.Fatalf("SetPercentage(100) error = %v", err)
	}
	if got, _ := port.Get(ctx, hwio.QuantityBeyondBrightness); got != 200 {
		t.Errorf("native after SetPercentage(100) = %v, want 200", got)
	}

	// Readings are recovered through the measured samples.
	port.Seed(hwio.QuantityBeyondBrightness, 80)
	got, err := d.Percentage(ctx)
	if err != nil {
		t.Fatalf("Percentage() error = %v", err)
	}
	if got != 39 {
		t.Errorf("Percentage() at native 80 = %v, want 39", got)
	}
}

func TestCaps_NarrowBounds(t *testing.T) {
	caps := newFakeCaps()
	d := BigscreenBeyond(hwio.NewMemory(nil), nil, caps)

	if got := d.Bounds(); got != (calibration.Range{Min: 5, Max: 150}) {
		t.Fatalf("Bounds() = %+v, want {5 150}", got)
	}

	var seen []calibration.Range
	d.WatchBounds(func(r calibration.Range) { seen = append(seen, r) })

	caps.set(FamilyBigscreenBeyond, 120)
	if got := d.Bounds(); got.Max != 120 {
		t.Errorf("Bounds().Max after cap = %v, want 120", got.Max)
	}

	// Caps above the curve never widen it.
	caps.set(FamilyBigscreenBeyond, 500)
	if got := d.Bounds(); got.Max != 150 {
		t.Errorf("Bounds().Max after large cap = %v, want 150", got.Max)
	}

	// Caps for other families do not notify.
	caps.set(FamilyValveIndex, 100)

	if len(seen) != 2 {
		t.Errorf("WatchBounds fired %d times, want 2", len(seen))
	}
}

func TestCaps_ClampWrites(t *testing.T) {
	ctx := context.Background()
	caps := newFakeCaps()
	caps.set(FamilyValveIndex, 100)
	port := hwio.NewMemory(nil)
	d := ValveIndex(port, nil, caps)

	if err := d.SetPercentage(ctx, 160); err != nil {
		t.Fatalf("SetPercentage() error = %v", err)
	}
	if got, _ := port.Get(ctx, hwio.QuantityDisplayGain); got != 1.0 {
		t.Errorf("native after capped write = %v, want 1.0", got)
	}
}

func TestRegistry_SelectsFirstAvailable(t *testing.T) {
	port := hwio.NewMemory(nil)
	indexAvail := state.NewCell(false)
	beyondAvail := state.NewCell(false)

	index := ValveIndex(port, indexAvail, nil)
	beyond := BigscreenBeyond(port, beyondAvail, nil)
	r := NewRegistry(beyond, index)

	if r.Active() != nil {
		t.Fatalf("Active() = %v, want nil", r.Active())
	}

	var changes []Driver
	r.Watch(func(d Driver) { changes = append(changes, d) })

	indexAvail.Set(true)
	if r.Active() != Driver(index) {
		t.Errorf("Active() = %v, want index", r.Active())
	}

	beyondAvail.Set(true)
	if r.Active() != Driver(beyond) {
		t.Errorf("Active() = %v, want beyond (higher priority)", r.Active())
	}

	beyondAvail.Set(false)
	indexAvail.Set(false)
	if r.Active() != nil {
		t.Errorf("Active() = %v, want nil", r.Active())
	}

	if len(changes) != 4 {
		t.Errorf("Watch fired %d times, want 4", len(changes))
	}
	if len(r.All()) != 2 {
		t.Errorf("All() returned %d drivers, want 2", len(r.All()))
	}
}

func TestRegistry_ConcurrentReselectOrdersNotifications(t *testing.T) {
	port := hwio.NewMemory(nil)
	indexAvail := state.NewCell(false)
	beyondAvail := state.NewCell(false)
	r := NewRegistry(BigscreenBeyond(port, beyondAvail, nil), ValveIndex(port, indexAvail, nil))

	var mu sync.Mutex
	var last Driver
	r.Watch(func(d Driver) {
		mu.Lock()
		last = d
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for _, avail := range []*state.Cell[bool]{indexAvail, beyondAvail} {
		wg.Add(1)
		go func(c *state.Cell[bool]) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Set(i%2 == 0)
			}
		}(avail)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if last != r.Active() {
		t.Errorf("last notified driver = %v, Active() = %v", last, r.Active())
	}
}
