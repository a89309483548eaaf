// Package transition interpolates a controlled quantity toward a target over
// a fixed duration.
//
// A transition runs a wall-clock loop at a fixed frequency, easing the value
// with a cubic smoothstep. Cancellation is checked at the top of every tick
// and leaves the last intermediate value in place. A transition that is not
// cancelled always ends with one exact write of the target.
package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/task"
)

// DefaultFrequency is the tick rate in Hz.
const DefaultFrequency = 60.0

// ErrValueUnavailable is returned when the starting value cannot be read.
var ErrValueUnavailable = errors.New("transition baseline unavailable")

// Getter reads the current value of the controlled quantity.
type Getter func(ctx context.Context) (float64, error)

// Setter writes an intermediate or final value on behalf of tr.
type Setter func(ctx context.Context, tr *Task, v float64) error

// Options tunes a transition.
type Options struct {
	// Frequency in Hz; DefaultFrequency when <= 0.
	Frequency float64
	// Reason is recorded on the transition boundaries only.
	Reason string
}

// Task is a running or finished transition.
type Task struct {
	*task.Task[float64]

	target    float64
	duration  time.Duration
	frequency float64
	reason    string

	get Getter
	set Setter
}

// New creates a waiting transition toward target.
func New(get Getter, set Setter, target float64, duration time.Duration, opts Options) *Task {
	freq := opts.Frequency
	if freq <= 0 {
		freq = DefaultFrequency
	}

	tr := &Task{
		target:    target,
		duration:  duration,
		frequency: freq,
		reason:    opts.Reason,
		get:       get,
		set:       set,
	}
	tr.Task = task.New[float64](tr.run)
	return tr
}

// Noop returns an already completed transition that never writes.
func Noop(target float64) *Task {
	return &Task{
		Task:      task.Completed(target),
		target:    target,
		frequency: DefaultFrequency,
	}
}

// Target returns the value the transition converges to.
func (tr *Task) Target() float64 { return tr.target }

// Duration returns the transition length.
func (tr *Task) Duration() time.Duration { return tr.duration }

// Frequency returns the tick rate in Hz.
func (tr *Task) Frequency() float64 { return tr.frequency }

// Reason returns the audit reason, empty when none was given.
func (tr *Task) Reason() string { return tr.reason }

// Progress maps elapsed time onto [0, 1]. Non-positive durations are
// complete immediately.
func Progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	return calibration.Clamp(float64(elapsed)/float64(duration), 0, 1)
}

// Value returns the eased value between from and to at progress p.
func Value(from, to, p float64) float64 {
	return calibration.Lerp(from, to, calibration.Smoothstep(p))
}

func (tr *Task) run(ctx context.Context, t *task.Task[float64]) (float64, error) {
	from, err := tr.get(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValueUnavailable, err)
	}

	interval := time.Duration(float64(time.Second) / tr.frequency)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	end := start.Add(tr.duration)

	for now := time.Now(); !now.After(end); now = time.Now() {
		if t.IsCancelled() {
			return 0, nil
		}

		v := Value(from, tr.target, Progress(now.Sub(start), tr.duration))
		if err := tr.set(ctx, tr, v); err != nil {
			return 0, err
		}

		select {
		case <-ctx.Done():
			return 0, nil
		case <-ticker.C:
		}
	}

	if t.IsCancelled() {
		return 0, nil
	}
	if err := tr.set(ctx, tr, tr.target); err != nil {
		return 0, err
	}

	return tr.target, nil
}
