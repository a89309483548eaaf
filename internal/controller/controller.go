// Package controller owns the brightness and colour temperature axes.
//
// Every axis holds its current value and at most one active transition. A
// new transition always cancels and replaces the previous one, and a direct
// Set cancels it unless told otherwise. Writes to an axis are serialised,
// and ticks from a transition that is no longer active are discarded, so the
// last call always wins.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/calibration"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/ledger"
	"github.com/dokzlo13/dimmerd/internal/state"
	"github.com/dokzlo13/dimmerd/internal/task"
	"github.com/dokzlo13/dimmerd/internal/transition"
)

// Axis names.
const (
	AxisDisplay = "display"
	AxisImage   = "image"
	AxisCCT     = "cct"
	AxisSimple  = "simple"
)

// SetOptions controls a direct write.
type SetOptions struct {
	// Reason is recorded in the audit log; empty writes are not audited.
	Reason string
	// KeepTransition leaves the active transition running.
	KeepTransition bool
}

// TransitionOptions controls a transition request.
type TransitionOptions struct {
	Reason string
	// Frequency overrides the configured tick rate when > 0.
	Frequency float64
}

// Controller is the surface shared by every axis.
type Controller interface {
	Name() string
	Value() (float64, bool)
	Bounds() (calibration.Range, bool)
	Available() bool
	Set(ctx context.Context, v float64, opts SetOptions) error
	Transition(ctx context.Context, v float64, d time.Duration, opts TransitionOptions) (*transition.Task, error)
	CancelActiveTransition()
	ActiveTransition() *transition.Task
	Watch(fn func(float64)) func()
}

// Deps are the collaborators shared by all controllers.
type Deps struct {
	// Context bounds the lifetime of transitions. Defaults to Background.
	Context context.Context
	// Bus receives value and transition events. Optional.
	Bus *eventbus.Bus
	// Audit receives reasoned changes. Defaults to ledger.Discard.
	Audit ledger.Sink
	// Frequency is the default transition tick rate in Hz.
	Frequency float64
}

func (d Deps) withDefaults() Deps {
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.Audit == nil {
		d.Audit = ledger.Discard
	}
	if d.Frequency <= 0 {
		d.Frequency = transition.DefaultFrequency
	}
	return d
}

// target is the device side of an axis.
type target interface {
	bounds() (calibration.Range, bool)
	read(ctx context.Context) (float64, error)
	write(ctx context.Context, v float64, quiet bool) error
}

// writeOpts qualifies a single write.
type writeOpts struct {
	// from is the transition issuing a tick, nil for direct writes.
	from   *transition.Task
	reason string
	// quiet suppresses the value_changed event.
	quiet bool
}

// axis implements Controller on top of a target.
type axis struct {
	name   string
	target target
	deps   Deps

	// writeMu serialises device writes.
	writeMu sync.Mutex

	mu     sync.Mutex
	known  bool
	active *transition.Task

	value *state.Cell[float64]

	// observers see every transition before it starts.
	observers []func(*transition.Task)
}

func newAxis(name string, t target, deps Deps) *axis {
	return &axis{
		name:   name,
		target: t,
		deps:   deps.withDefaults(),
		value:  state.NewCell(0.0),
	}
}

// Name returns the axis name.
func (a *axis) Name() string { return a.name }

// Value returns the last written or read value and whether it is known.
func (a *axis) Value() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value.Get(), a.known
}

// Bounds returns the current logical range.
func (a *axis) Bounds() (calibration.Range, bool) {
	return a.target.bounds()
}

// Available reports whether the axis can be written.
func (a *axis) Available() bool {
	_, ok := a.target.bounds()
	return ok
}

// Watch calls fn after every stored value.
func (a *axis) Watch(fn func(float64)) func() {
	return a.value.Subscribe(fn)
}

// ActiveTransition returns the running transition or nil.
func (a *axis) ActiveTransition() *transition.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// CancelActiveTransition cancels the running transition, if any.
func (a *axis) CancelActiveTransition() {
	a.mu.Lock()
	prev := a.active
	a.active = nil
	a.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

// Set writes v, clamped to the current bounds.
func (a *axis) Set(ctx context.Context, v float64, opts SetOptions) error {
	if !opts.KeepTransition {
		a.CancelActiveTransition()
	}
	return a.apply(ctx, v, writeOpts{reason: opts.Reason})
}

// Transition starts an eased transition toward v and returns its task.
// The task runs on its own goroutine; ctx is only used to read the
// starting value.
func (a *axis) Transition(ctx context.Context, v float64, d time.Duration, opts TransitionOptions) (*transition.Task, error) {
	b, ok := a.target.bounds()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, a.name)
	}
	target := a.clamp(b, v)

	if cur, err := a.current(ctx); err == nil && cur == target {
		a.CancelActiveTransition()
		return transition.Noop(target), nil
	}

	freq := opts.Frequency
	if freq <= 0 {
		freq = a.deps.Frequency
	}

	tr := transition.New(a.current, a.tick, target, d, transition.Options{
		Frequency: freq,
		Reason:    opts.Reason,
	})

	a.mu.Lock()
	prev := a.active
	a.active = tr
	a.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	a.observe(tr)
	go tr.Start(a.deps.Context)

	return tr, nil
}

func (a *axis) observe(tr *transition.Task) {
	for _, fn := range a.observers {
		fn(tr)
	}

	tr.OnStart(func() {
		if tr.Reason() != "" {
			log.Info().
				Str("axis", a.name).
				Str("reason", tr.Reason()).
				Str("task_id", tr.ID()).
				Float64("target", tr.Target()).
				Dur("duration", tr.Duration()).
				Msg("Transition started")
		}
		a.publish(eventbus.EventTypeTransitionStarted, map[string]interface{}{
			"task_id":  tr.ID(),
			"target":   tr.Target(),
			"duration": tr.Duration().Seconds(),
			"reason":   tr.Reason(),
		})
	})

	tr.OnComplete(func(v float64) {
		if tr.Reason() == "" {
			return
		}
		log.Info().
			Str("axis", a.name).
			Str("reason", tr.Reason()).
			Str("task_id", tr.ID()).
			Float64("value", v).
			Msg("Transition completed")
		a.deps.Audit.Record(ledger.Entry{
			Axis:           a.name,
			Reason:         tr.Reason(),
			Value:          v,
			Transition:     true,
			TransitionTime: tr.Duration(),
			TaskID:         tr.ID(),
		})
	})

	tr.OnError(func(err error) {
		log.Error().Err(err).Str("axis", a.name).Str("task_id", tr.ID()).Msg("Transition failed")
	})

	tr.OnFinish(func(status task.Status) {
		a.mu.Lock()
		if a.active == tr {
			a.active = nil
		}
		a.mu.Unlock()

		value, _ := a.Value()
		a.publish(eventbus.EventTypeTransitionFinished, map[string]interface{}{
			"task_id": tr.ID(),
			"status":  string(status),
			"value":   value,
		})
	})
}

func (a *axis) tick(ctx context.Context, tr *transition.Task, v float64) error {
	return a.apply(ctx, v, writeOpts{from: tr, quiet: true})
}

// current returns the known value, reading it from the device otherwise.
func (a *axis) current(ctx context.Context) (float64, error) {
	if v, ok := a.Value(); ok {
		return v, nil
	}

	v, err := a.target.read(ctx)
	if err != nil {
		return 0, err
	}
	if b, ok := a.target.bounds(); ok {
		v = b.Clamp(v)
	}

	a.mu.Lock()
	a.known = true
	a.mu.Unlock()
	a.value.Set(v)
	return v, nil
}

func (a *axis) apply(ctx context.Context, v float64, opts writeOpts) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if opts.from != nil && a.ActiveTransition() != opts.from {
		// Superseded by a newer Set or Transition.
		return nil
	}

	b, ok := a.target.bounds()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnavailable, a.name)
	}
	clamped := a.clamp(b, v)

	if cur, known := a.Value(); known && cur == clamped {
		return nil
	}

	if err := a.target.write(ctx, clamped, opts.quiet); err != nil {
		if errors.Is(err, ErrHardwareWrite) || errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrHardwareWrite, a.name, err)
	}

	a.store(clamped)
	log.Debug().Str("axis", a.name).Float64("value", clamped).Msg("Value written")

	if opts.reason != "" {
		log.Info().Str("axis", a.name).Str("reason", opts.reason).Float64("value", clamped).Msg("Value set")
		a.deps.Audit.Record(ledger.Entry{
			Axis:   a.name,
			Reason: opts.reason,
			Value:  clamped,
		})
	}

	if !opts.quiet {
		a.publish(eventbus.EventTypeValueChanged, map[string]interface{}{
			"value":  clamped,
			"reason": opts.reason,
		})
	}
	return nil
}

func (a *axis) clamp(b calibration.Range, v float64) float64 {
	clamped := b.Clamp(v)
	if clamped != v {
		log.Warn().
			Str("axis", a.name).
			Float64("requested", v).
			Float64("clamped", clamped).
			Float64("min", b.Min).
			Float64("max", b.Max).
			Msg("Value outside bounds, clamping")
	}
	return clamped
}

func (a *axis) store(v float64) {
	a.mu.Lock()
	a.known = true
	a.mu.Unlock()
	a.value.Set(v)
}

// forget drops the known value so the next read goes to the device.
func (a *axis) forget() {
	a.mu.Lock()
	a.known = false
	a.mu.Unlock()
}

// reset cancels the active transition and forgets the value once any
// in-flight write has landed.
func (a *axis) reset() {
	a.CancelActiveTransition()

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.forget()
}

func (a *axis) publish(t eventbus.EventType, data map[string]interface{}) {
	if a.deps.Bus == nil {
		return
	}
	a.deps.Bus.Publish(eventbus.Event{Type: t, Axis: a.name, Data: data})
}
