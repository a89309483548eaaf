// Package devices tracks the set of connected devices and derives
// availability predicates from it.
package devices

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/state"
)

// Identity describes one connected device as reported by enumeration.
type Identity struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
	Class        string `json:"class,omitempty" yaml:"class"`
	Serial       string `json:"serial,omitempty" yaml:"serial"`
}

// Predicate matches a device identity.
type Predicate func(Identity) bool

// MatchModel matches devices by manufacturer and model, case-insensitively.
func MatchModel(manufacturer, model string) Predicate {
	return func(id Identity) bool {
		return strings.EqualFold(strings.TrimSpace(id.Manufacturer), manufacturer) &&
			strings.EqualFold(strings.TrimSpace(id.Model), model)
	}
}

// Feed holds the latest enumeration snapshot.
type Feed struct {
	cell *state.Cell[[]Identity]
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{cell: state.NewCell[[]Identity](nil)}
}

// Publish replaces the enumeration snapshot.
func (f *Feed) Publish(ids []Identity) {
	snapshot := append([]Identity(nil), ids...)
	log.Debug().Int("devices", len(snapshot)).Msg("Device enumeration updated")
	f.cell.Set(snapshot)
}

// Snapshot returns a copy of the current enumeration.
func (f *Feed) Snapshot() []Identity {
	return append([]Identity(nil), f.cell.Get()...)
}

// Subscribe registers fn for enumeration changes.
func (f *Feed) Subscribe(fn func([]Identity)) func() {
	return f.cell.Subscribe(fn)
}

// Any reports whether any device in the snapshot matches pred.
func (f *Feed) Any(pred Predicate) bool {
	for _, id := range f.cell.Get() {
		if pred(id) {
			return true
		}
	}
	return false
}

// Availability returns a cell tracking whether a matching device is
// connected. Changes settle for debounce before they are applied, so
// enumeration churn does not make availability flicker. A zero debounce
// applies changes immediately.
func (f *Feed) Availability(pred Predicate, debounce time.Duration) *state.Cell[bool] {
	out := state.NewCell(f.Any(pred))

	evaluate := func() {
		state.SetDistinct(out, f.Any(pred))
	}

	if debounce <= 0 {
		f.Subscribe(func([]Identity) { evaluate() })
		return out
	}

	d := NewDebouncer(debounce, evaluate)
	f.Subscribe(func([]Identity) { d.Trigger() })
	return out
}
