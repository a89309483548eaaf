// Package settings holds user-configured safety caps.
//
// Caps are read as a plain synchronous snapshot; every change is persisted
// and then broadcast to watchers (drivers re-derive their bounds from it).
package settings

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/state"
	"github.com/dokzlo13/dimmerd/internal/storage"
)

// ErrInvalidCap is returned for non-positive or non-finite caps.
var ErrInvalidCap = errors.New("invalid safety cap")

const (
	documentKind = "settings"
	documentID   = "caps"
)

// Caps are user safety caps keyed by driver family.
type Caps struct {
	MaxBrightness map[string]float64 `json:"max_brightness"`
}

func (c Caps) clone() Caps {
	out := Caps{MaxBrightness: make(map[string]float64, len(c.MaxBrightness))}
	for k, v := range c.MaxBrightness {
		out.MaxBrightness[k] = v
	}
	return out
}

// Store persists caps and notifies watchers of changes.
type Store struct {
	mu       sync.Mutex
	docs     *storage.TypedStore[Caps]
	defaults Caps
	cell     *state.Cell[Caps]
}

// Open loads persisted caps, falling back to defaults when nothing was saved.
func Open(store *storage.Store, defaults map[string]float64) (*Store, error) {
	s := &Store{
		docs:     storage.NewTypedStore[Caps](store, documentKind),
		defaults: Caps{MaxBrightness: defaults}.clone(),
	}

	caps, found, err := s.docs.Get(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load safety caps: %w", err)
	}
	if !found {
		caps = s.defaults.clone()
	}
	caps = caps.clone()

	s.cell = state.NewCell(caps)
	log.Debug().Interface("max_brightness", caps.MaxBrightness).Msg("Safety caps loaded")
	return s, nil
}

// Snapshot returns a copy of the current caps.
func (s *Store) Snapshot() Caps {
	return s.cell.Get().clone()
}

// MaxBrightness returns the cap for a driver family.
func (s *Store) MaxBrightness(family string) (float64, bool) {
	v, ok := s.cell.Get().MaxBrightness[family]
	return v, ok
}

// Watch calls fn after every change.
func (s *Store) Watch(fn func()) func() {
	return s.cell.Subscribe(func(Caps) { fn() })
}

// SetMaxBrightness caps the upper brightness of a driver family.
func (s *Store) SetMaxBrightness(family string, max float64) error {
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidCap, max)
	}

	return s.update(func(c Caps) {
		c.MaxBrightness[family] = max
	})
}

// ClearMaxBrightness removes the cap of a driver family.
func (s *Store) ClearMaxBrightness(family string) error {
	return s.update(func(c Caps) {
		delete(c.MaxBrightness, family)
	})
}

// Reset discards persisted caps and restores the configured defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	if err := s.docs.Clear(); err != nil {
		s.mu.Unlock()
		return err
	}
	caps := s.defaults.clone()
	s.mu.Unlock()

	s.cell.Set(caps)
	return nil
}

func (s *Store) update(modify func(c Caps)) error {
	s.mu.Lock()
	next := s.cell.Get().clone()
	modify(next)
	if err := s.docs.Set(documentID, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save safety caps: %w", err)
	}
	s.mu.Unlock()

	log.Info().Interface("max_brightness", next.MaxBrightness).Msg("Safety caps updated")
	s.cell.Set(next)
	return nil
}
