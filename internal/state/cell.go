// Package state provides single-writer reactive values.
package state

import "sync"

// Cell holds a value and notifies subscribers synchronously, in subscription
// order, on every write. Subscribers run outside the lock and may read the
// cell but must not write it recursively.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	subs  []subscriber[T]
	next  int
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies all subscribers.
func (c *Cell[T]) Set(v T) {
	c.setIf(v, nil)
}

// Subscribe registers fn for future writes and returns a function that
// removes it.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// setIf stores v when changed(old) is nil or returns true, then notifies.
func (c *Cell[T]) setIf(v T, changed func(old T) bool) bool {
	c.mu.Lock()
	if changed != nil && !changed(c.value) {
		c.mu.Unlock()
		return false
	}
	c.value = v
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
	return true
}

// SetDistinct writes v only when it differs from the current value.
// Returns true if subscribers were notified.
func SetDistinct[T comparable](c *Cell[T], v T) bool {
	return c.setIf(v, func(old T) bool { return old != v })
}
