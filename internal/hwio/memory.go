package hwio

import (
	"context"
	"sync"
)

// Memory is a simulated device keeping values in memory. It records every
// write so callers can inspect the history.
type Memory struct {
	mu      sync.Mutex
	values  map[Quantity]float64
	history map[Quantity][]float64
	failErr error
}

// NewMemory creates a simulated device with optional initial values.
func NewMemory(initial map[Quantity]float64) *Memory {
	m := &Memory{
		values:  make(map[Quantity]float64),
		history: make(map[Quantity][]float64),
	}
	for q, v := range initial {
		m.values[q] = v
	}
	return m
}

// Get returns the last written or seeded value.
func (m *Memory) Get(ctx context.Context, q Quantity) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[q]
	if !ok {
		return 0, ErrNoValue
	}
	return v, nil
}

// Set stores v unless writes are configured to fail.
func (m *Memory) Set(ctx context.Context, q Quantity, v float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	m.values[q] = v
	m.history[q] = append(m.history[q], v)
	return nil
}

// FailWrites makes every following Set return err. A nil err restores writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Writes returns the write history for q.
func (m *Memory) Writes(q Quantity) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.history[q]...)
}

// Seed sets a value as if the device reported it, without recording a write.
func (m *Memory) Seed(q Quantity, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[q] = v
}
