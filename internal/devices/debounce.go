package devices

import (
	"sync"
	"time"
)

// Debouncer runs fn once after a quiet period with no new triggers.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	quiet time.Duration
	fn    func()
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		quiet: quiet,
		fn:    fn,
	}
}

// Trigger resets the quiet timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fn)
}

// Close stops the timer
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
