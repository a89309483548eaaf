package hwio

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limited serialises writes to an underlying port and paces them with a
// token bucket. The host device API accepts one write at a time.
type Limited struct {
	port    Port
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewLimited wraps port. writesPerSecond <= 0 disables pacing but keeps
// writes serialised.
func NewLimited(port Port, writesPerSecond float64) *Limited {
	limit := rate.Inf
	burst := 1
	if writesPerSecond > 0 {
		limit = rate.Limit(writesPerSecond)
		burst = int(writesPerSecond / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &Limited{
		port:    port,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Get reads through to the underlying port.
func (l *Limited) Get(ctx context.Context, q Quantity) (float64, error) {
	return l.port.Get(ctx, q)
}

// Set waits for a write token, then writes while holding the write lock.
func (l *Limited) Set(ctx context.Context, q Quantity, v float64) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port.Set(ctx, q, v)
}
