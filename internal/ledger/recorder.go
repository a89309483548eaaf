package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink accepts audit entries without blocking the caller.
type Sink interface {
	Record(entry Entry)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Entry) {}

// Recorder is a fire-and-forget Sink writing to a Ledger from a background
// goroutine. Entries are dropped when the queue is full.
type Recorder struct {
	ledger *Ledger
	queue  chan Entry
	wg     sync.WaitGroup

	closing   chan struct{}
	closeOnce sync.Once
}

// NewRecorder creates a recorder with the given queue size.
func NewRecorder(ledger *Ledger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Recorder{
		ledger:  ledger,
		queue:   make(chan Entry, queueSize),
		closing: make(chan struct{}),
	}
}

// Record queues an entry. Never blocks.
func (r *Recorder) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	select {
	case <-r.closing:
		return
	case r.queue <- entry:
	default:
		log.Warn().Str("axis", entry.Axis).Str("reason", entry.Reason).Msg("Audit queue full, dropping entry")
	}
}

// Start begins writing queued entries until Close is called.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.closing:
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		default:
			return
		}
	}
}

func (r *Recorder) write(entry Entry) {
	if err := r.ledger.Append(entry); err != nil {
		log.Error().Err(err).Str("axis", entry.Axis).Msg("Failed to append audit entry")
	}
}

// Close stops accepting entries, flushes the queue and waits for the writer.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	r.wg.Wait()
}

// RunCleanup deletes entries older than retention every interval until ctx is done.
func (r *Recorder) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Audit cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Dur("retention", retention).Msg("Audit cleanup completed")
			}
		}
	}
}
