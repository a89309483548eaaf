// Package task provides a generic one-shot cancellable unit of work with an
// observable lifecycle.
//
// Lifecycle: waiting -> running -> completed | cancelled | error
//
//	waiting -> cancelled (cancelled before Start)
//
// Cancellation is cooperative: the work function polls IsCancelled (or watches
// its context) and returns early. Once a task is cancelled its status is never
// overwritten by a late completion or error.
package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadyStarted is returned by Start when the task already left the waiting state.
var ErrAlreadyStarted = errors.New("task already started")

// Status is the lifecycle state of a task.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// Work is the body of a task. It receives the task itself so it can poll
// IsCancelled between suspension points.
type Work[T any] func(ctx context.Context, t *Task[T]) (T, error)

// Task is a one-shot asynchronous unit of work.
type Task[T any] struct {
	id   string
	work Work[T]

	mu        sync.Mutex
	status    Status
	result    T
	err       error
	cancelRun context.CancelFunc
	done      chan struct{}

	onStart     signal[struct{}]
	onComplete  signal[T]
	onCancelled signal[struct{}]
	onError     signal[error]
}

// New creates a waiting task for the given work.
func New[T any](work Work[T]) *Task[T] {
	return &Task[T]{
		id:     uuid.NewString(),
		work:   work,
		status: StatusWaiting,
		done:   make(chan struct{}),
	}
}

// Completed returns a task that already finished with result.
// It never runs any work.
func Completed[T any](result T) *Task[T] {
	t := New[T](nil)
	t.status = StatusCompleted
	t.result = result
	close(t.done)
	t.onStart.fire(struct{}{})
	t.onComplete.fire(result)
	return t
}

// ID returns the unique task identifier.
func (t *Task[T]) ID() string {
	return t.id
}

// Start runs the work on the calling goroutine and blocks until it returns.
//
// The context handed to the work is cancelled when the task is cancelled.
// Cancellation of ctx itself is treated as cancellation of the task.
func (t *Task[T]) Start(ctx context.Context) (T, error) {
	var zero T

	t.mu.Lock()
	switch t.status {
	case StatusWaiting:
	case StatusCancelled:
		t.mu.Unlock()
		return zero, nil
	default:
		t.mu.Unlock()
		return zero, ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.cancelRun = cancel
	t.status = StatusRunning
	t.mu.Unlock()

	t.onStart.fire(struct{}{})

	result, err := t.work(runCtx, t)

	if ctx.Err() != nil {
		t.Cancel()
	}

	t.mu.Lock()
	if t.status != StatusRunning {
		// Cancelled while running: cancellation wins.
		t.mu.Unlock()
		return zero, nil
	}
	if err != nil {
		t.status = StatusError
		t.err = err
		t.mu.Unlock()
		t.onError.fire(err)
		close(t.done)
		return zero, err
	}
	t.status = StatusCompleted
	t.result = result
	t.mu.Unlock()

	t.onComplete.fire(result)
	close(t.done)
	return result, nil
}

// Cancel moves the task to the cancelled state. It is a no-op once the task
// reached a terminal state.
func (t *Task[T]) Cancel() {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.status = StatusCancelled
	cancelRun := t.cancelRun
	t.mu.Unlock()

	if cancelRun != nil {
		cancelRun()
	}
	t.onCancelled.fire(struct{}{})
	close(t.done)
}

// IsCancelled reports whether Cancel was observed.
func (t *Task[T]) IsCancelled() bool {
	return t.Status() == StatusCancelled
}

// Status returns the current lifecycle state.
func (t *Task[T]) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the result of a completed task.
func (t *Task[T]) Result() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.status == StatusCompleted
}

// Err returns the error of a failed task.
func (t *Task[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task reaches a terminal state and its terminal
// handlers have run.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task reaches a terminal state or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnStart registers fn to run once the task becomes running.
func (t *Task[T]) OnStart(fn func()) {
	t.onStart.subscribe(func(struct{}) { fn() })
}

// OnComplete registers fn to run once the task completes.
func (t *Task[T]) OnComplete(fn func(T)) {
	t.onComplete.subscribe(fn)
}

// OnCancelled registers fn to run once the task is cancelled.
func (t *Task[T]) OnCancelled(fn func()) {
	t.onCancelled.subscribe(func(struct{}) { fn() })
}

// OnError registers fn to run once the task fails.
func (t *Task[T]) OnError(fn func(error)) {
	t.onError.subscribe(fn)
}

// OnFinish registers fn to run once the task reaches any terminal state.
func (t *Task[T]) OnFinish(fn func(Status)) {
	t.OnComplete(func(T) { fn(StatusCompleted) })
	t.OnCancelled(func() { fn(StatusCancelled) })
	t.OnError(func(error) { fn(StatusError) })
}
