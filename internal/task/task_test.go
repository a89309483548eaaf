package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStart_Completes(t *testing.T) {
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) {
		return 42, nil
	})

	var started, completed atomic.Int32
	tk.OnStart(func() { started.Add(1) })
	tk.OnComplete(func(v int) {
		if v != 42 {
			t.Errorf("OnComplete value = %d, want 42", v)
		}
		completed.Add(1)
	})

	got, err := tk.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Start() = %d, want 42", got)
	}
	if tk.Status() != StatusCompleted {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCompleted)
	}
	if started.Load() != 1 || completed.Load() != 1 {
		t.Errorf("signals fired start=%d complete=%d, want 1/1", started.Load(), completed.Load())
	}
	if v, ok := tk.Result(); !ok || v != 42 {
		t.Errorf("Result() = %d, %v, want 42, true", v, ok)
	}
}

func TestStart_Error(t *testing.T) {
	boom := errors.New("boom")
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) {
		return 0, boom
	})

	var gotErr error
	tk.OnError(func(err error) { gotErr = err })

	_, err := tk.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}
	if tk.Status() != StatusError {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusError)
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("OnError got %v, want %v", gotErr, boom)
	}
	if !errors.Is(tk.Err(), boom) {
		t.Errorf("Err() = %v, want %v", tk.Err(), boom)
	}
}

func TestStart_Twice(t *testing.T) {
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) { return 1, nil })
	if _, err := tk.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if _, err := tk.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestCancel_WinsOverCompletion(t *testing.T) {
	release := make(chan struct{})
	tk := New(func(ctx context.Context, self *Task[int]) (int, error) {
		<-release
		// Work ignores cancellation and reports success anyway.
		return 7, nil
	})

	var completed, cancelled atomic.Int32
	tk.OnComplete(func(int) { completed.Add(1) })
	tk.OnCancelled(func() { cancelled.Add(1) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := tk.Start(context.Background()); err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	}()

	waitStatus(t, tk, StatusRunning)
	tk.Cancel()
	close(release)
	<-done

	if tk.Status() != StatusCancelled {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCancelled)
	}
	if completed.Load() != 0 {
		t.Errorf("OnComplete fired %d times, want 0", completed.Load())
	}
	if cancelled.Load() != 1 {
		t.Errorf("OnCancelled fired %d times, want 1", cancelled.Load())
	}
}

func TestCancel_WinsOverError(t *testing.T) {
	tk := New(func(ctx context.Context, self *Task[int]) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var errored atomic.Int32
	tk.OnError(func(error) { errored.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := tk.Start(context.Background())
		done <- err
	}()

	waitStatus(t, tk, StatusRunning)
	tk.Cancel()

	if err := <-done; err != nil {
		t.Errorf("Start() error = %v, want nil on cancellation", err)
	}
	if errored.Load() != 0 {
		t.Errorf("OnError fired %d times, want 0", errored.Load())
	}
}

func TestCancel_BeforeStart(t *testing.T) {
	var ran atomic.Bool
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) {
		ran.Store(true)
		return 1, nil
	})
	tk.Cancel()

	if _, err := tk.Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if ran.Load() {
		t.Error("work ran after cancellation")
	}
	if tk.Status() != StatusCancelled {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCancelled)
	}
}

func TestCancel_AfterTerminalIsNoop(t *testing.T) {
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) { return 3, nil })
	var cancelled atomic.Int32
	tk.OnCancelled(func() { cancelled.Add(1) })

	if _, err := tk.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tk.Cancel()
	tk.Cancel()

	if tk.Status() != StatusCompleted {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCompleted)
	}
	if cancelled.Load() != 0 {
		t.Errorf("OnCancelled fired %d times, want 0", cancelled.Load())
	}
}

func TestCancel_Idempotent(t *testing.T) {
	tk := New(func(ctx context.Context, _ *Task[int]) (int, error) { return 0, nil })
	var cancelled atomic.Int32
	tk.OnCancelled(func() { cancelled.Add(1) })

	tk.Cancel()
	tk.Cancel()

	if cancelled.Load() != 1 {
		t.Errorf("OnCancelled fired %d times, want 1", cancelled.Load())
	}
	select {
	case <-tk.Done():
	default:
		t.Error("Done() not closed after Cancel")
	}
}

func TestParentContextCancelsTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := New(func(ctx context.Context, self *Task[int]) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := tk.Start(ctx)
		done <- err
	}()

	waitStatus(t, tk, StatusRunning)
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if tk.Status() != StatusCancelled {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCancelled)
	}
}

func TestCompleted(t *testing.T) {
	tk := Completed(5.5)

	if tk.Status() != StatusCompleted {
		t.Errorf("Status() = %s, want %s", tk.Status(), StatusCompleted)
	}

	// Late subscribers still observe the terminal signal exactly once.
	var got float64
	var calls int
	tk.OnComplete(func(v float64) {
		got = v
		calls++
	})
	if calls != 1 || got != 5.5 {
		t.Errorf("late OnComplete calls=%d value=%v, want 1/5.5", calls, got)
	}
	if _, err := tk.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestOnFinish(t *testing.T) {
	tests := []struct {
		name   string
		work   Work[int]
		cancel bool
		want   Status
	}{
		{
			name: "completed",
			work: func(ctx context.Context, _ *Task[int]) (int, error) { return 1, nil },
			want: StatusCompleted,
		},
		{
			name: "error",
			work: func(ctx context.Context, _ *Task[int]) (int, error) { return 0, errors.New("x") },
			want: StatusError,
		},
		{
			name:   "cancelled",
			work:   func(ctx context.Context, _ *Task[int]) (int, error) { return 1, nil },
			cancel: true,
			want:   StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New(tt.work)
			var got []Status
			tk.OnFinish(func(s Status) { got = append(got, s) })
			if tt.cancel {
				tk.Cancel()
			}
			tk.Start(context.Background())

			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("OnFinish got %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusWaiting, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func waitStatus[T any](t *testing.T, tk *Task[T], want Status) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tk.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task never reached status %s (last %s)", want, tk.Status())
}
