package task

import "sync"

// signal is a one-shot broadcast. Subscribers added after the signal fired
// are invoked immediately with the fired value.
type signal[A any] struct {
	mu    sync.Mutex
	fired bool
	value A
	subs  []func(A)
}

func (s *signal[A]) subscribe(fn func(A)) {
	s.mu.Lock()
	if s.fired {
		v := s.value
		s.mu.Unlock()
		fn(v)
		return
	}
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *signal[A]) fire(v A) {
	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	s.value = v
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
