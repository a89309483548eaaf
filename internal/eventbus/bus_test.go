package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewWithConfig(2, 10)
	defer b.Close(context.Background())

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 2)

	b.Subscribe(EventTypeValueChanged, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	b.Publish(Event{Type: EventTypeValueChanged, Axis: "display", Data: map[string]interface{}{"value": 42.0}})
	b.Publish(Event{Type: EventTypeTransitionStarted, Axis: "display"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	if got[0].Axis != "display" {
		t.Errorf("Axis = %q, want %q", got[0].Axis, "display")
	}
	if v, ok := got[0].Float("value"); !ok || v != 42 {
		t.Errorf("Float(value) = %v, %v, want 42, true", v, ok)
	}
}

func TestBus_HandlerPanicRecovered(t *testing.T) {
	b := NewWithConfig(1, 10)
	defer b.Close(context.Background())

	done := make(chan struct{})
	b.Subscribe(EventTypeDevicesChanged, func(e Event) {
		if e.String("source") == "boom" {
			panic("boom")
		}
		close(done)
	})

	b.Publish(Event{Type: EventTypeDevicesChanged, Data: map[string]interface{}{"source": "boom"}})
	b.Publish(Event{Type: EventTypeDevicesChanged, Data: map[string]interface{}{"source": "ok"}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive handler panic")
	}
}

func TestBus_PublishAfterCloseDropped(t *testing.T) {
	b := NewWithConfig(1, 1)
	called := false
	b.Subscribe(EventTypeValueChanged, func(Event) { called = true })
	b.Close(context.Background())

	b.Publish(Event{Type: EventTypeValueChanged})
	if called {
		t.Error("handler called after Close")
	}
}
