package hwio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(map[Quantity]float64{QuantityImageGain: 1})

	if _, err := m.Get(ctx, QuantityDisplayGain); !errors.Is(err, ErrNoValue) {
		t.Errorf("Get(unset) error = %v, want %v", err, ErrNoValue)
	}

	if err := m.Set(ctx, QuantityDisplayGain, 0.5); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := m.Get(ctx, QuantityDisplayGain)
	if err != nil || got != 0.5 {
		t.Errorf("Get() = %v, %v, want 0.5, nil", got, err)
	}

	boom := errors.New("usb gone")
	m.FailWrites(boom)
	if err := m.Set(ctx, QuantityDisplayGain, 0.7); !errors.Is(err, boom) {
		t.Errorf("Set() error = %v, want %v", err, boom)
	}
	if got, _ := m.Get(ctx, QuantityDisplayGain); got != 0.5 {
		t.Errorf("failed write changed value to %v", got)
	}

	if w := m.Writes(QuantityDisplayGain); len(w) != 1 || w[0] != 0.5 {
		t.Errorf("Writes() = %v, want [0.5]", w)
	}
}

type slowPort struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (p *slowPort) Get(ctx context.Context, q Quantity) (float64, error) { return 0, nil }

func (p *slowPort) Set(ctx context.Context, q Quantity, v float64) error {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxSeen {
		p.maxSeen = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return nil
}

func TestLimited_SerialisesWrites(t *testing.T) {
	inner := &slowPort{}
	l := NewLimited(inner, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			if err := l.Set(context.Background(), QuantityImageGain, v); err != nil {
				t.Errorf("Set() error = %v", err)
			}
		}(float64(i))
	}
	wg.Wait()

	if inner.maxSeen != 1 {
		t.Errorf("max concurrent writes = %d, want 1", inner.maxSeen)
	}
}

func TestLimited_ContextCancelled(t *testing.T) {
	l := NewLimited(NewMemory(nil), 1)
	ctx, cancel := context.WithCancel(context.Background())

	// First write consumes the only token.
	if err := l.Set(ctx, QuantityImageGain, 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cancel()
	if err := l.Set(ctx, QuantityImageGain, 2); err == nil {
		t.Error("Set() with cancelled context error = nil, want error")
	}
}

func TestHTTPPort(t *testing.T) {
	var mu sync.Mutex
	values := map[string]float64{"display_gain": 1.0}

	mux := http.NewServeMux()
	mux.HandleFunc("/quantities/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/quantities/"):]
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			v, ok := values[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]float64{"value": v})
		case http.MethodPut:
			var body struct {
				Value float64 `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if name == "image_gain" && body.Value > 1 {
				http.Error(w, "gain too high", http.StatusUnprocessableEntity)
				return
			}
			values[name] = body.Value
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"manufacturer":"Valve","model":"Index","class":"hmd"}]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewHTTPPort(srv.URL+"/", time.Second)
	defer p.Close()
	ctx := context.Background()

	got, err := p.Get(ctx, QuantityDisplayGain)
	if err != nil || got != 1.0 {
		t.Errorf("Get(display_gain) = %v, %v, want 1, nil", got, err)
	}

	if _, err := p.Get(ctx, QuantityColorTemperature); !errors.Is(err, ErrNoValue) {
		t.Errorf("Get(missing) error = %v, want %v", err, ErrNoValue)
	}

	if err := p.Set(ctx, QuantityImageGain, 0.4); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := p.Get(ctx, QuantityImageGain); got != 0.4 {
		t.Errorf("Get(image_gain) after Set = %v, want 0.4", got)
	}

	if err := p.Set(ctx, QuantityImageGain, 2); err == nil {
		t.Error("Set() rejected by sidecar error = nil, want error")
	}

	ids, err := p.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(ids) != 1 || ids[0].Model != "Index" {
		t.Errorf("Devices() = %+v, want one Index", ids)
	}
}
