package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/db"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/driver"
	"github.com/dokzlo13/dimmerd/internal/hwio"
	"github.com/dokzlo13/dimmerd/internal/ledger"
	"github.com/dokzlo13/dimmerd/internal/settings"
	"github.com/dokzlo13/dimmerd/internal/state"
	"github.com/dokzlo13/dimmerd/internal/storage"
)

// syncSink appends audit entries straight to the ledger.
type syncSink struct {
	l *ledger.Ledger
}

func (s syncSink) Record(e ledger.Entry) {
	s.l.Append(e)
}

type fixture struct {
	srv     *Server
	port    *hwio.Memory
	avail   *state.Cell[bool]
	display *controller.Hardware
	feed    *devices.Feed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "api.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	caps, err := settings.Open(storage.NewStore(database.DB), nil)
	if err != nil {
		t.Fatalf("settings.Open() error = %v", err)
	}
	l := ledger.New(database.DB)

	f := &fixture{
		port: hwio.NewMemory(map[hwio.Quantity]float64{
			hwio.QuantityDisplayGain:      1.0,
			hwio.QuantityImageGain:        1.0,
			hwio.QuantityColorTemperature: 6600,
		}),
		avail: state.NewCell(true),
		feed:  devices.NewFeed(),
	}

	deps := controller.Deps{Audit: syncSink{l: l}, Frequency: 100}
	drivers := driver.NewRegistry(driver.ValveIndex(f.port, f.avail, caps))
	f.display = controller.NewHardware(drivers, deps)
	image := controller.NewSoftware(driver.ImageGain(f.port), deps)
	cct := controller.NewCCT(driver.ColorTemperature(f.port), deps)
	simple := controller.NewSimple(f.display, image, deps)
	controllers := controller.NewRegistry(f.display, image, cct, simple)
	t.Cleanup(controllers.CancelAll)

	f.srv = New(Deps{
		Controllers: controllers,
		Drivers:     drivers,
		Settings:    caps,
		Feed:        f.feed,
		Ledger:      l,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := f.do(t, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready before SetReady status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	f.srv.SetReady(true)
	if rec := f.do(t, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /ready status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestListAxes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/axes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	got := decode[struct {
		Axes  []AxisView `json:"axes"`
		Count int        `json:"count"`
	}](t, rec)
	if got.Count != 4 {
		t.Errorf("count = %d, want 4", got.Count)
	}
	if got.Axes[0].Axis != controller.AxisDisplay {
		t.Errorf("first axis = %q, want %q", got.Axes[0].Axis, controller.AxisDisplay)
	}
}

func TestGetAxis_Unknown(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/axes/volume", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if e := decode[Error](t, rec); e.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", e.Code, ErrCodeNotFound)
	}
}

func TestSetAxis(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/axes/display", `{"value": 80, "reason": "manual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	view := decode[AxisView](t, rec)
	if view.Value == nil || *view.Value != 80 {
		t.Errorf("value = %v, want 80", view.Value)
	}
	if view.Min == nil || *view.Min != 20 || view.Max == nil || *view.Max != 160 {
		t.Errorf("bounds = [%v, %v], want [20, 160]", view.Min, view.Max)
	}

	writes := f.port.Writes(hwio.QuantityDisplayGain)
	if len(writes) == 0 || writes[len(writes)-1] != 0.68 {
		t.Errorf("display gain writes = %v, want last 0.68", writes)
	}
}

func TestSetAxis_BadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"value":`},
		{"missing value", `{"reason": "manual"}`},
		{"negative duration", `{"value": 50, "duration_ms": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/api/v1/axes/display", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSetAxis_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.avail.Set(false)

	rec := f.do(t, http.MethodPut, "/api/v1/axes/display", `{"value": 80}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSetAxis_Transition(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/axes/display", `{"value": 160, "duration_ms": 200, "reason": "wake_up"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	view := decode[AxisView](t, rec)
	if view.Transition == nil {
		t.Fatal("transition missing from response")
	}
	if view.Transition.Target != 160 || view.Transition.DurationMs != 200 || view.Transition.Reason != "wake_up" {
		t.Errorf("transition = %+v", view.Transition)
	}

	if tr := f.display.ActiveTransition(); tr != nil {
		select {
		case <-tr.Done():
		case <-time.After(3 * time.Second):
			t.Fatal("transition did not finish")
		}
	}
	if v, _ := f.display.Value(); v != 160 {
		t.Errorf("display value = %v, want 160", v)
	}

	audit := decode[struct {
		Entries []ledger.Entry `json:"entries"`
		Count   int            `json:"count"`
	}](t, f.do(t, http.MethodGet, "/api/v1/audit?axis=display", ""))
	if audit.Count != 1 || audit.Entries[0].Reason != "wake_up" || !audit.Entries[0].Transition {
		t.Errorf("audit = %+v, want one wake_up transition entry", audit.Entries)
	}
}

func TestCancelTransition(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/axes/display", `{"value": 20, "duration_ms": 10000}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	tr := f.display.ActiveTransition()
	if tr == nil {
		t.Fatal("no active transition")
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/axes/display/transition", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want %d", rec.Code, http.StatusOK)
	}
	<-tr.Done()
	if !tr.IsCancelled() {
		t.Errorf("transition status = %s, want cancelled", tr.Status())
	}
	if f.display.ActiveTransition() != nil {
		t.Error("active transition still set after cancel")
	}
}

func TestListDrivers(t *testing.T) {
	f := newFixture(t)

	got := decode[struct {
		Drivers []DriverView `json:"drivers"`
	}](t, f.do(t, http.MethodGet, "/api/v1/drivers", ""))
	if len(got.Drivers) != 1 {
		t.Fatalf("drivers = %d, want 1", len(got.Drivers))
	}
	d := got.Drivers[0]
	if d.ID != driver.FamilyValveIndex || !d.Active || !d.Available || d.Max != 160 {
		t.Errorf("driver = %+v", d)
	}
}

func TestMaxBrightness(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/settings/max-brightness/valve_index", `{"value": 120}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if b, _ := f.display.Bounds(); b.Max != 120 {
		t.Errorf("display max = %v, want 120", b.Max)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/settings/max-brightness/valve_index", `{"value": 0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid cap status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/settings/max-brightness/valve_index", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want %d", rec.Code, http.StatusOK)
	}
	if b, _ := f.display.Bounds(); b.Max != 160 {
		t.Errorf("display max after clear = %v, want 160", b.Max)
	}
}

func TestDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/devices", `[{"manufacturer": "Valve", "model": "Index"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !f.feed.Any(driver.ValveIndexDevice) {
		t.Error("feed does not contain the published device")
	}

	got := decode[struct {
		Count int `json:"count"`
	}](t, f.do(t, http.MethodGet, "/api/v1/devices", ""))
	if got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
}

func TestListAudit_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/audit?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	f.srv.deps.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
