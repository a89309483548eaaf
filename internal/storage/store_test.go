package storage

import (
	"path/filepath"
	"testing"

	"github.com/dokzlo13/dimmerd/internal/db"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func TestStore_SetGetVersion(t *testing.T) {
	s := openStore(t)

	payload, version, err := s.Get("settings", "caps")
	if err != nil || payload != nil || version != 0 {
		t.Fatalf("Get(missing) = %q, %d, %v, want nil, 0, nil", payload, version, err)
	}

	if err := s.Set("settings", "caps", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("settings", "caps", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	payload, version, err = s.Get("settings", "caps")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != `{"a":2}` || version != 2 {
		t.Errorf("Get() = %q, %d, want {\"a\":2}, 2", payload, version)
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := openStore(t)

	s.Set("a", "1", []byte(`1`))
	s.Set("a", "2", []byte(`2`))
	s.Set("b", "1", []byte(`3`))

	if err := s.Delete("a", "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if p, _, _ := s.Get("a", "1"); p != nil {
		t.Errorf("Get() after Delete = %q, want nil", p)
	}

	if err := s.Clear("a"); err != nil {
		t.Fatalf("Clear(a) error = %v", err)
	}
	if p, _, _ := s.Get("a", "2"); p != nil {
		t.Errorf("Get(a/2) after Clear(a) = %q, want nil", p)
	}
	if p, _, _ := s.Get("b", "1"); string(p) != "3" {
		t.Errorf("Get(b/1) after Clear(a) = %q, want 3", p)
	}

	if err := s.Clear(""); err != nil {
		t.Fatalf("Clear(all) error = %v", err)
	}
	if p, _, _ := s.Get("b", "1"); p != nil {
		t.Errorf("Get(b/1) after Clear(all) = %q, want nil", p)
	}
}

type sample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestTypedStore(t *testing.T) {
	ts := NewTypedStore[sample](openStore(t), "sample")

	if _, found, err := ts.Get("x"); found || err != nil {
		t.Fatalf("Get(missing) found=%v err=%v, want false, nil", found, err)
	}

	want := sample{Name: "x", Value: 1.5}
	if err := ts.Set("x", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, found, err := ts.Get("x")
	if err != nil || !found || got != want {
		t.Errorf("Get() = %+v, %v, %v, want %+v, true, nil", got, found, err, want)
	}

	if err := ts.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, found, _ := ts.Get("x"); found {
		t.Error("Get() after Clear found = true")
	}
}
