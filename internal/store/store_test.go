package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_LoadMissing(t *testing.T) {
	s := New(NewMemoryRepository())

	var v sample
	ok, err := s.Load(context.Background(), NamespaceSession, "active", &v)
	if err != nil || ok {
		t.Errorf("Load() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := New(NewMemoryRepository())
	ctx := context.Background()

	if err := s.Save(ctx, NamespaceSession, "active", sample{Name: "m31", Count: 3}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var v sample
	ok, err := s.Load(ctx, NamespaceSession, "active", &v)
	if err != nil || !ok {
		t.Fatalf("Load() = (%v, %v)", ok, err)
	}
	if v.Name != "m31" || v.Count != 3 {
		t.Errorf("Load() = %+v", v)
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	repo := NewMemoryRepository()
	s := New(repo)
	ctx := context.Background()

	_ = repo.Put(ctx, NamespaceSession, "active", []byte(`{"name":`))

	var v sample
	ok, err := s.Load(ctx, NamespaceSession, "active", &v)
	if ok {
		t.Error("Load() ok = true for malformed value")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Load() error = %v, want ErrMalformed", err)
	}
}

func TestStore_LoadUIState(t *testing.T) {
	repo := NewMemoryRepository()
	s := New(repo)
	ctx := context.Background()

	_ = repo.Put(ctx, NamespaceUI, "camera", []byte(`{"exposure":2.5,"captured_at":"2026-03-01T21:30:00Z","nested":{"at":"2026-03-02T01:00:00+01:00"}}`))
	_ = repo.Put(ctx, NamespaceUI, "overlay", []byte(`not json`))

	states, errs := s.LoadUIState(ctx)
	if len(errs) != 1 || !errors.Is(errs[0], ErrMalformed) {
		t.Errorf("LoadUIState() errs = %v, want one ErrMalformed", errs)
	}
	if _, ok := states["overlay"]; ok {
		t.Error("malformed scope should be discarded")
	}

	camera := states["camera"]
	if camera["exposure"] != 2.5 {
		t.Errorf("exposure = %v", camera["exposure"])
	}
	at, ok := camera["captured_at"].(time.Time)
	if !ok {
		t.Fatalf("captured_at type = %T, want time.Time", camera["captured_at"])
	}
	if !at.Equal(time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)) {
		t.Errorf("captured_at = %v", at)
	}
	nested, _ := camera["nested"].(map[string]any)
	if _, ok := nested["at"].(time.Time); !ok {
		t.Errorf("nested.at type = %T, want time.Time", nested["at"])
	}
}

func TestUIState_ReviveLeavesNonDates(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"plain string", "M31"},
		{"date only", "2026-03-01"},
		{"number", 42.0},
		{"bool", true},
		{"almost date", "2026-03-01Tnope-at-all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UIState{"v": tt.in}.Revive()
			if got["v"] != tt.in {
				t.Errorf("Revive(%v) = %v", tt.in, got["v"])
			}
		})
	}
}
