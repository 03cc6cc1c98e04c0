package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMirror_PreservesOrder(t *testing.T) {
	repo := NewMemoryRepository()
	m := NewMirror(repo, 4)
	defer m.Close()

	for i := 0; i < 100; i++ {
		if err := m.Put(NamespaceUI, "camera", map[string]int{"gain": i}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, err := repo.Get(ctx, NamespaceUI, "camera")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"gain":99}` {
		t.Errorf("final value = %s, want last write", got)
	}
}

func TestMirror_SnapshotAtEnqueue(t *testing.T) {
	repo := NewMemoryRepository()
	m := NewMirror(repo, 4)
	defer m.Close()

	v := map[string]string{"notes": "first"}
	_ = m.Put(NamespaceSession, "active", v)
	v["notes"] = "mutated after enqueue"

	_ = m.Flush(context.Background())
	got, _ := repo.Get(context.Background(), NamespaceSession, "active")
	if string(got) != `{"notes":"first"}` {
		t.Errorf("persisted = %s, want value at enqueue time", got)
	}
}

func TestMirror_ReportsFailures(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SetFailWrites(errors.New("disk full"))

	m := NewMirror(repo, 4)
	defer m.Close()

	var mu sync.Mutex
	var failures []string
	m.OnError(func(ns, key string, err error) {
		mu.Lock()
		failures = append(failures, fmt.Sprintf("%s/%s", ns, key))
		mu.Unlock()
	})

	_ = m.Put(NamespaceObservation, "log", []string{"a"})
	_ = m.Delete(NamespaceObservation, "log")
	_ = m.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 2 {
		t.Errorf("failures = %v, want 2", failures)
	}
}

func TestMirror_Closed(t *testing.T) {
	m := NewMirror(NewMemoryRepository(), 1)
	m.Close()
	m.Close()

	if err := m.Put(NamespaceUI, "x", 1); !errors.Is(err, ErrMirrorClosed) {
		t.Errorf("Put() after Close error = %v, want ErrMirrorClosed", err)
	}
}

func TestMirror_EncodeError(t *testing.T) {
	m := NewMirror(NewMemoryRepository(), 1)
	defer m.Close()

	if err := m.Put(NamespaceUI, "x", make(chan int)); err == nil {
		t.Error("Put() with unencodable value should fail")
	}
}
