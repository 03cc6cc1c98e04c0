package notice

import (
	"errors"
	"fmt"
	"testing"
)

func newTestBoard(capacity int) *Board {
	b := NewBoard(capacity)
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
	return b
}

func TestPush_NewestFirstAndBounded(t *testing.T) {
	b := newTestBoard(3)
	for i := 1; i <= 5; i++ {
		b.Push(KindInfo, LevelInfo, fmt.Sprintf("message %d", i))
	}

	got := b.List(true)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"n5", "n4", "n3"}
	for i, n := range got {
		if n.ID != want[i] {
			t.Errorf("List()[%d].ID = %s, want %s", i, n.ID, want[i])
		}
	}
}

func TestDismiss(t *testing.T) {
	b := newTestBoard(10)
	keep := b.Push(KindTimeout, LevelWarning, "goto M31 timed out; the mount may still be slewing")
	gone := b.Push(KindRejection, LevelError, "Target below horizon")

	if err := b.Dismiss(gone.ID); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if err := b.Dismiss(gone.ID); err != nil {
		t.Errorf("second Dismiss() error = %v", err)
	}
	if err := b.Dismiss("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Dismiss(missing) error = %v", err)
	}

	active := b.List(false)
	if len(active) != 1 || active[0].ID != keep.ID {
		t.Errorf("List(false) = %+v", active)
	}
	all := b.List(true)
	if len(all) != 2 || !all[0].Dismissed {
		t.Errorf("List(true) = %+v", all)
	}
}

func TestSubscribe(t *testing.T) {
	b := newTestBoard(10)

	var calls [][]Notice
	unsubscribe := b.Subscribe(func(n []Notice) { calls = append(calls, n) })

	n := b.Push(KindConnection, LevelWarning, "connection lost")
	b.Dismiss(n.ID) //nolint:errcheck // known id
	unsubscribe()
	b.Push(KindInfo, LevelInfo, "unseen")

	if len(calls) != 2 {
		t.Fatalf("notifications = %d, want 2", len(calls))
	}
	if len(calls[0]) != 1 || len(calls[1]) != 0 {
		t.Errorf("notifications = %+v", calls)
	}
}
