// Package notice holds user-visible, dismissible notices.
package notice

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Dismiss for unknown ids.
var ErrNotFound = errors.New("notice: not found")

// DefaultCapacity bounds the board when none is given.
const DefaultCapacity = 50

// Kind classifies a notice by the failure or event that raised it.
type Kind string

const (
	KindDiscovery     Kind = "discovery"
	KindConnection    Kind = "connection"
	KindTimeout       Kind = "timeout"
	KindRejection     Kind = "rejection"
	KindPersistence   Kind = "persistence"
	KindValidation    Kind = "validation"
	KindDeviceChanged Kind = "device_changed"
	KindInfo          Kind = "info"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one message.
type Notice struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Dismissed bool      `json:"dismissed"`
}

// Board is a bounded, newest-first list of notices. When full, the oldest
// notice is dropped.
type Board struct {
	capacity int
	now      func() time.Time
	newID    func() string

	mu          sync.Mutex
	notices     []Notice
	subscribers map[int]func([]Notice)
	nextSub     int
}

// NewBoard creates a Board holding at most capacity notices.
func NewBoard(capacity int) *Board {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Board{
		capacity:    capacity,
		now:         time.Now,
		newID:       uuid.NewString,
		subscribers: make(map[int]func([]Notice)),
	}
}

// Push adds a notice and returns it.
func (b *Board) Push(kind Kind, level Level, message string) Notice {
	b.mu.Lock()
	n := Notice{
		ID:        b.newID(),
		Kind:      kind,
		Level:     level,
		Message:   message,
		CreatedAt: b.now(),
	}
	b.notices = append([]Notice{n}, b.notices...)
	if len(b.notices) > b.capacity {
		b.notices = b.notices[:b.capacity]
	}
	b.mu.Unlock()

	b.notify()
	return n
}

// Dismiss marks a notice dismissed. Dismissing twice is a no-op.
func (b *Board) Dismiss(id string) error {
	b.mu.Lock()
	i := slices.IndexFunc(b.notices, func(n Notice) bool { return n.ID == id })
	if i < 0 {
		b.mu.Unlock()
		return ErrNotFound
	}
	if b.notices[i].Dismissed {
		b.mu.Unlock()
		return nil
	}
	b.notices[i].Dismissed = true
	b.mu.Unlock()

	b.notify()
	return nil
}

// List returns notices newest first.
func (b *Board) List(includeDismissed bool) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listLocked(includeDismissed)
}

func (b *Board) listLocked(includeDismissed bool) []Notice {
	out := make([]Notice, 0, len(b.notices))
	for _, n := range b.notices {
		if n.Dismissed && !includeDismissed {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Subscribe registers fn to receive the active notices after every change.
func (b *Board) Subscribe(fn func([]Notice)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

func (b *Board) notify() {
	b.mu.Lock()
	active := b.listLocked(false)
	subs := make([]func([]Notice), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(active)
	}
}
