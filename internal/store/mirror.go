package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// writeTimeout bounds a single repository write.
const writeTimeout = 5 * time.Second

// ErrorHandler is called when a mirrored write fails.
// In-memory state stays authoritative; the handler only reports.
type ErrorHandler func(namespace, key string, err error)

type op struct {
	namespace string
	key       string
	value     []byte
	delete    bool
	barrier   chan struct{}
}

// Mirror is the ordered, fire-and-forget write queue for state mutations.
//
// Operations are applied strictly in enqueue order by a single goroutine.
// Enqueue blocks only when the queue is full.
type Mirror struct {
	repo    Repository
	queue   chan op
	onError ErrorHandler
	logger  Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMirror creates a Mirror and starts its writer goroutine.
// depth is the queue capacity; values below 1 are raised to 1.
func NewMirror(repo Repository, depth int) *Mirror {
	if depth < 1 {
		depth = 1
	}
	m := &Mirror{
		repo:    repo,
		queue:   make(chan op, depth),
		onError: func(string, string, error) {},
		logger:  noopLogger{},
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.logger = logger
}

// OnError registers the failure callback. Must be called before the first write.
func (m *Mirror) OnError(h ErrorHandler) {
	if h != nil {
		m.onError = h
	}
}

// Put encodes v now and queues the write.
// Encoding errors are returned; write errors go to the ErrorHandler.
func (m *Mirror) Put(namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", namespace, key, err)
	}
	return m.enqueue(op{namespace: namespace, key: key, value: data})
}

// Delete queues removal of namespace/key.
func (m *Mirror) Delete(namespace, key string) error {
	return m.enqueue(op{namespace: namespace, key: key, delete: true})
}

// Flush blocks until every write queued before the call has been applied.
func (m *Mirror) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := m.enqueue(op{barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes, drains the queue and waits for the writer.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	<-m.done
}

func (m *Mirror) enqueue(o op) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMirrorClosed
	}
	m.queue <- o
	return nil
}

func (m *Mirror) run() {
	defer close(m.done)
	for o := range m.queue {
		if o.barrier != nil {
			close(o.barrier)
			continue
		}
		m.apply(o)
	}
}

func (m *Mirror) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if o.delete {
		err = m.repo.Delete(ctx, o.namespace, o.key)
	} else {
		err = m.repo.Put(ctx, o.namespace, o.key, o.value)
	}
	if err != nil {
		m.logger.Error("persisting state failed",
			"namespace", o.namespace,
			"key", o.key,
			"error", err,
		)
		m.onError(o.namespace, o.key, err)
	}
}
