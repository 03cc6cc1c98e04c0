package store

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process Repository.
// Used by tests and when the core runs without a database file.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte

	// FailWrites makes Put and Delete return the given error.
	FailWrites error
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]map[string][]byte)}
}

// Get returns the value for namespace/key.
func (r *MemoryRepository) Get(_ context.Context, namespace, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put inserts or replaces a value.
func (r *MemoryRepository) Put(_ context.Context, namespace, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	ns, ok := r.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		r.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes a value.
func (r *MemoryRepository) Delete(_ context.Context, namespace, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	delete(r.data[namespace], key)
	return nil
}

// List returns every key/value pair in a namespace.
func (r *MemoryRepository) List(_ context.Context, namespace string) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.data[namespace]))
	for k, v := range r.data[namespace] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// SetFailWrites toggles write failures.
func (r *MemoryRepository) SetFailWrites(err error) {
	r.mu.Lock()
	r.FailWrites = err
	r.mu.Unlock()
}
