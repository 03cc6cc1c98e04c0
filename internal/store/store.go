package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Logger defines the logging interface used by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store reads and writes JSON values through a Repository.
//
// Store is used for boot-time reads and for synchronous writes outside the
// mutation path. State mutations use Mirror instead.
type Store struct {
	repo   Repository
	logger Logger
}

// New creates a Store on top of repo.
func New(repo Repository) *Store {
	return &Store{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Repository returns the underlying repository.
func (s *Store) Repository() Repository {
	return s.repo
}

// Load decodes namespace/key into dst.
//
// Returns ok=false with a nil error when the key does not exist. A value
// that fails to decode returns an error wrapping ErrMalformed and leaves
// dst in an unspecified state; callers should reset it to their default.
func (s *Store) Load(ctx context.Context, namespace, key string, dst any) (bool, error) {
	data, err := s.repo.Get(ctx, namespace, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("discarding malformed persisted value",
			"namespace", namespace,
			"key", key,
			"error", err,
		)
		return false, fmt.Errorf("%w: %s/%s: %v", ErrMalformed, namespace, key, err)
	}
	return true, nil
}

// Save encodes v and writes it synchronously.
func (s *Store) Save(ctx context.Context, namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", namespace, key, err)
	}
	return s.repo.Put(ctx, namespace, key, data)
}

// Delete removes namespace/key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	return s.repo.Delete(ctx, namespace, key)
}

// LoadUIState reads every UI scope. Malformed scopes are skipped and
// reported through the returned error slice.
func (s *Store) LoadUIState(ctx context.Context) (map[string]UIState, []error) {
	raw, err := s.repo.List(ctx, NamespaceUI)
	if err != nil {
		return map[string]UIState{}, []error{err}
	}

	var errs []error
	out := make(map[string]UIState, len(raw))
	for scope, data := range raw {
		var bag UIState
		if err := json.Unmarshal(data, &bag); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s/%s: %v", ErrMalformed, NamespaceUI, scope, err))
			continue
		}
		out[scope] = bag.Revive()
	}
	return out, errs
}
