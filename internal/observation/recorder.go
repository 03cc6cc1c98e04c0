package observation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/scopelink-core/internal/session"
	"github.com/nerrad567/scopelink-core/internal/store"
)

// KeyLog is the store key of the log in store.NamespaceObservation.
const KeyLog = "log"

// MaxRating is the highest rating an entry can have.
const MaxRating = 5

var (
	// ErrEntryNotFound is returned by Delete for unknown ids.
	ErrEntryNotFound = errors.New("observation: entry not found")

	// ErrInvalidRating is returned for ratings outside 0..MaxRating.
	ErrInvalidRating = errors.New("observation: invalid rating")
)

// Logger defines the logging interface used by the Recorder.
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

// Persister receives log writes. *store.Mirror satisfies it.
type Persister interface {
	Put(namespace, key string, v any) error
}

// Target is the object being observed.
type Target struct {
	Name string  `json:"name"`
	Type string  `json:"type,omitempty"`
	RA   float64 `json:"ra"`
	Dec  float64 `json:"dec"`
}

// Entry is one saved observation.
type Entry struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Target     Target             `json:"target"`
	Notes      string             `json:"notes"`
	Rating     int                `json:"rating"`
	SessionID  string             `json:"session_id,omitempty"`
	Settings   map[string]any     `json:"settings,omitempty"`
	Conditions session.Conditions `json:"conditions"`
}

// Providers supply the context captured by Save. Any of them may be nil.
type Providers struct {
	Settings   func() map[string]any
	Conditions func() session.Conditions
	SessionID  func() string
}

// Draft is the unsaved observation.
type Draft struct {
	Target *Target `json:"target,omitempty"`
	Notes  string  `json:"notes"`
	Rating int     `json:"rating"`
}

// Recorder owns the observation log and the draft.
type Recorder struct {
	persist   Persister
	providers Providers
	logger    Logger
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	draft    Draft
	entries  []Entry
	listener func([]Entry)
}

// NewRecorder creates an empty Recorder.
func NewRecorder(p Persister, providers Providers) *Recorder {
	return &Recorder{
		persist:   p,
		providers: providers,
		logger:    noopLogger{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers the listener called with the log after it changes.
func (r *Recorder) OnChange(fn func([]Entry)) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

// Restore replaces the log with persisted entries.
func (r *Recorder) Restore(entries []Entry) {
	r.mu.Lock()
	r.entries = slices.Clone(entries)
	r.mu.Unlock()
}

// SetTarget sets the draft target. nil clears it.
func (r *Recorder) SetTarget(t *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil {
		r.draft.Target = nil
		return
	}
	cp := *t
	r.draft.Target = &cp
}

// SetNotes sets the draft notes.
func (r *Recorder) SetNotes(notes string) {
	r.mu.Lock()
	r.draft.Notes = notes
	r.mu.Unlock()
}

// SetRating sets the draft rating.
func (r *Recorder) SetRating(rating int) error {
	if rating < 0 || rating > MaxRating {
		return fmt.Errorf("%w: %d not in 0..%d", ErrInvalidRating, rating, MaxRating)
	}
	r.mu.Lock()
	r.draft.Rating = rating
	r.mu.Unlock()
	return nil
}

// Draft returns the unsaved observation.
func (r *Recorder) Draft() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.draft
	if d.Target != nil {
		t := *d.Target
		d.Target = &t
	}
	return d
}

// Save records the draft. Returns ok=false, and changes nothing, when no
// target is set. Notes and rating are reset; the target is kept.
func (r *Recorder) Save() (Entry, bool) {
	// Providers call into other components; gather before taking the lock.
	var (
		settings   map[string]any
		conditions session.Conditions
		sessionID  string
	)
	if r.providers.Settings != nil {
		settings = maps.Clone(r.providers.Settings())
	}
	if r.providers.Conditions != nil {
		conditions = r.providers.Conditions()
	}
	if r.providers.SessionID != nil {
		sessionID = r.providers.SessionID()
	}

	r.mu.Lock()
	if r.draft.Target == nil {
		r.mu.Unlock()
		return Entry{}, false
	}
	e := Entry{
		ID:         r.newID(),
		Timestamp:  r.now(),
		Target:     *r.draft.Target,
		Notes:      r.draft.Notes,
		Rating:     r.draft.Rating,
		SessionID:  sessionID,
		Settings:   settings,
		Conditions: conditions,
	}
	r.entries = append([]Entry{e}, r.entries...)
	r.draft.Notes = ""
	r.draft.Rating = 0
	r.saveLocked()
	entries := slices.Clone(r.entries)
	fn := r.listener
	r.mu.Unlock()

	r.logger.Info("observation saved", "id", e.ID, "target", e.Target.Name, "session_id", sessionID)
	if fn != nil {
		fn(entries)
	}
	return e, true
}

// Delete removes the entry with id.
func (r *Recorder) Delete(id string) error {
	r.mu.Lock()
	i := slices.IndexFunc(r.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		r.mu.Unlock()
		return ErrEntryNotFound
	}
	r.entries = slices.Delete(r.entries, i, i+1)
	r.saveLocked()
	entries := slices.Clone(r.entries)
	fn := r.listener
	r.mu.Unlock()

	if fn != nil {
		fn(entries)
	}
	return nil
}

// Entries returns the log, most recent first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

func (r *Recorder) saveLocked() {
	if r.persist == nil {
		return
	}
	if err := r.persist.Put(store.NamespaceObservation, KeyLog, r.entries); err != nil {
		r.logger.Warn("observation log not persisted", "error", err)
	}
}
