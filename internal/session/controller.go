package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/scopelink-core/internal/store"
)

// Store keys in store.NamespaceSession and store.NamespaceEquipment.
const (
	KeyCurrent = "current"
	KeyPast    = "past"
	KeyUsage   = "usage"
)

const defaultTickInterval = time.Second

// Logger defines the logging interface used by the Controller.
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

// Persister receives state writes. *store.Mirror satisfies it.
type Persister interface {
	Put(namespace, key string, v any) error
}

// Ticker drives the session timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Controller owns the active session, past sessions and equipment usage.
// All methods are safe for concurrent use.
type Controller struct {
	persist   Persister
	interval  time.Duration
	logger    Logger
	now       func() time.Time
	newID     func() string
	newTicker func(time.Duration) Ticker

	mu         sync.Mutex
	active     *Session
	paused     bool
	elapsed    time.Duration
	notes      string
	location   Location
	equipment  []string
	conditions Conditions
	past       []Session
	usage      map[string]EquipmentUsage

	// stopTick is non-nil exactly while a ticker goroutine is armed.
	stopTick chan struct{}
	arms     int

	// seq numbers published states under mu; emit drops a state older
	// than the last one delivered.
	seq     uint64
	emitMu  sync.Mutex
	emitted uint64

	listener func(State)
}

// NewController creates an idle Controller. interval is the timer tick.
func NewController(p Persister, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Controller{
		persist:   p,
		interval:  interval,
		logger:    noopLogger{},
		now:       time.Now,
		newID:     uuid.NewString,
		newTicker: newTimeTicker,
		usage:     make(map[string]EquipmentUsage),
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// OnChange registers the listener called after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Restore replaces the controller state with a persisted snapshot. A
// restored active session that was running starts ticking again.
func (c *Controller) Restore(s Snapshot) {
	c.mu.Lock()
	c.disarmLocked()

	c.active = nil
	c.elapsed = 0
	if s.Current.Active != nil && s.Current.Active.EndTime == nil {
		a := cloneSession(*s.Current.Active)
		c.active = &a
		c.elapsed = time.Duration(a.ElapsedSeconds) * time.Second
	}
	c.paused = s.Current.Paused
	c.notes = s.Current.Notes
	c.location = s.Current.Location
	c.equipment = slices.Clone(s.Current.Equipment)
	c.conditions = s.Current.Conditions

	c.past = make([]Session, 0, len(s.Past))
	for _, p := range s.Past {
		c.past = append(c.past, cloneSession(p))
	}
	c.usage = make(map[string]EquipmentUsage, len(s.Usage))
	for id, u := range s.Usage {
		c.usage[id] = u
	}

	if c.active != nil && !c.paused {
		c.armLocked()
	}
	c.mu.Unlock()
}

// Start begins a session at location with equipment.
func (c *Controller) Start(location Location, equipment []string) (Session, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return Session{}, ErrSessionActive
	}

	c.active = &Session{ID: c.newID(), StartTime: c.now()}
	c.paused = false
	c.elapsed = 0
	c.location = location
	c.equipment = slices.Clone(equipment)
	c.armLocked()
	s := c.activeLocked()
	c.saveCurrentLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session started", "session_id", s.ID, "location", location.Name)
	c.emit(st, seq)
	return s, nil
}

// Pause stops the timer. Pausing a paused session is a no-op.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if c.paused {
		c.mu.Unlock()
		return nil
	}
	c.paused = true
	c.disarmLocked()
	c.saveCurrentLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(st, seq)
	return nil
}

// Resume restarts the timer. Resuming a running session is a no-op, so
// exactly one ticker is ever armed.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if !c.paused && c.stopTick != nil {
		c.mu.Unlock()
		return nil
	}
	c.paused = false
	c.armLocked()
	c.saveCurrentLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(st, seq)
	return nil
}

// End finishes the active session, records it first in the past sessions
// and updates equipment usage.
func (c *Controller) End() (Session, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return Session{}, ErrNoActiveSession
	}
	c.disarmLocked()

	ended := c.activeLocked()
	end := c.now()
	ended.EndTime = &end

	c.past = append([]Session{ended}, c.past...)
	c.recordUsageLocked(ended, end)

	c.active = nil
	c.paused = false
	c.elapsed = 0
	c.notes = ""
	c.location = Location{}
	c.equipment = nil

	c.saveCurrentLocked()
	c.savePastLocked()
	c.saveUsageLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session ended", "session_id", ended.ID, "elapsed_seconds", ended.ElapsedSeconds)
	c.emit(st, seq)
	return cloneSession(ended), nil
}

func (c *Controller) recordUsageLocked(s Session, at time.Time) {
	hours := float64(s.ElapsedSeconds) / 3600
	seen := make(map[string]bool, len(s.Equipment))
	for _, id := range s.Equipment {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		u := c.usage[id]
		u.ID = id
		u.Uses++
		u.Hours += hours
		last := at
		u.LastUsed = &last
		c.usage[id] = u
	}
}

// Close stops the timer without ending the session.
func (c *Controller) Close() {
	c.mu.Lock()
	c.disarmLocked()
	c.mu.Unlock()
}

// SetNotes replaces the session notes.
func (c *Controller) SetNotes(notes string) {
	c.update(func() { c.notes = notes })
}

// SetLocation replaces the observing location.
func (c *Controller) SetLocation(loc Location) {
	c.update(func() { c.location = loc })
}

// SetEquipment replaces the equipment list.
func (c *Controller) SetEquipment(ids []string) {
	ids = slices.Clone(ids)
	c.update(func() { c.equipment = ids })
}

// SetConditions replaces the sky conditions.
func (c *Controller) SetConditions(cond Conditions) {
	c.update(func() { c.conditions = cond })
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	c.saveCurrentLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(st, seq)
}

// DeletePastSession removes an ended session.
func (c *Controller) DeletePastSession(id string) error {
	c.mu.Lock()
	i := slices.IndexFunc(c.past, func(s Session) bool { return s.ID == id })
	if i < 0 {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	c.past = slices.Delete(c.past, i, i+1)
	c.savePastLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(st, seq)
	return nil
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Active returns the active session with the current notes, location,
// equipment and conditions.
func (c *Controller) Active() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Session{}, false
	}
	return c.activeLocked(), true
}

// ActiveID returns the id of the active session, or "".
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.ID
}

// Running reports whether the timer is armed.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopTick != nil
}

func (c *Controller) armLocked() {
	if c.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	c.stopTick = stop
	c.arms++
	tk := c.newTicker(c.interval)

	go func() {
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C():
				c.tick(stop)
			}
		}
	}()
}

func (c *Controller) disarmLocked() {
	if c.stopTick == nil {
		return
	}
	close(c.stopTick)
	c.stopTick = nil
}

func (c *Controller) tick(stop chan struct{}) {
	c.mu.Lock()
	if c.stopTick != stop || c.active == nil {
		c.mu.Unlock()
		return
	}
	c.elapsed += c.interval
	c.active.ElapsedSeconds = int64(c.elapsed / time.Second)
	c.saveCurrentLocked()
	st, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(st, seq)
}

func (c *Controller) activeLocked() Session {
	s := cloneSession(*c.active)
	s.ElapsedSeconds = int64(c.elapsed / time.Second)
	s.Notes = c.notes
	s.Location = c.location
	s.Equipment = slices.Clone(c.equipment)
	s.Conditions = c.conditions
	return s
}

func (c *Controller) stateLocked() State {
	st := State{
		Running:    c.stopTick != nil,
		Notes:      c.notes,
		Location:   c.location,
		Equipment:  slices.Clone(c.equipment),
		Conditions: c.conditions,
		Past:       make([]Session, 0, len(c.past)),
		Usage:      make(map[string]EquipmentUsage, len(c.usage)),
	}
	if c.active != nil {
		a := c.activeLocked()
		st.Active = &a
	}
	for _, p := range c.past {
		st.Past = append(st.Past, cloneSession(p))
	}
	for id, u := range c.usage {
		st.Usage[id] = u
	}
	return st
}

func (c *Controller) saveCurrentLocked() {
	cur := Current{
		Paused:     c.paused,
		Notes:      c.notes,
		Location:   c.location,
		Equipment:  slices.Clone(c.equipment),
		Conditions: c.conditions,
	}
	if c.active != nil {
		a := c.activeLocked()
		cur.Active = &a
	}
	c.save(store.NamespaceSession, KeyCurrent, cur)
}

func (c *Controller) savePastLocked() {
	c.save(store.NamespaceSession, KeyPast, c.past)
}

func (c *Controller) saveUsageLocked() {
	c.save(store.NamespaceEquipment, KeyUsage, c.usage)
}

// save enqueues a write. The mirror encodes v immediately, so passing
// internal state under the lock is safe.
func (c *Controller) save(namespace, key string, v any) {
	if c.persist == nil {
		return
	}
	if err := c.persist.Put(namespace, key, v); err != nil {
		c.logger.Warn("session state not persisted", "namespace", namespace, "key", key, "error", err)
	}
}

// snapshotLocked returns the state to publish and its sequence number.
// Must be called with c.mu held.
func (c *Controller) snapshotLocked() (State, uint64) {
	c.seq++
	return c.stateLocked(), c.seq
}

// emit delivers st unless a later state was already delivered, so a tick
// racing End can never leave listeners showing an active session.
func (c *Controller) emit(st State, seq uint64) {
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if seq <= c.emitted {
		return
	}
	c.emitted = seq
	if fn != nil {
		fn(st)
	}
}

func cloneSession(s Session) Session {
	s.Equipment = slices.Clone(s.Equipment)
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}
