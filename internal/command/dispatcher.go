package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/connection"
	"github.com/nerrad567/scopelink-core/internal/device"
)

// Logger defines the logging interface used by the Dispatcher.
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

// Channel is the connection the dispatcher sends through.
// *connection.Manager satisfies it.
type Channel interface {
	Send(ctx context.Context, data []byte) (uint64, error)
	IsConnected() bool
	Device() (device.Device, bool)
	Generation() uint64
	Subscribe(l connection.Listener) (unsubscribe func())
}

// Selection reports the selected device. *device.Catalog satisfies it.
type Selection interface {
	Selected() (device.Device, bool)
}

// UnsolicitedHandler receives status pushes and device errors that are not
// tied to a pending command.
type UnsolicitedHandler func(generation uint64, msg channel.Message)

// Config holds timeouts and retry policy.
type Config struct {
	DefaultTimeout time.Duration
	GotoTimeout    time.Duration
	ParkTimeout    time.Duration
	// Retries is how many extra sends an idempotent command gets after a
	// write failure.
	Retries    int
	RetryDelay time.Duration
}

// Dispatcher correlates commands with responses.
type Dispatcher struct {
	ch     Channel
	sel    Selection
	cfg    Config
	logger Logger
	newID  func() string
	now    func() time.Time

	mu          sync.Mutex
	pending     map[string]*pending
	inflight    map[string]*pending
	unsolicited UnsolicitedHandler

	unsubscribe func()
}

// New creates a Dispatcher and subscribes it to ch's state changes so that
// pending commands fail as soon as the channel goes away.
func New(ch Channel, sel Selection, cfg Config) *Dispatcher {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	if cfg.GotoTimeout <= 0 {
		cfg.GotoTimeout = cfg.DefaultTimeout
	}
	if cfg.ParkTimeout <= 0 {
		cfg.ParkTimeout = cfg.DefaultTimeout
	}
	d := &Dispatcher{
		ch:       ch,
		sel:      sel,
		cfg:      cfg,
		logger:   noopLogger{},
		newID:    uuid.NewString,
		now:      time.Now,
		pending:  make(map[string]*pending),
		inflight: make(map[string]*pending),
	}
	d.unsubscribe = ch.Subscribe(d.onConnectionEvent)
	return d
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// OnUnsolicited installs the handler for status pushes and uncorrelated errors.
func (d *Dispatcher) OnUnsolicited(h UnsolicitedHandler) {
	d.mu.Lock()
	d.unsolicited = h
	d.mu.Unlock()
}

// Close fails every pending command and detaches from the channel.
func (d *Dispatcher) Close() {
	d.unsubscribe()
	d.failAll(ErrConnectionLost)
}

// Move nudges the mount. Stop is always sent, even while another stop is
// waiting, and is retried on write failure.
func (d *Dispatcher) Move(ctx context.Context, dir Direction) (*Result, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidArgument, dir)
	}
	payload := map[string]string{"direction": string(dir)}
	if dir == Stop {
		return d.call(ctx, KindMove, payload, d.cfg.DefaultTimeout, true, false)
	}
	return d.call(ctx, KindMove, payload, d.cfg.DefaultTimeout, false, true)
}

// AdjustFocus steps the focuser. Each call is a separate step.
func (d *Dispatcher) AdjustFocus(ctx context.Context, dir FocusDirection) (*Result, error) {
	if dir != FocusIn && dir != FocusOut {
		return nil, fmt.Errorf("%w: focus direction %q", ErrInvalidArgument, dir)
	}
	return d.call(ctx, KindFocus, map[string]string{"direction": string(dir)}, d.cfg.DefaultTimeout, false, false)
}

// Park sends the mount to its park position.
func (d *Dispatcher) Park(ctx context.Context) (*Result, error) {
	return d.call(ctx, KindPark, nil, d.cfg.ParkTimeout, true, true)
}

// GotoTarget slews to a target. The device may acknowledge before the slew
// finishes, so a timeout here is common and inconclusive.
func (d *Dispatcher) GotoTarget(ctx context.Context, req GotoRequest) (*Result, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: target name is required", ErrInvalidArgument)
	}
	if req.RA < 0 || req.RA >= 24 {
		return nil, fmt.Errorf("%w: ra %.4f outside [0,24)", ErrInvalidArgument, req.RA)
	}
	if req.Dec < -90 || req.Dec > 90 {
		return nil, fmt.Errorf("%w: dec %.4f outside [-90,90]", ErrInvalidArgument, req.Dec)
	}
	return d.call(ctx, KindGoto, req, d.cfg.GotoTimeout, false, true)
}

// EnableSceneryMode switches the device to terrestrial viewing.
func (d *Dispatcher) EnableSceneryMode(ctx context.Context) (*Result, error) {
	return d.call(ctx, KindScenery, nil, d.cfg.DefaultTimeout, true, true)
}

// PendingCount returns the number of commands awaiting a response.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Dispatcher) call(ctx context.Context, kind string, payload any, timeout time.Duration, idempotent, dedup bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, ok := d.sel.Selected()
	if !ok {
		return nil, ErrNoDeviceSelected
	}
	if !d.ch.IsConnected() {
		return nil, ErrNotConnected
	}
	if cur, ok := d.ch.Device(); !ok || cur.Key() != sel.Key() {
		return nil, fmt.Errorf("%w: channel is open to another device", ErrNotConnected)
	}

	var key string
	if dedup {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding payload: %v", ErrInvalidArgument, err)
		}
		key = kind + ":" + string(raw)
	}

	now := d.now()
	p := &pending{
		id:         d.newID(),
		kind:       kind,
		payload:    payload,
		dedupKey:   key,
		issuedAt:   now,
		timeoutAt:  now.Add(timeout),
		generation: d.ch.Generation(),
		waiters:    1,
		done:       make(chan struct{}),
	}

	d.mu.Lock()
	if existing, ok := d.inflight[key]; ok && key != "" {
		existing.waiters++
		d.mu.Unlock()
		d.logger.Debug("joining in-flight command", "command", kind, "id", existing.id)
		return d.wait(ctx, existing)
	}
	d.pending[p.id] = p
	if key != "" {
		d.inflight[key] = p
	}
	d.mu.Unlock()

	frame, err := channel.Encode(channel.Request{ID: p.id, Command: kind, Payload: payload})
	if err != nil {
		d.complete(p.id, nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
		<-p.done
		return nil, p.err
	}

	// Joined callers share this write, so only the command timeout bounds it.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	err = d.send(sendCtx, p, frame, idempotent)
	cancel()
	if err != nil {
		d.complete(p.id, nil, err)
		<-p.done
		return nil, p.err
	}

	d.arm(p, timeout)
	return d.wait(ctx, p)
}

// send writes the frame, retrying idempotent commands on write failure.
func (d *Dispatcher) send(ctx context.Context, p *pending, frame []byte, idempotent bool) error {
	attempts := 0
	for {
		gen, err := d.ch.Send(ctx, frame)
		if err == nil {
			if gen != p.generation {
				return ErrConnectionLost
			}
			return nil
		}
		if errors.Is(err, connection.ErrNotConnected) {
			return ErrNotConnected
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !idempotent || attempts >= d.cfg.Retries {
			return fmt.Errorf("%w: %s: %w", ErrSendFailed, p.kind, err)
		}
		attempts++
		d.logger.Warn("command write failed, retrying", "command", p.kind, "id", p.id, "attempt", attempts, "error", err)

		timer := time.NewTimer(d.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.done:
			// Failed by a connection change while waiting.
			timer.Stop()
			return p.err
		case <-timer.C:
		}
	}
}

// arm starts the response deadline. It belongs to the command rather than
// to a caller, so it still fires after the sender stops waiting.
func (d *Dispatcher) arm(p *pending, timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[p.id]; !ok {
		return
	}
	p.timer = time.AfterFunc(timeout, func() {
		if d.complete(p.id, nil, fmt.Errorf("%w: %s after %v", ErrTimeout, p.kind, timeout)) {
			d.logger.Warn("command timed out", "command", p.kind, "id", p.id, "timeout", timeout)
		}
	})
}

// wait blocks until p completes or ctx is done. A caller that stops
// waiting leaves p to the others joined on it; the last one to leave
// completes it with ErrAbandoned.
func (d *Dispatcher) wait(ctx context.Context, p *pending) (*Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
	}

	d.mu.Lock()
	p.waiters--
	_, open := d.pending[p.id]
	last := open && p.waiters == 0
	if last {
		d.removeLocked(p.id)
	}
	d.mu.Unlock()

	if !open {
		// Completed while we were giving up.
		<-p.done
		return p.result, p.err
	}
	err := fmt.Errorf("%w: %s: %w", ErrAbandoned, p.kind, ctx.Err())
	if last {
		p.finish(nil, err)
	}
	return nil, err
}

// complete finishes a pending command once. Later calls are ignored.
func (d *Dispatcher) complete(id string, res *Result, err error) bool {
	d.mu.Lock()
	p, ok := d.removeLocked(id)
	d.mu.Unlock()
	if !ok {
		return false
	}
	p.finish(res, err)
	return true
}

// removeLocked takes a command out of the pending and in-flight sets.
// Must be called with d.mu held.
func (d *Dispatcher) removeLocked(id string) (*pending, bool) {
	p, ok := d.pending[id]
	if !ok {
		return nil, false
	}
	delete(d.pending, id)
	if p.dedupKey != "" && d.inflight[p.dedupKey] == p {
		delete(d.inflight, p.dedupKey)
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	return p, true
}

func (d *Dispatcher) failAll(err error) {
	d.mu.Lock()
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		if d.complete(id, nil, err) {
			d.logger.Debug("pending command failed", "id", id, "error", err)
		}
	}
}

func (d *Dispatcher) onConnectionEvent(ev connection.Event) {
	if ev.State != connection.StateConnected {
		d.failAll(fmt.Errorf("%w: %s", ErrConnectionLost, ev.State))
	}
}

// HandleFrame routes an inbound frame. It is the connection's message handler.
func (d *Dispatcher) HandleFrame(gen uint64, data []byte) {
	msg, err := channel.Decode(data)
	if err != nil {
		d.logger.Warn("discarding inbound frame", "error", err)
		return
	}

	switch m := msg.(type) {
	case *channel.Response:
		if m.OK {
			d.resolve(gen, m.ID, m.Result, nil)
			return
		}
		body := channel.ErrorBody{Message: "command failed"}
		if m.Error != nil {
			body = *m.Error
		}
		d.resolve(gen, m.ID, nil, &body)

	case *channel.ErrorMessage:
		if m.ID != "" && d.resolve(gen, m.ID, nil, &m.Error) {
			return
		}
		d.forward(gen, m)

	case *channel.StatusPush:
		d.forward(gen, m)
	}
}

// resolve completes a pending command from a response. Returns false for
// unknown ids and responses from another generation.
func (d *Dispatcher) resolve(gen uint64, id string, data json.RawMessage, rejection *channel.ErrorBody) bool {
	d.mu.Lock()
	p, ok := d.pending[id]
	d.mu.Unlock()
	if !ok || p.generation != gen {
		d.logger.Debug("ignoring stale response", "id", id, "generation", gen)
		return false
	}

	if rejection != nil {
		return d.complete(id, nil, &RejectedError{Command: p.kind, Code: rejection.Code, Message: rejection.Message})
	}
	return d.complete(id, &Result{
		ID:       id,
		Command:  p.kind,
		Data:     data,
		Duration: d.now().Sub(p.issuedAt),
	}, nil)
}

func (d *Dispatcher) forward(gen uint64, msg channel.Message) {
	d.mu.Lock()
	h := d.unsolicited
	d.mu.Unlock()
	if h != nil {
		h(gen, msg)
	}
}

// Optimistic applies a local state change before call and rolls it back if
// call fails. An inconclusive outcome (timeout, or the caller giving up
// after the command went out) keeps the change and is still returned so
// the caller can show the outcome as uncertain.
func Optimistic(ctx context.Context, apply, rollback func(), call func(ctx context.Context) error) error {
	apply()
	err := call(ctx)
	if err == nil || IsInconclusive(err) {
		return err
	}
	rollback()
	return err
}
