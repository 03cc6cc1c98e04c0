package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/device"
)

// Logger defines the logging interface used by the Manager.
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

// Config holds dial and reconnect settings.
type Config struct {
	DialTimeout time.Duration
	// InitialDelay is the wait before the first reconnect attempt; it
	// doubles per attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxAttempts bounds reconnection; 0 retries forever.
	MaxAttempts int
}

// Manager owns the control channel. All methods are safe for concurrent use.
type Manager struct {
	dialer channel.Dialer
	cfg    Config
	logger Logger

	mu      sync.Mutex
	state   State
	dev     *device.Device
	gen     uint64
	conn    channel.Conn
	cancel  context.CancelFunc
	lastErr error
	// seq numbers events under mu so emit can drop any that lost the race
	// to a later one.
	seq uint64

	emitMu  sync.Mutex
	emitted uint64

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
	handler     MessageHandler
}

// NewManager creates a Manager in the disconnected state.
func NewManager(dialer channel.Dialer, cfg Config) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Manager{
		dialer:    dialer,
		cfg:       cfg,
		logger:    noopLogger{},
		state:     StateDisconnected,
		listeners: make(map[int]Listener),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetMessageHandler installs the inbound frame handler. Must be called
// before the first Connect.
func (m *Manager) SetMessageHandler(h MessageHandler) {
	m.listenersMu.Lock()
	m.handler = h
	m.listenersMu.Unlock()
}

// Subscribe registers a state listener and returns its removal function.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// Connect opens a channel to d and blocks until it is connected, fails,
// or is superseded.
//
// Connecting to the device already connected or connecting is a no-op.
// Any other live channel is closed, and disconnected published, before
// the dial starts.
func (m *Manager) Connect(ctx context.Context, d device.Device) error {
	m.mu.Lock()
	if m.dev != nil && m.dev.Key() == d.Key() {
		switch m.state {
		case StateConnected, StateConnecting, StateReconnecting:
			m.mu.Unlock()
			return nil
		}
	}

	events := m.teardownLocked()
	m.gen++
	gen := m.gen
	connCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	dev := d
	m.dev = &dev
	m.state = StateConnecting
	m.lastErr = nil
	events = append(events, Event{State: StateConnecting, Device: d, Generation: gen})
	events = m.stampLocked(events...)
	m.mu.Unlock()

	m.emit(events...)
	m.logger.Info("connecting to device", "device", d.Key(), "address", d.Address(), "generation", gen)

	conn, err := m.dial(ctx, connCtx, d)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		if conn != nil {
			conn.Close() //nolint:errcheck // superseded channel is discarded
		}
		return ErrSuperseded
	}
	if err != nil {
		cancel()
		m.cancel = nil
		m.state = StateDisconnected
		m.lastErr = fmt.Errorf("%w: %w", ErrConnectFailed, err)
		ev := m.stampLocked(Event{State: StateDisconnected, Device: d, Generation: gen, Err: m.lastErr})
		m.mu.Unlock()

		m.logger.Warn("connect failed", "device", d.Key(), "error", err)
		m.emit(ev...)
		return ev[0].Err
	}
	m.conn = conn
	m.state = StateConnected
	connected := m.stampLocked(Event{State: StateConnected, Device: d, Generation: gen})
	m.mu.Unlock()

	m.logger.Info("device connected", "device", d.Key(), "generation", gen)
	m.emit(connected...)

	go m.run(connCtx, gen, conn, d)
	return nil
}

// Disconnect closes the channel and forgets the device. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	events := m.stampLocked(m.teardownLocked()...)
	m.gen++
	m.dev = nil
	m.lastErr = nil
	m.mu.Unlock()

	m.emit(events...)
}

// Close is Disconnect for shutdown.
func (m *Manager) Close() {
	m.Disconnect()
}

// teardownLocked cancels any attempt, closes the channel and returns the
// disconnected event if the state changed. Must be called with m.mu held.
func (m *Manager) teardownLocked() []Event {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		m.conn.Close() //nolint:errcheck // closing our own channel
		m.conn = nil
	}
	if m.state == StateDisconnected || m.dev == nil {
		m.state = StateDisconnected
		return nil
	}
	m.state = StateDisconnected
	return []Event{{State: StateDisconnected, Device: *m.dev, Generation: m.gen}}
}

// dial bounds a dial by the caller's ctx, the attempt's lifetime and the
// dial timeout.
func (m *Manager) dial(callerCtx, connCtx context.Context, d device.Device) (channel.Conn, error) {
	ctx, cancel := context.WithTimeout(callerCtx, m.cfg.DialTimeout)
	defer cancel()
	stop := context.AfterFunc(connCtx, cancel)
	defer stop()

	return m.dialer.Dial(ctx, d)
}

// run reads frames from conn and reconnects after a transport loss.
func (m *Manager) run(ctx context.Context, gen uint64, conn channel.Conn, d device.Device) {
	for {
		err := m.readLoop(ctx, gen, conn)
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		if m.gen != gen || m.conn != conn {
			m.mu.Unlock()
			return
		}
		m.conn = nil
		m.state = StateReconnecting
		m.lastErr = err
		lost := m.stampLocked(Event{State: StateReconnecting, Device: d, Generation: gen, Err: err})
		m.mu.Unlock()

		conn.Close() //nolint:errcheck // already lost
		m.logger.Warn("control channel lost, reconnecting", "device", d.Key(), "error", err)
		m.emit(lost...)

		var ok bool
		gen, conn, ok = m.reconnect(ctx, gen, d)
		if !ok {
			return
		}
	}
}

// readLoop delivers frames until the channel finishes or ctx is cancelled.
func (m *Manager) readLoop(ctx context.Context, gen uint64, conn channel.Conn) error {
	for {
		select {
		case data := <-conn.Inbound():
			m.deliver(gen, data)
		case <-conn.Done():
			// Frames that arrived before the loss are still valid.
			for {
				select {
				case data := <-conn.Inbound():
					m.deliver(gen, data)
				default:
					if err := conn.Err(); err != nil {
						return err
					}
					return channel.ErrClosed
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) deliver(gen uint64, data []byte) {
	m.mu.Lock()
	current := m.gen == gen
	m.mu.Unlock()
	if !current {
		m.logger.Debug("dropping frame from stale generation", "generation", gen)
		return
	}

	m.listenersMu.RLock()
	h := m.handler
	m.listenersMu.RUnlock()
	if h != nil {
		h(gen, data)
	}
}

// reconnect retries with exponential backoff. On success it installs the
// new channel under a new generation.
func (m *Manager) reconnect(ctx context.Context, gen uint64, d device.Device) (uint64, channel.Conn, bool) {
	delay := m.cfg.InitialDelay
	var lastErr error

	for attempt := 1; m.cfg.MaxAttempts == 0 || attempt <= m.cfg.MaxAttempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil, false
		case <-timer.C:
		}

		conn, err := m.dial(ctx, ctx, d)

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			if conn != nil {
				conn.Close() //nolint:errcheck // superseded channel is discarded
			}
			return 0, nil, false
		}
		if err == nil {
			m.gen++
			newGen := m.gen
			m.conn = conn
			m.state = StateConnected
			m.lastErr = nil
			ev := m.stampLocked(Event{State: StateConnected, Device: d, Generation: newGen})
			m.mu.Unlock()

			m.logger.Info("device reconnected", "device", d.Key(), "attempt", attempt, "generation", newGen)
			m.emit(ev...)
			return newGen, conn, true
		}
		m.mu.Unlock()

		lastErr = err
		m.logger.Debug("reconnect attempt failed", "device", d.Key(), "attempt", attempt, "error", err)
		delay = min(delay*2, m.cfg.MaxDelay)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return 0, nil, false
	}
	m.state = StateError
	m.lastErr = fmt.Errorf("%w: %w", ErrReconnectExhausted, lastErr)
	ev := m.stampLocked(Event{State: StateError, Device: d, Generation: gen, Err: m.lastErr})
	m.mu.Unlock()

	m.logger.Error("giving up on device", "device", d.Key(), "attempts", m.cfg.MaxAttempts, "error", lastErr)
	m.emit(ev...)
	return 0, nil, false
}

// Send writes a frame on the live channel and returns its generation.
func (m *Manager) Send(ctx context.Context, data []byte) (uint64, error) {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return 0, ErrNotConnected
	}
	conn, gen := m.conn, m.gen
	m.mu.Unlock()

	return gen, conn.Send(ctx, data)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether a channel is live.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Device returns the device being connected, connected or reconnected.
func (m *Manager) Device() (device.Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return device.Device{}, false
	}
	return *m.dev, true
}

// Generation returns the current generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// LastError returns the most recent failure, cleared on success.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// stampLocked numbers events in the order they happened. Must be called
// with m.mu held.
func (m *Manager) stampLocked(events ...Event) []Event {
	for i := range events {
		m.seq++
		events[i].seq = m.seq
	}
	return events
}

// emit delivers events to listeners. An event older than one already
// delivered is dropped, so listeners always end on the current state.
func (m *Manager) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	m.listenersMu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersMu.RUnlock()

	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	for _, ev := range events {
		if ev.seq <= m.emitted {
			m.logger.Debug("dropping superseded state event", "state", string(ev.State), "generation", ev.Generation)
			continue
		}
		m.emitted = ev.seq
		for _, l := range listeners {
			l(ev)
		}
	}
}
