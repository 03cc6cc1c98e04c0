package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/connection"
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/infrastructure/logging"
	"github.com/nerrad567/scopelink-core/internal/notice"
	"github.com/nerrad567/scopelink-core/internal/observation"
	"github.com/nerrad567/scopelink-core/internal/session"
	"github.com/nerrad567/scopelink-core/internal/store"
	"github.com/nerrad567/scopelink-core/internal/telemetry"
)

// Store keys in store.NamespaceDevice.
const (
	KeyDeviceCache    = "cache"
	KeyDeviceSelected = "selected"
)

// UI scope whose values are captured as camera settings with observations.
const ScopeCamera = "camera"

const closeFlushTimeout = 5 * time.Second

// Backend is the discovery backend. *backend.Client satisfies it.
type Backend interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	AddDevice(ctx context.Context, d device.Device) (device.Device, error)
	RemoveDevice(ctx context.Context, id string) error
	PlateSolve(ctx context.Context, id string) (string, error)
	Sync(ctx context.Context, id string, ra, dec float64) error
}

// Browser finds devices on the local network. *device.MDNSBrowser satisfies it.
type Browser interface {
	Browse(ctx context.Context) ([]device.Device, error)
}

// Metrics exports telemetry and device events. *influxdb.Client satisfies it.
type Metrics interface {
	telemetry.Sink
	WriteDeviceEvent(deviceKey, event string, ts time.Time)
}

// Options configures a Manager. Repository, Backend and Dialer are required.
type Options struct {
	Repository store.Repository
	WriteQueue int

	Backend Backend
	Browser Browser
	Dialer  channel.Dialer
	Metrics Metrics

	Connection    connection.Config
	Command       command.Config
	SessionTick   time.Duration
	SampleDevices []device.Device

	// RefreshInterval drives Run; 0 disables periodic refresh.
	RefreshInterval time.Duration
	NoticeCapacity  int

	Logger *logging.Logger
}

// Manager owns the client state and its components.
type Manager struct {
	opts   Options
	logger *logging.Logger

	store    *store.Store
	mirror   *store.Mirror
	catalog  *device.Catalog
	conn     *connection.Manager
	disp     *command.Dispatcher
	sessions *session.Controller
	recorder *observation.Recorder
	tracker  *telemetry.Tracker
	notices  *notice.Board

	refreshMu sync.Mutex
	// selMu is held across a catalog selection change and the connect or
	// disconnect it triggers.
	selMu sync.Mutex

	uiMu    sync.Mutex
	ui      map[string]store.UIState
	scenery bool

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Manager and wires its components. Nothing is loaded or
// connected until Boot.
func New(opts Options) (*Manager, error) {
	if opts.Repository == nil || opts.Backend == nil || opts.Dialer == nil {
		return nil, errors.New("core: repository, backend and dialer are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := &Manager{
		opts:    opts,
		logger:  logger.Component("core"),
		store:   store.New(opts.Repository),
		mirror:  store.NewMirror(opts.Repository, opts.WriteQueue),
		catalog: device.NewCatalog(),
		notices: notice.NewBoard(opts.NoticeCapacity),
		ui:      make(map[string]store.UIState),
		subs:    make(map[int]func(Event)),
		closed:  make(chan struct{}),
	}
	m.conn = connection.NewManager(opts.Dialer, opts.Connection)
	m.disp = command.New(m.conn, m.catalog, opts.Command)
	m.sessions = session.NewController(m.mirror, opts.SessionTick)
	m.tracker = telemetry.NewTracker(m.catalog)
	m.recorder = observation.NewRecorder(m.mirror, observation.Providers{
		Settings:   m.cameraSettings,
		Conditions: func() session.Conditions { return m.sessions.State().Conditions },
		SessionID:  m.sessions.ActiveID,
	})

	m.store.SetLogger(logger.Component("store"))
	m.mirror.SetLogger(logger.Component("store"))
	m.catalog.SetLogger(logger.Component("device"))
	m.conn.SetLogger(logger.Component("connection"))
	m.disp.SetLogger(logger.Component("command"))
	m.sessions.SetLogger(logger.Component("session"))
	m.recorder.SetLogger(logger.Component("observation"))
	m.tracker.SetLogger(logger.Component("telemetry"))
	if opts.Metrics != nil {
		m.tracker.SetSink(opts.Metrics)
	}

	m.wire()
	return m, nil
}

func (m *Manager) wire() {
	m.mirror.OnError(m.onPersistError)
	m.catalog.OnChange(m.onCatalogChange)
	m.conn.SetMessageHandler(m.disp.HandleFrame)
	m.conn.Subscribe(m.onConnectionEvent)
	m.disp.OnUnsolicited(m.onUnsolicited)
	m.tracker.OnSnapshot(func(s telemetry.Snapshot) { m.publish(ChannelTelemetry, s) })
	m.tracker.OnJob(m.onPlateSolveJob)
	m.sessions.OnChange(func(s session.State) { m.publish(ChannelSession, s) })
	m.recorder.OnChange(func(e []observation.Entry) { m.publish(ChannelObservations, e) })
	m.notices.Subscribe(func(n []notice.Notice) { m.publish(ChannelNotices, n) })
}

// Boot restores persisted state, refreshes the device list and connects
// to the selected device. Load and connect failures become notices; Boot
// only fails if ctx is done.
func (m *Manager) Boot(ctx context.Context) error {
	m.restoreDevices(ctx)
	m.restoreUI(ctx)
	m.restoreSession(ctx)
	m.restoreObservations(ctx)

	refresh, err := m.RefreshDevices(ctx)
	if err != nil {
		return err
	}

	// A refresh that kept the remembered selection did not connect.
	if !refresh.Result.SelectionChanged {
		m.selMu.Lock()
		if d, ok := m.catalog.Selected(); ok {
			m.applySelection(ctx, &d) //nolint:errcheck // reported as a notice
		}
		m.selMu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("core booted", "devices", len(m.catalog.Devices()), "connection", string(m.conn.State()))
	return nil
}

func (m *Manager) restoreDevices(ctx context.Context) {
	var cached []device.Device
	m.load(ctx, store.NamespaceDevice, KeyDeviceCache, &cached, func() { cached = nil })

	var selected *device.Device
	var sel device.Device
	if m.load(ctx, store.NamespaceDevice, KeyDeviceSelected, &sel, func() {}) {
		selected = &sel
	}

	for _, err := range m.catalog.Seed(cached, selected) {
		m.validationNotice(err)
	}
}

func (m *Manager) restoreUI(ctx context.Context) {
	bags, errs := m.store.LoadUIState(ctx)
	for _, err := range errs {
		m.validationNotice(err)
	}
	m.uiMu.Lock()
	m.ui = bags
	m.uiMu.Unlock()
}

func (m *Manager) restoreSession(ctx context.Context) {
	var snap session.Snapshot
	m.load(ctx, store.NamespaceSession, session.KeyCurrent, &snap.Current, func() { snap.Current = session.Current{} })
	m.load(ctx, store.NamespaceSession, session.KeyPast, &snap.Past, func() { snap.Past = nil })
	m.load(ctx, store.NamespaceEquipment, session.KeyUsage, &snap.Usage, func() { snap.Usage = nil })
	m.sessions.Restore(snap)
}

func (m *Manager) restoreObservations(ctx context.Context) {
	var entries []observation.Entry
	m.load(ctx, store.NamespaceObservation, observation.KeyLog, &entries, func() { entries = nil })
	m.recorder.Restore(entries)
}

// load reads one key. Malformed values are reported and reset; other
// read errors are reported as persistence failures.
func (m *Manager) load(ctx context.Context, namespace, key string, dst any, reset func()) bool {
	ok, err := m.store.Load(ctx, namespace, key, dst)
	switch {
	case errors.Is(err, store.ErrMalformed):
		reset()
		m.validationNotice(err)
		return false
	case err != nil:
		reset()
		m.logger.Error("loading persisted state failed", "namespace", namespace, "key", key, "error", err)
		m.notices.Push(notice.KindPersistence, notice.LevelError, fmt.Sprintf("Could not load saved %s data", namespace))
		return false
	}
	return ok
}

// Run refreshes the device list every RefreshInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if m.opts.RefreshInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closed:
			return nil
		case <-ticker.C:
			if _, err := m.RefreshDevices(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// Close stops the session timer, fails pending commands, disconnects and
// flushes pending writes. Idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closed)
		m.sessions.Close()
		m.disp.Close()
		m.conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		defer cancel()
		err = m.mirror.Flush(ctx)
		m.mirror.Close()
	})
	return err
}

// Components, for read access from adapters.

// Catalog returns the device catalog.
func (m *Manager) Catalog() *device.Catalog { return m.catalog }

// Connection returns the connection manager.
func (m *Manager) Connection() *connection.Manager { return m.conn }

// Sessions returns the session controller.
func (m *Manager) Sessions() *session.Controller { return m.sessions }

// Recorder returns the observation recorder.
func (m *Manager) Recorder() *observation.Recorder { return m.recorder }

// Telemetry returns the telemetry tracker.
func (m *Manager) Telemetry() *telemetry.Tracker { return m.tracker }

// Notices returns the notice board.
func (m *Manager) Notices() *notice.Board { return m.notices }

// ConnectionStatus returns the current connection state.
func (m *Manager) ConnectionStatus() ConnectionStatus {
	st := ConnectionStatus{State: string(m.conn.State()), Generation: m.conn.Generation()}
	if d, ok := m.conn.Device(); ok {
		st.DeviceKey = d.Key()
		st.DeviceName = d.Name
	}
	if err := m.conn.LastError(); err != nil {
		st.Error = err.Error()
	}
	return st
}
