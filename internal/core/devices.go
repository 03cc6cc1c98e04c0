package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/connection"
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/notice"
	"github.com/nerrad567/scopelink-core/internal/store"
	"github.com/nerrad567/scopelink-core/internal/telemetry"
)

// Sources of a device refresh.
const (
	SourceBackend = "backend"
	SourceCache   = "cache"
	SourceSample  = "sample"
)

// Refresh describes one device list refresh.
type Refresh struct {
	Source  string               `json:"source"`
	Devices []device.Device      `json:"devices"`
	Error   string               `json:"error,omitempty"`
	Result  device.RefreshResult `json:"-"`
}

// RefreshDevices fetches the device list and reconciles the selection.
//
// When the backend fails the cached list, or else the configured sample
// list, is used instead and a discovery notice is raised. Devices found by
// mDNS are added to whichever list is used. The returned error is only
// set when ctx is done.
func (m *Manager) RefreshDevices(ctx context.Context) (Refresh, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	out := Refresh{Source: SourceBackend}
	list, err := m.opts.Backend.ListDevices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Error = err.Error()
		list, out.Source = m.fallbackDevices()
		m.logger.Warn("device discovery failed, using fallback", "source", out.Source, "error", err)
		m.notices.Push(notice.KindDiscovery, notice.LevelWarning,
			fmt.Sprintf("Device discovery failed; showing %s devices", out.Source))
	}
	list = m.addBrowsed(ctx, list)

	m.selMu.Lock()
	defer m.selMu.Unlock()

	res := m.catalog.ApplyRefresh(list)
	out.Result = res
	out.Devices = m.catalog.Devices()

	if res.DeviceChanged && res.Previous != nil {
		m.notices.Push(notice.KindDeviceChanged, notice.LevelWarning,
			fmt.Sprintf("%s was not found; switched to %s", res.Previous.Name, res.Selected.Name))
	}
	switch {
	case res.SelectionChanged:
		var sel *device.Device
		if res.HasSelection {
			sel = &res.Selected
		}
		m.applySelection(ctx, sel) //nolint:errcheck // reported as a notice
	case res.SelectionUpdated && res.HasSelection:
		m.followMovedDevice(ctx, res.Selected)
	}
	return out, ctx.Err()
}

// followMovedDevice redials the selected device when a refresh found it at
// a new address. Must be called with m.selMu held.
func (m *Manager) followMovedDevice(ctx context.Context, d device.Device) {
	cur, ok := m.conn.Device()
	if !ok || cur.Key() != d.Key() || cur.Address() == d.Address() {
		return
	}
	m.logger.Info("selected device moved, reconnecting",
		"device", d.Key(),
		"from", cur.Address(),
		"to", d.Address(),
	)
	m.conn.Disconnect()
	m.applySelection(ctx, &d) //nolint:errcheck // reported as a notice
}

func (m *Manager) fallbackDevices() ([]device.Device, string) {
	if cached := m.catalog.Devices(); len(cached) > 0 {
		return cached, SourceCache
	}
	return append([]device.Device(nil), m.opts.SampleDevices...), SourceSample
}

// addBrowsed appends devices advertised over mDNS that list does not
// already identify.
func (m *Manager) addBrowsed(ctx context.Context, list []device.Device) []device.Device {
	if m.opts.Browser == nil {
		return list
	}
	found, err := m.opts.Browser.Browse(ctx)
	if err != nil {
		m.logger.Debug("mdns browse failed", "error", err)
		return list
	}
	for _, d := range found {
		if _, _, ok := device.Resolve(d, list); !ok {
			list = append(list, d)
		}
	}
	return list
}

// applySelection is the only path from a selection change to the
// connection: nil disconnects, a device replaces the current connection.
// Must be called with m.selMu held, together with the catalog change it
// follows, so the connection always ends on the selected device.
func (m *Manager) applySelection(ctx context.Context, d *device.Device) error {
	if d == nil {
		m.conn.Disconnect()
		return nil
	}
	err := m.conn.Connect(ctx, *d)
	if errors.Is(err, connection.ErrSuperseded) {
		return nil
	}
	return err
}

// SelectDevice selects the device with key and connects to it.
func (m *Manager) SelectDevice(ctx context.Context, key string) (device.Device, error) {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	d, _, err := m.catalog.Select(key)
	if err != nil {
		return device.Device{}, err
	}
	return d, m.applySelection(ctx, &d)
}

// AddDevice registers a manual device with the backend and pins it.
func (m *Manager) AddDevice(ctx context.Context, d device.Device) (device.Device, error) {
	d.DiscoveryMethod = device.DiscoveryManual
	if err := d.Validate(); err != nil {
		return device.Device{}, err
	}

	created, err := m.opts.Backend.AddDevice(ctx, d)
	if err != nil {
		m.notices.Push(notice.KindDiscovery, notice.LevelError, fmt.Sprintf("Could not add %s: %v", d.Name, err))
		return device.Device{}, err
	}
	if created.Name == "" && created.Host == "" {
		created = d
	}
	return m.catalog.Add(created)
}

// RemoveDevice deletes a device from the backend and the list. Removing
// the selected device disconnects.
func (m *Manager) RemoveDevice(ctx context.Context, key string) error {
	d, ok := m.findDevice(key)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, key)
	}
	if err := m.opts.Backend.RemoveDevice(ctx, backendID(d)); err != nil {
		m.notices.Push(notice.KindDiscovery, notice.LevelError, fmt.Sprintf("Could not remove %s: %v", d.Name, err))
		return err
	}

	m.selMu.Lock()
	defer m.selMu.Unlock()

	cleared, err := m.catalog.Remove(key)
	if err != nil {
		return err
	}
	m.tracker.Forget(key)
	if cleared {
		m.applySelection(ctx, nil) //nolint:errcheck // disconnect cannot fail
	}
	return nil
}

// Reconnect drops and re-opens the connection to the selected device.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	d, ok := m.catalog.Selected()
	if !ok {
		return ErrNoDeviceSelected
	}
	m.conn.Disconnect()
	return m.applySelection(ctx, &d)
}

// PlateSolve starts a plate-solve job on the selected device. The result
// arrives later in a status push.
func (m *Manager) PlateSolve(ctx context.Context) (telemetry.Job, error) {
	d, ok := m.catalog.Selected()
	if !ok {
		return telemetry.Job{}, ErrNoDeviceSelected
	}
	jobID, err := m.opts.Backend.PlateSolve(ctx, backendID(d))
	if err != nil {
		m.notices.Push(notice.KindRejection, notice.LevelError, fmt.Sprintf("Plate solve failed to start: %v", err))
		return telemetry.Job{}, err
	}
	return m.tracker.TrackJob(d.Key(), jobID), nil
}

// Sync tells the selected device it is pointing at ra (hours) and dec
// (degrees).
func (m *Manager) Sync(ctx context.Context, ra, dec float64) error {
	d, ok := m.catalog.Selected()
	if !ok {
		return ErrNoDeviceSelected
	}
	if ra < 0 || ra >= 24 || dec < -90 || dec > 90 {
		return fmt.Errorf("%w: ra %.4f dec %.4f", command.ErrInvalidArgument, ra, dec)
	}
	if err := m.opts.Backend.Sync(ctx, backendID(d), ra, dec); err != nil {
		m.notices.Push(notice.KindRejection, notice.LevelError, fmt.Sprintf("Sync failed: %v", err))
		return err
	}
	return nil
}

func (m *Manager) findDevice(key string) (device.Device, bool) {
	for _, d := range m.catalog.Devices() {
		if d.Key() == key {
			return d, true
		}
	}
	return device.Device{}, false
}

// backendID is the id the backend knows a device by.
func backendID(d device.Device) string {
	if d.ID != "" {
		return d.ID
	}
	return d.Key()
}

// DeviceList returns the device list and the selection.
func (m *Manager) DeviceList() DeviceList {
	out := DeviceList{Devices: m.catalog.Devices()}
	if sel, ok := m.catalog.Selected(); ok {
		out.Selected = &sel
	}
	return out
}

func (m *Manager) onCatalogChange() {
	payload := m.DeviceList()
	m.persist(store.NamespaceDevice, KeyDeviceCache, payload.Devices)

	if payload.Selected != nil {
		m.persist(store.NamespaceDevice, KeyDeviceSelected, *payload.Selected)
	} else if err := m.mirror.Delete(store.NamespaceDevice, KeyDeviceSelected); err != nil {
		m.logger.Warn("clearing persisted selection failed", "error", err)
	}
	m.publish(ChannelDevices, payload)
}

func (m *Manager) onConnectionEvent(ev connection.Event) {
	status := ConnectionStatus{
		State:      string(ev.State),
		DeviceKey:  ev.Device.Key(),
		DeviceName: ev.Device.Name,
		Generation: ev.Generation,
	}
	if ev.Err != nil {
		status.Error = ev.Err.Error()
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.WriteDeviceEvent(status.DeviceKey, status.State, time.Now())
	}

	switch {
	case ev.State == connection.StateDisconnected && ev.Err != nil:
		m.notices.Push(notice.KindConnection, notice.LevelError,
			fmt.Sprintf("Could not connect to %s: %v", ev.Device.Name, ev.Err))
	case ev.State == connection.StateReconnecting:
		m.notices.Push(notice.KindConnection, notice.LevelWarning,
			fmt.Sprintf("Lost connection to %s; reconnecting", ev.Device.Name))
	case ev.State == connection.StateError:
		m.notices.Push(notice.KindConnection, notice.LevelError,
			fmt.Sprintf("Could not reconnect to %s", ev.Device.Name))
	}
	m.publish(ChannelConnection, status)
}

func (m *Manager) onUnsolicited(gen uint64, msg channel.Message) {
	if gen != m.conn.Generation() {
		return
	}
	d, ok := m.conn.Device()
	if !ok {
		return
	}

	switch v := msg.(type) {
	case *channel.StatusPush:
		m.tracker.Apply(d.Key(), v.Payload)
	case *channel.ErrorMessage:
		m.notices.Push(notice.KindRejection, notice.LevelWarning, fmt.Sprintf("%s: %s", d.Name, v.Error.Message))
	}
}

func (m *Manager) onPlateSolveJob(job telemetry.Job) {
	switch job.State {
	case telemetry.JobSolved:
		m.notices.Push(notice.KindInfo, notice.LevelInfo,
			fmt.Sprintf("Plate solved: RA %.4fh Dec %.4f°", *job.RA, *job.Dec))
	case telemetry.JobFailed:
		m.notices.Push(notice.KindInfo, notice.LevelWarning, "Plate solve failed: "+job.Error)
	}
	if m.opts.Metrics != nil && job.State != telemetry.JobPending {
		m.opts.Metrics.WriteDeviceEvent(job.DeviceKey, "plate_solve_"+string(job.State), time.Now())
	}
	m.publish(ChannelTelemetry, job)
}
