package core

import (
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/store"
)

// Event channels.
const (
	ChannelConnection   = "connection"
	ChannelDevices      = "devices"
	ChannelSession      = "session"
	ChannelObservations = "observations"
	ChannelTelemetry    = "telemetry"
	ChannelNotices      = "notices"
	ChannelControls     = "controls"
)

// Event is a state change published to subscribers.
type Event struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// ConnectionStatus is the payload of connection events.
type ConnectionStatus struct {
	State      string `json:"state"`
	DeviceKey  string `json:"device_key,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
}

// DeviceList is the payload of devices events.
type DeviceList struct {
	Devices  []device.Device `json:"devices"`
	Selected *device.Device  `json:"selected,omitempty"`
}

// Controls is the payload of controls events.
type Controls struct {
	SceneryMode bool                     `json:"scenery_mode"`
	UI          map[string]store.UIState `json:"ui"`
}

// Subscribe registers fn for every Event. Events are delivered
// synchronously from the goroutine that made the change.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Manager) publish(channel string, data any) {
	m.subsMu.RLock()
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subsMu.RUnlock()

	ev := Event{Channel: channel, Data: data}
	for _, fn := range subs {
		fn(ev)
	}
}
