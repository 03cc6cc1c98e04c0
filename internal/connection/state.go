package connection

import "github.com/nerrad567/scopelink-core/internal/device"

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// Event is published on every state transition.
type Event struct {
	State State
	// Device is the device the transition concerns.
	Device device.Device
	// Generation of the channel after the transition.
	Generation uint64
	// Err is set for failures and transport losses.
	Err error

	seq uint64
}

// Listener receives state transitions in the order they happened.
// Listeners run synchronously on the goroutine that caused the transition,
// must not block and must not call back into the Manager's Connect or
// Disconnect.
type Listener func(Event)

// MessageHandler receives inbound frames tagged with their generation.
type MessageHandler func(generation uint64, data []byte)
