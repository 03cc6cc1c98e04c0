package channel

import "errors"

var (
	// ErrMalformed is returned when an inbound frame is not valid JSON or
	// lacks required fields.
	ErrMalformed = errors.New("channel: malformed message")

	// ErrUnknownType is returned for an inbound frame with an unrecognised type.
	ErrUnknownType = errors.New("channel: unknown message type")

	// ErrClosed is returned when sending on a closed connection.
	ErrClosed = errors.New("channel: connection closed")

	// ErrDial is returned when a transport cannot be established.
	ErrDial = errors.New("channel: dial failed")
)
