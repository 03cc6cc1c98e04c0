package connection

import "errors"

var (
	// ErrNotConnected is returned by Send when no channel is live.
	ErrNotConnected = errors.New("connection: not connected")

	// ErrConnectFailed wraps the transport error of a failed connect.
	ErrConnectFailed = errors.New("connection: connect failed")

	// ErrSuperseded is returned when a newer Connect or Disconnect replaced
	// the attempt while it was dialling.
	ErrSuperseded = errors.New("connection: superseded")

	// ErrReconnectExhausted is recorded when automatic reconnection gives up.
	ErrReconnectExhausted = errors.New("connection: reconnect attempts exhausted")
)
