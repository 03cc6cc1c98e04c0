// Package connection owns the single live control channel to the selected
// telescope.
//
// State machine:
//
//	disconnected → connecting → connected
//	connected → reconnecting → connected | error
//	any → disconnected (Disconnect, or Connect to another device)
//
// Connecting to a different device first closes the current channel and
// publishes disconnected, so two channels are never live at once. Every
// connect and every successful reconnect starts a new generation. A dial
// that finishes after a newer Connect or Disconnect is closed and reported
// as ErrSuperseded; frames from an older generation are dropped before
// they reach the message handler.
package connection
