package session

import "errors"

var (
	// ErrSessionActive is returned by Start while a session is active.
	ErrSessionActive = errors.New("session: a session is already active")

	// ErrNoActiveSession is returned when an operation needs an active session.
	ErrNoActiveSession = errors.New("session: no active session")

	// ErrSessionNotFound is returned for unknown past session ids.
	ErrSessionNotFound = errors.New("session: session not found")
)
