// Package session runs observing sessions.
//
// A session moves idle → running ⇄ paused → ended. While running, a single
// ticker advances the elapsed time; pausing stops the ticker and resuming
// arms exactly one new ticker no matter how often Resume is called.
//
// Notes, location, equipment and conditions are edited independently of
// the timer. Ending a session snapshots them into the session record,
// prepends it to the past sessions and resets them. Every piece of
// equipment used in the session gets one more use and the session's hours.
//
// All state changes are written through a Persister and published to the
// change listener.
package session
