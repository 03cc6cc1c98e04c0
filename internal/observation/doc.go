// Package observation keeps the observation log.
//
// The Recorder holds a draft (target, notes, rating). Save turns the draft
// into an immutable Entry, capturing the camera settings and sky conditions
// of that moment and the id of the active session. Entries are kept
// most-recent-first and can only be removed by id.
package observation
