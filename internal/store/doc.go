// Package store persists client state as namespaced JSON values.
//
// Everything the core needs to survive a restart lives here: the selected
// device, the cached device list, UI control values, the active and past
// observing sessions, equipment usage and the observation log.
//
// Reads go through Store and never fail the caller on bad data: a missing
// key yields ok=false and a value that cannot be decoded yields
// ErrMalformed so the owner can discard it and fall back to defaults.
//
// Writes from state mutations go through Mirror, a single ordered queue
// drained by one goroutine. Values are encoded when enqueued, so the
// persisted value always matches the mutation that produced it even if a
// later mutation happens before the write lands.
package store
