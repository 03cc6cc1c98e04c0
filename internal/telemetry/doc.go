// Package telemetry keeps the latest status reported by the selected
// device and tracks asynchronous plate-solve jobs.
//
// Status pushes arrive on the control channel as partial updates; the
// Tracker merges them into one Snapshot per device. Pushes for a device
// that is no longer selected are ignored. Each accepted push can also be
// exported through a Sink (InfluxDB in production).
package telemetry
