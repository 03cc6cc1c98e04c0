// Package core is the client context: one explicitly constructed Manager
// that owns every component and wires them together.
//
// The Manager restores persisted state at Boot, keeps the device list in
// sync with the discovery backend, and turns selection changes into
// connection changes through a single path (applySelection). Component
// changes are republished to subscribers as Events on named channels.
// Failures that the user should see become notices.
package core
