// Package device models networked telescope devices and decides which one
// is selected.
//
// A Device comes from one of three places: the discovery backend, an mDNS
// browse on the local network, or a manual add by the user. Host addresses
// and names change between scans (DHCP, renamed units), so a remembered
// selection is re-identified after every refresh with Resolve:
//
//  1. serial number (stable hardware identity)
//  2. computed key (explicit id, serial or name@host:port)
//  3. name and host together
//
// Name-only matching is never used; several units commonly share a model
// name prefix.
//
// Catalog owns the current device list and the selection. It applies the
// refresh policy: the first populated refresh since process start may
// replace a stale selection, later refreshes never switch devices on their
// own.
package device
