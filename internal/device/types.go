package device

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DiscoveryMethod records how a device entered the catalog.
type DiscoveryMethod string

const (
	// DiscoveryAuto devices come from the backend or mDNS and disappear
	// when a scan no longer reports them.
	DiscoveryAuto DiscoveryMethod = "auto"

	// DiscoveryManual devices were added by the user and are pinned.
	DiscoveryManual DiscoveryMethod = "manual"
)

// Status is the user-facing availability of a device.
type Status string

const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

// Device is a network-attached telescope.
type Device struct {
	// ID is an explicit identifier assigned by the backend, if any.
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	SerialNumber    string          `json:"serial_number,omitempty"`
	Host            string          `json:"host"`
	Port            int             `json:"port"`
	NetworkID       string          `json:"network_id,omitempty"`
	ProductModel    string          `json:"product_model,omitempty"`
	Description     string          `json:"description,omitempty"`
	Connected       bool            `json:"connected"`
	DiscoveryMethod DiscoveryMethod `json:"discovery_method"`
	// Status as reported. Only maintenance and error are kept by Normalize;
	// anything else is derived from Connected.
	Status   Status    `json:"status,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Key returns the computed identifier used for map keys, topics and URLs.
func (d Device) Key() string {
	if d.ID != "" {
		return d.ID
	}
	if d.SerialNumber != "" {
		return "sn-" + d.SerialNumber
	}
	return "net-" + strings.ToLower(d.Name) + "@" + d.Address()
}

// Address returns host:port.
func (d Device) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// DerivedStatus computes the effective status.
// An explicit maintenance or error status wins over connectivity.
func (d Device) DerivedStatus() Status {
	switch d.Status {
	case StatusMaintenance, StatusError:
		return d.Status
	}
	if d.Connected {
		return StatusOnline
	}
	return StatusOffline
}

// Normalize fills derived fields: the status and a default discovery method.
func (d Device) Normalize() Device {
	d.Status = d.DerivedStatus()
	if d.DiscoveryMethod == "" {
		d.DiscoveryMethod = DiscoveryAuto
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Host = strings.TrimSpace(d.Host)
	return d
}

// IsPinned reports whether the device survives scans that omit it.
func (d Device) IsPinned() bool {
	return d.DiscoveryMethod == DiscoveryManual
}

// Validate checks that a device carries enough identity to be contacted.
func (d Device) Validate() error {
	if d.Name == "" && d.SerialNumber == "" && d.ID == "" {
		return fmt.Errorf("%w: one of id, name or serial_number is required", ErrInvalidDevice)
	}
	if d.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidDevice)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidDevice, d.Port)
	}
	switch d.DiscoveryMethod {
	case "", DiscoveryAuto, DiscoveryManual:
	default:
		return fmt.Errorf("%w: discovery_method %q", ErrInvalidDevice, d.DiscoveryMethod)
	}
	return nil
}

// connectivityDiffers reports whether fields that affect how the device is
// reached or displayed differ.
func connectivityDiffers(a, b Device) bool {
	return a.DerivedStatus() != b.DerivedStatus() ||
		a.Connected != b.Connected ||
		a.Host != b.Host ||
		a.Port != b.Port ||
		a.Description != b.Description
}
