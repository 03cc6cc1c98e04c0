package device

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Catalog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RefreshResult describes what ApplyRefresh did to the selection.
type RefreshResult struct {
	// Selected is the selection after the refresh; valid when HasSelection.
	Selected     Device
	HasSelection bool

	// Reason is how the previous selection was found in the new list.
	Reason MatchReason

	// SelectionChanged is true when a different device is now selected.
	// The caller must tear down the old connection and connect the new one.
	SelectionChanged bool

	// SelectionUpdated is true when the same device stayed selected but
	// its connectivity fields were refreshed.
	SelectionUpdated bool

	// DeviceChanged is true when a remembered device was missing on the
	// first population and another device replaced it.
	DeviceChanged bool
	Previous      *Device

	// FirstPopulation is true for the refresh that first populated the list.
	FirstPopulation bool
}

// Catalog holds the known devices and the current selection.
//
// All public methods are thread-safe. Listeners run synchronously after
// each change, outside the lock.
type Catalog struct {
	mu        sync.RWMutex
	devices   []Device
	selected  *Device
	populated bool
	listeners []func()
	now       func() time.Time
	logger    Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the catalog.
func (c *Catalog) SetLogger(logger Logger) {
	c.logger = logger
}

// OnChange registers a listener called after every mutation.
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Seed restores persisted state without counting as a population.
// Invalid devices are dropped and returned so the caller can report them.
func (c *Catalog) Seed(devices []Device, selected *Device) []error {
	var errs []error
	valid := make([]Device, 0, len(devices))
	for _, d := range devices {
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cached device %q: %w", d.Name, err))
			continue
		}
		valid = append(valid, d.Normalize())
	}

	c.mu.Lock()
	c.devices = valid
	c.selected = nil
	if selected != nil {
		if err := selected.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("selected device %q: %w", selected.Name, err))
		} else {
			s := selected.Normalize()
			c.selected = &s
		}
	}
	c.mu.Unlock()

	c.notify()
	return errs
}

// ApplyRefresh replaces the auto-discovered devices with list and
// re-identifies the selection.
//
// Pinned devices missing from list are kept. On the first populated
// refresh a selection that cannot be found is replaced by the first online
// device; on later refreshes it is left untouched.
func (c *Catalog) ApplyRefresh(list []Device) RefreshResult {
	c.mu.Lock()

	merged := c.merge(list)
	c.devices = merged

	first := !c.populated && len(merged) > 0
	if first {
		c.populated = true
	}

	res := RefreshResult{FirstPopulation: first}

	switch {
	case c.selected != nil:
		match, reason, ok := Resolve(*c.selected, merged)
		if ok {
			res.Reason = reason
			if connectivityDiffers(*c.selected, match) {
				m := match
				c.selected = &m
				res.SelectionUpdated = true
			}
			break
		}
		if !first {
			c.logger.Debug("selected device absent from scan, keeping selection",
				"device", c.selected.Key(),
			)
			break
		}
		if d, ok := pickDefault(merged); ok {
			prev := *c.selected
			c.selected = &d
			res.Previous = &prev
			res.SelectionChanged = true
			res.DeviceChanged = true
			c.logger.Info("remembered device not found, selected another",
				"previous", prev.Key(),
				"selected", d.Key(),
			)
		}

	case first:
		if d, ok := pickDefault(merged); ok {
			c.selected = &d
			res.SelectionChanged = true
		}
	}

	if c.selected != nil {
		res.Selected = *c.selected
		res.HasSelection = true
	}
	c.mu.Unlock()

	c.notify()
	return res
}

// merge builds the new device list. Must be called with c.mu held.
func (c *Catalog) merge(list []Device) []Device {
	now := c.now()
	pinned := make(map[string]Device)
	for _, d := range c.devices {
		if d.IsPinned() {
			pinned[d.Key()] = d
		}
	}

	out := make([]Device, 0, len(list)+len(pinned))
	seen := make(map[string]bool, len(list))
	for _, d := range list {
		d = d.Normalize()
		if d.Validate() != nil || seen[d.Key()] {
			continue
		}
		if p, ok := pinned[d.Key()]; ok {
			d.DiscoveryMethod = p.DiscoveryMethod
		}
		d.LastSeen = now
		seen[d.Key()] = true
		out = append(out, d)
	}
	for _, d := range c.devices {
		if d.IsPinned() && !seen[d.Key()] {
			d.Connected = false
			d.Status = d.DerivedStatus()
			out = append(out, d)
		}
	}
	return out
}

// Select makes the device with key the selection.
// Returns true when the selection actually changed.
func (c *Catalog) Select(key string) (Device, bool, error) {
	c.mu.Lock()
	var found *Device
	for i := range c.devices {
		if c.devices[i].Key() == key {
			d := c.devices[i]
			found = &d
			break
		}
	}
	if found == nil {
		c.mu.Unlock()
		return Device{}, false, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	changed := c.selected == nil || c.selected.Key() != key
	c.selected = found
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return *found, changed, nil
}

// Add inserts a manually added device.
func (c *Catalog) Add(d Device) (Device, error) {
	d.DiscoveryMethod = DiscoveryManual
	if err := d.Validate(); err != nil {
		return Device{}, err
	}
	d = d.Normalize()
	d.LastSeen = c.now()

	c.mu.Lock()
	for _, existing := range c.devices {
		if existing.Key() == d.Key() {
			c.mu.Unlock()
			return Device{}, fmt.Errorf("%w: %s", ErrDeviceExists, d.Key())
		}
	}
	c.devices = append(c.devices, d)
	c.mu.Unlock()

	c.notify()
	return d, nil
}

// Remove deletes a device. If it was selected the selection is cleared and
// clearedSelection is true.
func (c *Catalog) Remove(key string) (clearedSelection bool, err error) {
	c.mu.Lock()
	idx := -1
	for i := range c.devices {
		if c.devices[i].Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	c.devices = append(c.devices[:idx], c.devices[idx+1:]...)
	if c.selected != nil && c.selected.Key() == key {
		c.selected = nil
		clearedSelection = true
	}
	c.mu.Unlock()

	c.notify()
	return clearedSelection, nil
}

// Devices returns a copy of the device list.
func (c *Catalog) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// Selected returns the current selection.
func (c *Catalog) Selected() (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return Device{}, false
	}
	return *c.selected, true
}

// Populated reports whether a non-empty refresh has been applied.
func (c *Catalog) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

func (c *Catalog) notify() {
	c.mu.RLock()
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
