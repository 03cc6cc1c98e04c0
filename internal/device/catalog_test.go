package device

import (
	"errors"
	"testing"
)

var (
	scopeA = Device{Name: "Alpha", SerialNumber: "A1", Host: "10.0.0.2", Port: 4700, Connected: true}
	scopeB = Device{Name: "Bravo", SerialNumber: "B1", Host: "10.0.0.3", Port: 4700, Connected: true}
	scopeC = Device{Name: "Charlie", Host: "10.0.0.4", Port: 4700}
)

func TestCatalog_FirstPopulationAutoSelects(t *testing.T) {
	c := NewCatalog()

	res := c.ApplyRefresh([]Device{scopeC, scopeB, scopeA})
	if !res.FirstPopulation || !res.SelectionChanged || !res.HasSelection {
		t.Fatalf("ApplyRefresh() = %+v", res)
	}
	if res.DeviceChanged {
		t.Error("DeviceChanged should be false when nothing was remembered")
	}
	// Charlie is offline, Bravo is the first online device.
	if res.Selected.Key() != scopeB.Key() {
		t.Errorf("selected = %s, want %s", res.Selected.Key(), scopeB.Key())
	}
}

func TestCatalog_EmptyRefreshIsNotPopulation(t *testing.T) {
	c := NewCatalog()

	if res := c.ApplyRefresh(nil); res.FirstPopulation || res.HasSelection {
		t.Fatalf("ApplyRefresh(nil) = %+v", res)
	}
	if c.Populated() {
		t.Fatal("empty refresh must not count as population")
	}
	if res := c.ApplyRefresh([]Device{scopeA}); !res.FirstPopulation {
		t.Error("first non-empty refresh should be the population")
	}
}

func TestCatalog_RememberedMissingOnFirstPopulation(t *testing.T) {
	c := NewCatalog()
	ghost := Device{Name: "Ghost", SerialNumber: "G1", Host: "10.0.0.99", Port: 4700}
	c.Seed(nil, &ghost)

	res := c.ApplyRefresh([]Device{scopeA, scopeB})
	if !res.DeviceChanged || !res.SelectionChanged {
		t.Fatalf("ApplyRefresh() = %+v, want device change", res)
	}
	if res.Previous == nil || res.Previous.Key() != ghost.Key() {
		t.Errorf("Previous = %v", res.Previous)
	}
	if res.Selected.Key() != scopeA.Key() {
		t.Errorf("selected = %s", res.Selected.Key())
	}
}

func TestCatalog_NeverSwitchesAfterFirstPopulation(t *testing.T) {
	c := NewCatalog()
	c.ApplyRefresh([]Device{scopeA, scopeB})
	if _, _, err := c.Select(scopeB.Key()); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	// Bravo transiently missing.
	res := c.ApplyRefresh([]Device{scopeA})
	if res.SelectionChanged || res.DeviceChanged {
		t.Fatalf("ApplyRefresh() = %+v, selection must not change", res)
	}
	sel, ok := c.Selected()
	if !ok || sel.Key() != scopeB.Key() {
		t.Errorf("Selected() = %v, %v; want Bravo", sel.Key(), ok)
	}

	// Bravo returns.
	res = c.ApplyRefresh([]Device{scopeA, scopeB})
	if res.Reason != MatchSerial || res.SelectionChanged {
		t.Errorf("ApplyRefresh() = %+v", res)
	}
}

func TestCatalog_SelectionUpdatedOnlyOnConnectivityChange(t *testing.T) {
	c := NewCatalog()
	c.ApplyRefresh([]Device{scopeA})

	renamed := scopeA
	renamed.Name = "Alpha (renamed)"
	if res := c.ApplyRefresh([]Device{renamed}); res.SelectionUpdated {
		t.Error("name change alone must not overwrite the selection")
	}
	if sel, _ := c.Selected(); sel.Name != "Alpha" {
		t.Errorf("selection name = %q, want unchanged", sel.Name)
	}

	moved := scopeA
	moved.Host = "10.0.0.50"
	res := c.ApplyRefresh([]Device{moved})
	if !res.SelectionUpdated || res.SelectionChanged {
		t.Fatalf("ApplyRefresh() = %+v, want SelectionUpdated only", res)
	}
	if sel, _ := c.Selected(); sel.Host != "10.0.0.50" {
		t.Errorf("selection host = %q", sel.Host)
	}

	moved.Port = 4800
	if res := c.ApplyRefresh([]Device{moved}); !res.SelectionUpdated {
		t.Error("port change must update the selection")
	}
}

func TestCatalog_ManualDevicesPinned(t *testing.T) {
	c := NewCatalog()
	manual, err := c.Add(Device{Name: "Dome", Host: "192.168.1.20", Port: 4700})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if manual.DiscoveryMethod != DiscoveryManual {
		t.Errorf("DiscoveryMethod = %q", manual.DiscoveryMethod)
	}
	if _, err := c.Add(Device{Name: "dome", Host: "192.168.1.20", Port: 4700}); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("duplicate Add() error = %v, want ErrDeviceExists", err)
	}

	c.ApplyRefresh([]Device{scopeA})
	c.ApplyRefresh([]Device{scopeB})

	keys := map[string]bool{}
	for _, d := range c.Devices() {
		keys[d.Key()] = true
	}
	if !keys[manual.Key()] {
		t.Error("manual device dropped by refresh")
	}
	if keys[scopeA.Key()] {
		t.Error("auto device absent from latest scan should be removed")
	}
}

func TestCatalog_SelectAndRemove(t *testing.T) {
	c := NewCatalog()
	c.ApplyRefresh([]Device{scopeA, scopeB})

	if _, _, err := c.Select("nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Select(nope) error = %v", err)
	}

	_, changed, err := c.Select(scopeA.Key())
	if err != nil || changed {
		t.Errorf("re-selecting current device: changed=%v err=%v", changed, err)
	}

	cleared, err := c.Remove(scopeA.Key())
	if err != nil || !cleared {
		t.Errorf("Remove(selected) = %v, %v", cleared, err)
	}
	if _, ok := c.Selected(); ok {
		t.Error("selection should be cleared")
	}
	if _, err := c.Remove(scopeA.Key()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Remove() twice error = %v", err)
	}
}

func TestCatalog_SeedDropsInvalid(t *testing.T) {
	c := NewCatalog()
	bad := Device{Name: "no host"}
	errs := c.Seed([]Device{scopeA, {Name: "broken"}}, &bad)
	if len(errs) != 2 {
		t.Fatalf("Seed() errs = %v, want 2", errs)
	}
	if len(c.Devices()) != 1 {
		t.Errorf("Devices() = %d, want 1", len(c.Devices()))
	}
	if _, ok := c.Selected(); ok {
		t.Error("invalid selection must be discarded")
	}
}

func TestCatalog_OnChange(t *testing.T) {
	c := NewCatalog()
	calls := 0
	c.OnChange(func() { calls++ })

	c.ApplyRefresh([]Device{scopeA})
	c.Select(scopeA.Key()) //nolint:errcheck // unchanged selection does not notify
	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
}
