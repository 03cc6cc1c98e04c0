package device

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestDeviceFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Seestar S50@scope-4", "_scopelink._tcp", "local.")
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.40")}
	entry.Port = 4700
	entry.Text = []string{"sn=ZWO-123", "model=S50", "junk"}

	d, ok := deviceFromEntry(entry)
	if !ok {
		t.Fatal("deviceFromEntry() ok = false")
	}
	if d.Name != "Seestar S50" || d.Host != "192.168.1.40" || d.Port != 4700 {
		t.Errorf("device = %+v", d)
	}
	if d.SerialNumber != "ZWO-123" || d.ProductModel != "S50" {
		t.Errorf("TXT not applied: %+v", d)
	}
	if d.Key() != "sn-ZWO-123" {
		t.Errorf("Key() = %q", d.Key())
	}
	if d.Status != StatusOnline {
		t.Errorf("Status = %q", d.Status)
	}
}

func TestDeviceFromEntry_NoAddress(t *testing.T) {
	entry := zeroconf.NewServiceEntry("x", "_scopelink._tcp", "local.")
	entry.Port = 4700
	if _, ok := deviceFromEntry(entry); ok {
		t.Error("entry without IPv4 should be skipped")
	}
	if _, ok := deviceFromEntry(nil); ok {
		t.Error("nil entry should be skipped")
	}
}
