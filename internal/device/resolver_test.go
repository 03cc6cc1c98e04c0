package device

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestResolve_Priority(t *testing.T) {
	list := []Device{
		{Name: "Scope", Host: "10.0.0.5", Port: 4700},                        // name+host candidate
		{Name: "Renamed", SerialNumber: "SN-42", Host: "10.0.0.9", Port: 4700}, // serial candidate
		{Name: "Other", Host: "10.0.0.7", Port: 4700},
	}

	tests := []struct {
		name       string
		remembered Device
		wantName   string
		wantReason MatchReason
		wantOK     bool
	}{
		{
			name:       "serial beats name and host",
			remembered: Device{Name: "Scope", SerialNumber: "SN-42", Host: "10.0.0.5", Port: 4700},
			wantName:   "Renamed",
			wantReason: MatchSerial,
			wantOK:     true,
		},
		{
			name:       "computed key",
			remembered: Device{Name: "other", Host: "10.0.0.7", Port: 4700},
			wantName:   "Other",
			wantReason: MatchKey,
			wantOK:     true,
		},
		{
			name:       "name and host when port changed",
			remembered: Device{Name: "Scope", Host: "10.0.0.5", Port: 9999},
			wantName:   "Scope",
			wantReason: MatchNameHost,
			wantOK:     true,
		},
		{
			name:       "name only never matches",
			remembered: Device{Name: "Scope", Host: "10.0.0.200", Port: 4700},
			wantOK:     false,
		},
		{
			name:       "unknown serial falls through to none",
			remembered: Device{Name: "Ghost", SerialNumber: "SN-0", Host: "10.0.0.1", Port: 1},
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := Resolve(tt.remembered, list)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Name != tt.wantName || reason != tt.wantReason {
				t.Errorf("Resolve() = (%q, %q), want (%q, %q)", got.Name, reason, tt.wantName, tt.wantReason)
			}
		})
	}
}

// A remembered serial present in the list always resolves to that element,
// whatever names and hosts surround it.
func TestResolve_SerialAlwaysWins(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(8)
		list := make([]Device, n)
		for j := range list {
			list[j] = Device{
				Name:         fmt.Sprintf("Scope %d", rng.Intn(3)),
				SerialNumber: fmt.Sprintf("SN-%d", j),
				Host:         fmt.Sprintf("10.0.0.%d", rng.Intn(4)),
				Port:         4700,
			}
		}
		target := list[rng.Intn(n)]
		remembered := Device{
			Name:         list[0].Name,
			Host:         list[0].Host,
			Port:         list[0].Port,
			SerialNumber: target.SerialNumber,
		}

		got, reason, ok := Resolve(remembered, list)
		if !ok || reason != MatchSerial || got.SerialNumber != target.SerialNumber {
			t.Fatalf("iteration %d: Resolve() = (%+v, %q, %v), want serial %s", i, got, reason, ok, target.SerialNumber)
		}
	}
}
