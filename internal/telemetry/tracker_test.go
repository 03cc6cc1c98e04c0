package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/device"
)

type selection struct {
	mu  sync.Mutex
	dev *device.Device
}

func (s *selection) Selected() (device.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return device.Device{}, false
	}
	return *s.dev, true
}

func (s *selection) set(d *device.Device) {
	s.mu.Lock()
	s.dev = d
	s.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	points []map[string]any
	keys   []string
}

func (r *recordingSink) WriteDeviceTelemetry(deviceKey string, fields map[string]any, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, deviceKey)
	r.points = append(r.points, fields)
}

func f64(v float64) *float64 { return &v }

var (
	scopeA = device.Device{Name: "Seestar A", SerialNumber: "A1", Host: "10.0.0.2", Port: 4700}
	scopeB = device.Device{Name: "Seestar B", SerialNumber: "B1", Host: "10.0.0.3", Port: 4700}
)

func newTestTracker() (*Tracker, *selection, *recordingSink) {
	sel := &selection{}
	sel.set(&scopeA)
	tr := NewTracker(sel)
	sink := &recordingSink{}
	tr.SetSink(sink)
	fixed := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }
	return tr, sel, sink
}

func TestApply_MergesPartialPushes(t *testing.T) {
	tr, _, sink := newTestTracker()

	if _, ok := tr.Apply(scopeA.Key(), channel.Status{Battery: f64(90), Temperature: f64(11.5)}); !ok {
		t.Fatal("push for selected device ignored")
	}
	snap, _ := tr.Apply(scopeA.Key(), channel.Status{Battery: f64(89)})

	if *snap.Battery != 89 || snap.Temperature == nil || *snap.Temperature != 11.5 {
		t.Errorf("snapshot = battery %v temperature %v", snap.Battery, snap.Temperature)
	}
	if snap.RA != nil {
		t.Error("RA set without being reported")
	}

	latest, ok := tr.Latest(scopeA.Key())
	if !ok || *latest.Battery != 89 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.points) != 2 || len(sink.points[1]) != 1 || sink.points[1]["battery"] != 89.0 {
		t.Errorf("sink points = %v", sink.points)
	}
}

func TestApply_UsesDeviceTimestamp(t *testing.T) {
	tr, _, _ := newTestTracker()
	ts := time.Date(2026, 3, 14, 22, 15, 0, 0, time.UTC)

	snap, _ := tr.Apply(scopeA.Key(), channel.Status{RA: f64(5.5), Timestamp: &ts})
	if !snap.UpdatedAt.Equal(ts) {
		t.Errorf("UpdatedAt = %v, want %v", snap.UpdatedAt, ts)
	}
}

func TestApply_IgnoresUnselectedDevice(t *testing.T) {
	tests := []struct {
		name     string
		selected *device.Device
	}{
		{"other device selected", &scopeB},
		{"nothing selected", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, sel, sink := newTestTracker()
			sel.set(tt.selected)

			if _, ok := tr.Apply(scopeA.Key(), channel.Status{Battery: f64(50)}); ok {
				t.Error("Apply() accepted push for unselected device")
			}
			if _, ok := tr.Latest(scopeA.Key()); ok {
				t.Error("snapshot stored for unselected device")
			}
			if len(sink.points) != 0 {
				t.Error("unselected push exported")
			}
		})
	}
}

func TestPlateSolveJobs(t *testing.T) {
	tr, _, _ := newTestTracker()

	var (
		mu   sync.Mutex
		seen []Job
	)
	tr.OnJob(func(j Job) {
		mu.Lock()
		seen = append(seen, j)
		mu.Unlock()
	})

	tr.TrackJob(scopeA.Key(), "job-1")
	tr.TrackJob(scopeA.Key(), "job-2")

	tr.Apply(scopeA.Key(), channel.Status{PlateSolve: &channel.PlateSolveResult{JobID: "job-1", Solved: true, RA: 0.712, Dec: 41.27}})
	tr.Apply(scopeA.Key(), channel.Status{PlateSolve: &channel.PlateSolveResult{JobID: "job-2"}})
	tr.Apply(scopeA.Key(), channel.Status{PlateSolve: &channel.PlateSolveResult{JobID: "job-unknown", Solved: true}})
	// A repeated result does not change a finished job.
	tr.Apply(scopeA.Key(), channel.Status{PlateSolve: &channel.PlateSolveResult{JobID: "job-2", Solved: true}})

	j1, err := tr.Job("job-1")
	if err != nil || j1.State != JobSolved || *j1.RA != 0.712 || *j1.Dec != 41.27 || j1.CompletedAt == nil {
		t.Errorf("job-1 = %+v, %v", j1, err)
	}
	j2, _ := tr.Job("job-2")
	if j2.State != JobFailed || j2.Error != "no solution" {
		t.Errorf("job-2 = %+v", j2)
	}
	if _, err := tr.Job("job-unknown"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Job(unknown) error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 { // two pending, two completions
		t.Errorf("job callbacks = %d, want 4", len(seen))
	}
}

func TestForget(t *testing.T) {
	tr, _, _ := newTestTracker()
	tr.Apply(scopeA.Key(), channel.Status{Battery: f64(70)})
	tr.TrackJob(scopeA.Key(), "job-1")

	tr.Forget(scopeA.Key())

	if _, ok := tr.Latest(scopeA.Key()); ok {
		t.Error("snapshot survived Forget")
	}
	if _, err := tr.Job("job-1"); !errors.Is(err, ErrUnknownJob) {
		t.Error("job survived Forget")
	}
}
