package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel"
	"github.com/nerrad567/scopelink-core/internal/device"
)

// ErrUnknownJob is returned for plate-solve job ids that were never tracked.
var ErrUnknownJob = errors.New("telemetry: unknown plate-solve job")

// Logger defines the logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Selection reports the selected device. *device.Catalog satisfies it.
type Selection interface {
	Selected() (device.Device, bool)
}

// Sink receives accepted telemetry. *influxdb.Client satisfies it.
type Sink interface {
	WriteDeviceTelemetry(deviceKey string, fields map[string]any, ts time.Time)
}

// Snapshot is the merged telemetry of one device.
type Snapshot struct {
	DeviceKey     string    `json:"device_key"`
	Battery       *float64  `json:"battery,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	FreeStorageMB *float64  `json:"free_storage_mb,omitempty"`
	RA            *float64  `json:"ra,omitempty"`
	Dec           *float64  `json:"dec,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JobState is the lifecycle state of a plate-solve job.
type JobState string

const (
	JobPending JobState = "pending"
	JobSolved  JobState = "solved"
	JobFailed  JobState = "failed"
)

// Job is a plate-solve request and, once reported, its outcome.
type Job struct {
	ID          string     `json:"job_id"`
	DeviceKey   string     `json:"device_key"`
	State       JobState   `json:"state"`
	RA          *float64   `json:"ra,omitempty"`
	Dec         *float64   `json:"dec,omitempty"`
	Error       string     `json:"error,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Tracker merges status pushes and matches plate-solve results to jobs.
type Tracker struct {
	sel    Selection
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	snapshots map[string]Snapshot
	jobs      map[string]*Job
	sink      Sink

	onSnapshot func(Snapshot)
	onJob      func(Job)
}

// NewTracker creates a Tracker that accepts pushes for sel's device only.
func NewTracker(sel Selection) *Tracker {
	return &Tracker{
		sel:       sel,
		logger:    noopLogger{},
		now:       time.Now,
		snapshots: make(map[string]Snapshot),
		jobs:      make(map[string]*Job),
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// SetSink installs the export sink. nil disables export.
func (t *Tracker) SetSink(s Sink) {
	t.mu.Lock()
	t.sink = s
	t.mu.Unlock()
}

// OnSnapshot registers a callback for every accepted push.
func (t *Tracker) OnSnapshot(fn func(Snapshot)) {
	t.mu.Lock()
	t.onSnapshot = fn
	t.mu.Unlock()
}

// OnJob registers a callback for plate-solve job changes.
func (t *Tracker) OnJob(fn func(Job)) {
	t.mu.Lock()
	t.onJob = fn
	t.mu.Unlock()
}

// Apply merges a status push from deviceKey. Returns false if the push was
// ignored because deviceKey is not the selected device.
func (t *Tracker) Apply(deviceKey string, st channel.Status) (Snapshot, bool) {
	sel, ok := t.sel.Selected()
	if !ok || sel.Key() != deviceKey {
		t.logger.Debug("ignoring status for unselected device", "device", deviceKey)
		return Snapshot{}, false
	}

	ts := t.now()
	if st.Timestamp != nil && !st.Timestamp.IsZero() {
		ts = *st.Timestamp
	}

	t.mu.Lock()
	snap := t.snapshots[deviceKey]
	snap.DeviceKey = deviceKey
	fields := make(map[string]any, 5)
	merge(&snap.Battery, st.Battery, "battery", fields)
	merge(&snap.Temperature, st.Temperature, "temperature", fields)
	merge(&snap.FreeStorageMB, st.FreeStorageMB, "free_storage_mb", fields)
	merge(&snap.RA, st.RA, "ra", fields)
	merge(&snap.Dec, st.Dec, "dec", fields)
	snap.UpdatedAt = ts
	t.snapshots[deviceKey] = snap

	var job *Job
	if st.PlateSolve != nil {
		job = t.completeJobLocked(deviceKey, *st.PlateSolve, ts)
	}
	sink, onSnapshot, onJob := t.sink, t.onSnapshot, t.onJob
	t.mu.Unlock()

	if sink != nil {
		sink.WriteDeviceTelemetry(deviceKey, fields, ts)
	}
	if onSnapshot != nil {
		onSnapshot(snap)
	}
	if job != nil && onJob != nil {
		onJob(*job)
	}
	return snap, true
}

func merge(dst **float64, src *float64, name string, fields map[string]any) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
	fields[name] = v
}

// completeJobLocked records a plate-solve outcome. Results for unknown or
// already finished jobs are ignored. Must be called with t.mu held.
func (t *Tracker) completeJobLocked(deviceKey string, res channel.PlateSolveResult, ts time.Time) *Job {
	job, ok := t.jobs[res.JobID]
	if !ok || job.DeviceKey != deviceKey {
		t.logger.Debug("ignoring plate-solve result for unknown job", "job_id", res.JobID)
		return nil
	}
	if job.State != JobPending {
		return nil
	}

	done := ts
	job.CompletedAt = &done
	if res.Solved {
		ra, dec := res.RA, res.Dec
		job.State = JobSolved
		job.RA, job.Dec = &ra, &dec
	} else {
		job.State = JobFailed
		job.Error = res.Error
		if job.Error == "" {
			job.Error = "no solution"
		}
	}
	out := *job
	return &out
}

// TrackJob registers a plate-solve job started on deviceKey.
func (t *Tracker) TrackJob(deviceKey, jobID string) Job {
	job := &Job{ID: jobID, DeviceKey: deviceKey, State: JobPending, RequestedAt: t.now()}

	t.mu.Lock()
	t.jobs[jobID] = job
	onJob := t.onJob
	t.mu.Unlock()

	if onJob != nil {
		onJob(*job)
	}
	return *job
}

// Job returns the tracked job with id.
func (t *Tracker) Job(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrUnknownJob
	}
	return *job, nil
}

// Latest returns the snapshot of deviceKey.
func (t *Tracker) Latest(deviceKey string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.snapshots[deviceKey]
	return s, ok
}

// Forget drops the snapshot and jobs of deviceKey.
func (t *Tracker) Forget(deviceKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshots, deviceKey)
	for id, job := range t.jobs {
		if job.DeviceKey == deviceKey {
			delete(t.jobs, id)
		}
	}
}
