package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scopelink-core/internal/channel/channeltest"
	"github.com/nerrad567/scopelink-core/internal/command"
	"github.com/nerrad567/scopelink-core/internal/connection"
	"github.com/nerrad567/scopelink-core/internal/device"
	"github.com/nerrad567/scopelink-core/internal/notice"
	"github.com/nerrad567/scopelink-core/internal/observation"
	"github.com/nerrad567/scopelink-core/internal/session"
	"github.com/nerrad567/scopelink-core/internal/store"
	"github.com/nerrad567/scopelink-core/internal/telemetry"
)

var (
	scopeA = device.Device{Name: "Seestar A", SerialNumber: "A1", Host: "10.0.0.2", Port: 4700, Connected: true}
	scopeB = device.Device{Name: "Seestar B", SerialNumber: "B1", Host: "10.0.0.3", Port: 4700, Connected: true}
	scopeC = device.Device{Name: "Seestar C", SerialNumber: "C1", Host: "10.0.0.4", Port: 4700, Connected: true}
	sample = device.Device{Name: "Demo scope", SerialNumber: "DEMO", Host: "127.0.0.1", Port: 4700}
)

// fakeBackend is an in-memory discovery backend.
type fakeBackend struct {
	mu      sync.Mutex
	devices []device.Device
	listErr error
	added   []device.Device
	removed []string
	jobID   string
	synced  [][2]float64
}

func (b *fakeBackend) ListDevices(context.Context) ([]device.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]device.Device(nil), b.devices...), nil
}

func (b *fakeBackend) AddDevice(_ context.Context, d device.Device) (device.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added = append(b.added, d)
	return d, nil
}

func (b *fakeBackend) RemoveDevice(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, id)
	return nil
}

func (b *fakeBackend) PlateSolve(context.Context, string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jobID, nil
}

func (b *fakeBackend) Sync(_ context.Context, _ string, ra, dec float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.synced = append(b.synced, [2]float64{ra, dec})
	return nil
}

func (b *fakeBackend) setDevices(d ...device.Device) {
	b.mu.Lock()
	b.devices = d
	b.mu.Unlock()
}

type harness struct {
	m       *Manager
	backend *fakeBackend
	dialer  *channeltest.Dialer
	repo    *store.MemoryRepository
}

func newHarness(t *testing.T, repo *store.MemoryRepository, devices ...device.Device) *harness {
	t.Helper()
	if repo == nil {
		repo = store.NewMemoryRepository()
	}
	h := &harness{
		backend: &fakeBackend{devices: devices, jobID: "job-42"},
		dialer:  &channeltest.Dialer{},
		repo:    repo,
	}
	m, err := New(Options{
		Repository: repo,
		WriteQueue: 64,
		Backend:    h.backend,
		Dialer:     h.dialer,
		Connection: connection.Config{
			DialTimeout:  time.Second,
			InitialDelay: time.Hour,
			MaxAttempts:  1,
		},
		Command: command.Config{
			DefaultTimeout: 500 * time.Millisecond,
			GotoTimeout:    50 * time.Millisecond,
			ParkTimeout:    500 * time.Millisecond,
			Retries:        1,
			RetryDelay:     time.Millisecond,
		},
		SessionTick:   time.Hour,
		SampleDevices: []device.Device{sample},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.m = m
	t.Cleanup(func() { m.Close() })
	return h
}

func (h *harness) boot(t *testing.T) {
	t.Helper()
	if err := h.m.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
}

func seed(t *testing.T, repo *store.MemoryRepository, namespace, key string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Put(context.Background(), namespace, key, data); err != nil {
		t.Fatal(err)
	}
}

func hasNotice(m *Manager, kind notice.Kind) bool {
	for _, n := range m.Notices().List(true) {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func replyOK(frame []byte) [][]byte {
	var f struct {
		ID string `json:"id"`
	}
	json.Unmarshal(frame, &f) //nolint:errcheck // test responder
	return [][]byte{[]byte(fmt.Sprintf(`{"type":"response","id":%q,"ok":true}`, f.ID))}
}

func rejectAll(frame []byte) [][]byte {
	var f struct {
		ID string `json:"id"`
	}
	json.Unmarshal(frame, &f) //nolint:errcheck // test responder
	return [][]byte{[]byte(fmt.Sprintf(`{"type":"response","id":%q,"ok":false,"error":"Mount is parked"}`, f.ID))}
}

func TestBoot_SelectsFirstOnlineAndConnects(t *testing.T) {
	offline := scopeB
	offline.Connected = false
	h := newHarness(t, nil, offline, scopeA)
	h.boot(t)

	sel, ok := h.m.Catalog().Selected()
	if !ok || sel.Key() != scopeA.Key() {
		t.Fatalf("Selected() = %v, %v; want %s", sel.Key(), ok, scopeA.Key())
	}
	if st := h.m.ConnectionStatus(); st.State != string(connection.StateConnected) || st.DeviceKey != scopeA.Key() {
		t.Errorf("ConnectionStatus() = %+v", st)
	}
	if got := h.dialer.Dialled(); len(got) != 1 || got[0] != scopeA.Key() {
		t.Errorf("dialled = %v", got)
	}

	if err := h.m.mirror.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	var persisted device.Device
	if ok, _ := store.New(h.repo).Load(context.Background(), store.NamespaceDevice, KeyDeviceSelected, &persisted); !ok || persisted.Key() != scopeA.Key() {
		t.Errorf("persisted selection = %+v, %v", persisted, ok)
	}
}

func TestBoot_RememberedDeviceMissingSwitches(t *testing.T) {
	repo := store.NewMemoryRepository()
	seed(t, repo, store.NamespaceDevice, KeyDeviceCache, []device.Device{scopeC})
	seed(t, repo, store.NamespaceDevice, KeyDeviceSelected, scopeC)

	h := newHarness(t, repo, scopeA)
	h.boot(t)

	sel, _ := h.m.Catalog().Selected()
	if sel.Key() != scopeA.Key() {
		t.Errorf("selected = %s, want %s", sel.Key(), scopeA.Key())
	}
	if !hasNotice(h.m, notice.KindDeviceChanged) {
		t.Error("no device_changed notice")
	}
	if d, _ := h.m.Connection().Device(); d.Key() != scopeA.Key() {
		t.Errorf("connected to %s", d.Key())
	}
}

func TestBoot_RememberedDeviceFoundBySerial(t *testing.T) {
	repo := store.NewMemoryRepository()
	moved := scopeB
	moved.Host = "10.0.0.99" // DHCP gave it a new address
	seed(t, repo, store.NamespaceDevice, KeyDeviceSelected, scopeB)

	h := newHarness(t, repo, scopeA, moved)
	h.boot(t)

	sel, _ := h.m.Catalog().Selected()
	if sel.Key() != scopeB.Key() || sel.Host != "10.0.0.99" {
		t.Errorf("selected = %+v", sel)
	}
	if hasNotice(h.m, notice.KindDeviceChanged) {
		t.Error("device_changed raised for a device that was found")
	}
	if got := h.dialer.Dialled(); len(got) != 1 || got[0] != scopeB.Key() {
		t.Errorf("dialled = %v", got)
	}
}

func TestRefresh_DoesNotSwitchAfterFirstPopulation(t *testing.T) {
	h := newHarness(t, nil, scopeA, scopeB)
	h.boot(t)
	if _, err := h.m.SelectDevice(context.Background(), scopeB.Key()); err != nil {
		t.Fatalf("SelectDevice() error = %v", err)
	}

	h.backend.setDevices(scopeA)
	if _, err := h.m.RefreshDevices(context.Background()); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}

	sel, _ := h.m.Catalog().Selected()
	if sel.Key() != scopeB.Key() {
		t.Errorf("selection switched to %s", sel.Key())
	}
	if d, _ := h.m.Connection().Device(); d.Key() != scopeB.Key() || !h.m.Connection().IsConnected() {
		t.Errorf("connection moved to %s", d.Key())
	}
	if hasNotice(h.m, notice.KindDeviceChanged) {
		t.Error("device_changed raised on a later refresh")
	}
}

func TestBoot_DiscoveryFallback(t *testing.T) {
	tests := []struct {
		name    string
		cache   []device.Device
		wantKey string
	}{
		{"cached list", []device.Device{scopeC}, scopeC.Key()},
		{"sample list", nil, sample.Key()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryRepository()
			if tt.cache != nil {
				seed(t, repo, store.NamespaceDevice, KeyDeviceCache, tt.cache)
			}
			h := newHarness(t, repo)
			h.backend.listErr = errors.New("backend: discovery failed: connection refused")
			h.boot(t)

			devices := h.m.Catalog().Devices()
			if len(devices) != 1 || devices[0].Key() != tt.wantKey {
				t.Errorf("devices = %+v", devices)
			}
			if !hasNotice(h.m, notice.KindDiscovery) {
				t.Error("no discovery notice")
			}
		})
	}
}

func TestRefresh_ReportsSource(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)

	h.backend.mu.Lock()
	h.backend.listErr = errors.New("offline")
	h.backend.mu.Unlock()

	r, err := h.m.RefreshDevices(context.Background())
	if err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}
	if r.Source != SourceCache || r.Error == "" || len(r.Devices) != 1 {
		t.Errorf("Refresh = %+v", r)
	}
}

func TestSelectDevice_TearsDownBeforeConnecting(t *testing.T) {
	h := newHarness(t, nil, scopeA, scopeB)
	h.boot(t)
	first := h.dialer.Last()

	var oldClosedAtDial bool
	h.dialer.OnDial(func(*channeltest.Conn) { oldClosedAtDial = first.Closed() })

	var (
		mu     sync.Mutex
		states []string
	)
	h.m.Subscribe(func(ev Event) {
		if ev.Channel == ChannelConnection {
			mu.Lock()
			states = append(states, ev.Data.(ConnectionStatus).State)
			mu.Unlock()
		}
	})

	if _, err := h.m.SelectDevice(context.Background(), scopeB.Key()); err != nil {
		t.Fatalf("SelectDevice() error = %v", err)
	}
	if !oldClosedAtDial {
		t.Error("old connection still open when the new dial started")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"disconnected", "connecting", "connected"}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("connection events = %v, want %v", states, want)
	}
}

func TestSelectDevice_OverlappingSelectionsEndOnSelected(t *testing.T) {
	h := newHarness(t, nil, scopeA, scopeB, scopeC)
	h.boot(t)
	h.dialer.OnDial(func(c *channeltest.Conn) { c.SetResponder(replyOK) })

	// While C is being selected, a selection of B starts and is given
	// time to overtake it before C connects.
	var (
		once      sync.Once
		secondErr error
	)
	secondDone := make(chan struct{})
	h.m.Catalog().OnChange(func() {
		if sel, _ := h.m.Catalog().Selected(); sel.Key() != scopeC.Key() {
			return
		}
		once.Do(func() {
			go func() {
				_, secondErr = h.m.SelectDevice(context.Background(), scopeB.Key())
				close(secondDone)
			}()
			select {
			case <-secondDone:
			case <-time.After(50 * time.Millisecond):
			}
		})
	})

	if _, err := h.m.SelectDevice(context.Background(), scopeC.Key()); err != nil {
		t.Fatalf("SelectDevice(C) error = %v", err)
	}
	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second selection never finished")
	}
	if secondErr != nil {
		t.Fatalf("SelectDevice(B) error = %v", secondErr)
	}

	sel, _ := h.m.Catalog().Selected()
	conn, _ := h.m.Connection().Device()
	if sel.Key() != scopeB.Key() || conn.Key() != sel.Key() || !h.m.Connection().IsConnected() {
		t.Fatalf("selected %s, connected to %s (%s)", sel.Key(), conn.Key(), h.m.Connection().State())
	}

	if _, err := h.m.Move(context.Background(), command.North); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	last := h.dialer.Last()
	if last.Device.Key() != scopeB.Key() || len(last.Sent()) != 1 {
		t.Errorf("move went to %s (%d frames)", last.Device.Key(), len(last.Sent()))
	}
}

func TestRefresh_SelectedDeviceMovedReconnects(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)
	old := h.dialer.Last()

	described := scopeA
	described.Description = "on the patio"
	h.backend.setDevices(described)
	if _, err := h.m.RefreshDevices(context.Background()); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}
	if got := h.dialer.Dialled(); len(got) != 1 {
		t.Fatalf("redialled without an address change: %v", got)
	}

	moved := described
	moved.Host = "10.0.0.77"
	h.backend.setDevices(moved)
	r, err := h.m.RefreshDevices(context.Background())
	if err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}
	if !r.Result.SelectionUpdated || r.Result.SelectionChanged {
		t.Fatalf("Refresh = %+v, want SelectionUpdated only", r.Result)
	}

	d, _ := h.m.Connection().Device()
	if d.Host != "10.0.0.77" || !h.m.Connection().IsConnected() {
		t.Errorf("connection on %s (%s), want 10.0.0.77", d.Address(), h.m.Connection().State())
	}
	if !old.Closed() {
		t.Error("channel to the old address still open")
	}
	if got := h.dialer.Dialled(); len(got) != 2 || h.dialer.Last().Device.Host != "10.0.0.77" {
		t.Errorf("dialled = %v, last host %s", got, h.dialer.Last().Device.Host)
	}
}

func TestGotoTimeout_IsInconclusiveWithNotice(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)

	_, err := h.m.GotoTarget(context.Background(), command.GotoRequest{Name: "M31", RA: 10.68, Dec: 41.27})
	if !errors.Is(err, command.ErrTimeout) {
		t.Fatalf("GotoTarget() error = %v, want ErrTimeout", err)
	}
	if !hasNotice(h.m, notice.KindTimeout) {
		t.Error("no timeout notice")
	}
	if hasNotice(h.m, notice.KindConnection) {
		t.Error("timeout reported as a connection problem")
	}
}

func TestCommand_RejectionNotice(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)
	h.dialer.Last().SetResponder(rejectAll)

	_, err := h.m.Move(context.Background(), command.North)
	if !command.IsRejected(err) {
		t.Fatalf("Move() error = %v, want rejection", err)
	}
	list := h.m.Notices().List(false)
	if len(list) == 0 || list[0].Kind != notice.KindRejection || list[0].Message != "Mount is parked" {
		t.Errorf("notices = %+v", list)
	}
}

func TestConnectionDrop_LeavesSessionUntouched(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)

	started, err := h.m.StartSession(session.Location{Name: "Back garden"}, []string{"seestar-s50"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	h.m.Sessions().SetNotes("seeing steady")
	before := h.m.Sessions().State()

	h.dialer.Last().Drop(errors.New("wifi dropped"))
	waitFor(t, "reconnecting", func() bool {
		return h.m.Connection().State() == connection.StateReconnecting
	})

	after := h.m.Sessions().State()
	if after.Active == nil || after.Active.ID != started.ID {
		t.Fatalf("active session changed: %+v", after.Active)
	}
	if !after.Running || after.Notes != before.Notes || after.Active.ElapsedSeconds != before.Active.ElapsedSeconds {
		t.Errorf("session state changed by connection drop: before %+v after %+v", before, after)
	}
	if !hasNotice(h.m, notice.KindConnection) {
		t.Error("no connection notice for the drop")
	}
}

func TestSetSceneryMode_Optimistic(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)
	conn := h.dialer.Last()

	conn.SetResponder(rejectAll)
	if err := h.m.SetSceneryMode(context.Background(), true); !command.IsRejected(err) {
		t.Fatalf("SetSceneryMode() error = %v, want rejection", err)
	}
	if h.m.SceneryMode() {
		t.Error("scenery flag kept after rejection")
	}

	conn.SetResponder(replyOK)
	if err := h.m.SetSceneryMode(context.Background(), true); err != nil {
		t.Fatalf("SetSceneryMode() error = %v", err)
	}
	if !h.m.SceneryMode() {
		t.Error("scenery flag not set after success")
	}

	h.m.SetSceneryMode(context.Background(), false) //nolint:errcheck // local only
	if h.m.SceneryMode() {
		t.Error("scenery flag not cleared")
	}

	// The caller gives up after the command went out: the device may have
	// switched, so the flag stays.
	conn.SetResponder(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.m.SetSceneryMode(ctx, true)
	if !errors.Is(err, command.ErrAbandoned) {
		t.Fatalf("SetSceneryMode() error = %v, want ErrAbandoned", err)
	}
	if !h.m.SceneryMode() {
		t.Error("scenery flag rolled back although the outcome is unknown")
	}
	if hasNotice(h.m, notice.KindTimeout) {
		t.Error("timeout notice raised for a caller that went away")
	}
}

func TestPlateSolve_ResolvedByStatusPush(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)

	job, err := h.m.PlateSolve(context.Background())
	if err != nil {
		t.Fatalf("PlateSolve() error = %v", err)
	}
	if job.ID != "job-42" || job.State != telemetry.JobPending {
		t.Errorf("job = %+v", job)
	}

	h.dialer.Last().Push([]byte(`{"type":"status","payload":{"battery":77,"plate_solve":{"job_id":"job-42","solved":true,"ra":0.712,"dec":41.27}}}`))
	waitFor(t, "plate solve result", func() bool {
		j, _ := h.m.Telemetry().Job("job-42")
		return j.State == telemetry.JobSolved
	})

	snap, ok := h.m.Telemetry().Latest(scopeA.Key())
	if !ok || snap.Battery == nil || *snap.Battery != 77 {
		t.Errorf("telemetry = %+v", snap)
	}
}

func TestSync(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)

	if err := h.m.Sync(context.Background(), 25, 0); !errors.Is(err, command.ErrInvalidArgument) {
		t.Errorf("Sync(out of range) error = %v", err)
	}
	if err := h.m.Sync(context.Background(), 5.5, -5.4); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(h.backend.synced) != 1 || h.backend.synced[0] != [2]float64{5.5, -5.4} {
		t.Errorf("synced = %v", h.backend.synced)
	}
}

func TestAddAndRemoveDevice(t *testing.T) {
	h := newHarness(t, nil, scopeA)
	h.boot(t)
	ctx := context.Background()

	manual := device.Device{Name: "Garage scope", Host: "192.168.1.50", Port: 4700}
	added, err := h.m.AddDevice(ctx, manual)
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if !added.IsPinned() {
		t.Error("manual device not pinned")
	}

	// Pinned devices survive refreshes that do not list them.
	if _, err := h.m.RefreshDevices(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.m.findDevice(added.Key()); !ok {
		t.Error("manual device dropped by refresh")
	}

	if err := h.m.RemoveDevice(ctx, scopeA.Key()); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}
	if _, ok := h.m.Catalog().Selected(); ok {
		t.Error("removed device still selected")
	}
	if h.m.Connection().State() != connection.StateDisconnected {
		t.Errorf("state = %s after removing selected device", h.m.Connection().State())
	}
	if len(h.backend.removed) != 1 || h.backend.removed[0] != scopeA.Key() {
		t.Errorf("backend removed = %v", h.backend.removed)
	}
	if err := h.m.RemoveDevice(ctx, "sn-missing"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("RemoveDevice(missing) error = %v", err)
	}
}

func TestReconnect(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.m.Reconnect(context.Background()); !errors.Is(err, ErrNoDeviceSelected) {
		t.Errorf("Reconnect() with no selection error = %v", err)
	}

	h.backend.setDevices(scopeA)
	h.boot(t)
	gen := h.m.Connection().Generation()
	if err := h.m.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if h.m.Connection().Generation() <= gen || len(h.dialer.Conns()) != 2 || !h.dialer.Conns()[0].Closed() {
		t.Error("Reconnect() did not replace the connection")
	}
}

func TestUIStateAndObservationCapture(t *testing.T) {
	repo := store.NewMemoryRepository()
	h := newHarness(t, repo, scopeA)
	h.boot(t)

	h.m.SetUIValue(ScopeCamera, "exposure_ms", 10000)
	h.m.SetUIValue(ScopeCamera, "last_capture", "2026-03-14T21:00:00Z")

	h.m.Recorder().SetTarget(&observation.Target{Name: "M31", RA: 0.712, Dec: 41.27})
	entry, ok := h.m.SaveObservation()
	if !ok || entry.Settings["exposure_ms"] != 10000 {
		t.Errorf("entry = %+v, %v", entry, ok)
	}
	if err := h.m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	next := newHarness(t, repo, scopeA)
	next.boot(t)

	cam := next.m.UIState(ScopeCamera)
	if _, ok := cam["last_capture"].(time.Time); !ok {
		t.Errorf("last_capture = %T, want time.Time", cam["last_capture"])
	}
	if cam["exposure_ms"] != float64(10000) {
		t.Errorf("exposure_ms = %v", cam["exposure_ms"])
	}
	if got := next.m.Recorder().Entries(); len(got) != 1 || got[0].ID != entry.ID {
		t.Errorf("restored observations = %+v", got)
	}
}

func TestBoot_MalformedStateDiscarded(t *testing.T) {
	repo := store.NewMemoryRepository()
	ctx := context.Background()
	repo.Put(ctx, store.NamespaceSession, session.KeyCurrent, []byte(`{not json`))  //nolint:errcheck // memory repo
	repo.Put(ctx, store.NamespaceObservation, observation.KeyLog, []byte(`"oops"`)) //nolint:errcheck // memory repo

	h := newHarness(t, repo, scopeA)
	h.boot(t)

	if st := h.m.Sessions().State(); st.Active != nil {
		t.Errorf("active session from malformed data: %+v", st.Active)
	}
	if n := len(h.m.Recorder().Entries()); n != 0 {
		t.Errorf("observations = %d", n)
	}
	if !hasNotice(h.m, notice.KindValidation) {
		t.Error("no validation notice")
	}
}

func TestPersistFailureRaisesNotice(t *testing.T) {
	repo := store.NewMemoryRepository()
	h := newHarness(t, repo, scopeA)
	h.boot(t)

	repo.SetFailWrites(errors.New("disk full"))
	h.m.SetUIValue("overlay", "grid", true)
	if err := h.m.mirror.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !hasNotice(h.m, notice.KindPersistence) {
		t.Error("no persistence notice")
	}
	if h.m.UIState("overlay")["grid"] != true {
		t.Error("in-memory state lost after write failure")
	}
}
