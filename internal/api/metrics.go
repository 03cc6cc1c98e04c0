package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Connection    ConnMetrics      `json:"connection"`
	Devices       DeviceMetrics    `json:"devices"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// ConnMetrics describes the control channel.
type ConnMetrics struct {
	State      string `json:"state"`
	DeviceKey  string `json:"device_key,omitempty"`
	Generation uint64 `json:"generation"`
}

// DeviceMetrics counts known devices.
type DeviceMetrics struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByMethod map[string]int `json:"by_discovery_method"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	conn := s.core.ConnectionStatus()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Connection: ConnMetrics{
			State:      conn.State,
			DeviceKey:  conn.DeviceKey,
			Generation: conn.Generation,
		},
		Devices: DeviceMetrics{
			ByStatus: make(map[string]int),
			ByMethod: make(map[string]int),
		},
	}
	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	for _, d := range s.core.DeviceList().Devices {
		metrics.Devices.Total++
		metrics.Devices.ByStatus[string(d.DerivedStatus())]++
		metrics.Devices.ByMethod[string(d.DiscoveryMethod)]++
	}

	if s.db != nil {
		st := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
