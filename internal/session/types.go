package session

import "time"

// Location is where a session is observed from.
type Location struct {
	Name      string   `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Bortle    *int     `json:"bortle,omitempty"`
}

// Conditions describes the sky during a session.
type Conditions struct {
	Seeing       *int     `json:"seeing,omitempty"`       // 1-5
	Transparency *int     `json:"transparency,omitempty"` // 1-5
	Temperature  *float64 `json:"temperature,omitempty"`  // °C
	Humidity     *float64 `json:"humidity,omitempty"`     // %
	Moon         string   `json:"moon,omitempty"`
	Wind         string   `json:"wind,omitempty"`
}

// Session is an observing session. EndTime is set once it has ended.
type Session struct {
	ID             string     `json:"id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Location       Location   `json:"location"`
	Equipment      []string   `json:"equipment"`
	Notes          string     `json:"notes"`
	Conditions     Conditions `json:"conditions"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
}

// EquipmentUsage counts how often and how long a piece of equipment was used.
type EquipmentUsage struct {
	ID       string     `json:"id"`
	Uses     int        `json:"uses"`
	Hours    float64    `json:"hours"`
	LastUsed *time.Time `json:"last_used,omitempty"`
}

// State is a snapshot of the controller.
type State struct {
	Active     *Session                  `json:"active,omitempty"`
	Running    bool                      `json:"running"`
	Notes      string                    `json:"notes"`
	Location   Location                  `json:"location"`
	Equipment  []string                  `json:"equipment"`
	Conditions Conditions                `json:"conditions"`
	Past       []Session                 `json:"past"`
	Usage      map[string]EquipmentUsage `json:"equipment_usage"`
}

// Current is the persisted form of the in-progress state.
type Current struct {
	Active     *Session   `json:"active,omitempty"`
	Paused     bool       `json:"paused"`
	Notes      string     `json:"notes"`
	Location   Location   `json:"location"`
	Equipment  []string   `json:"equipment"`
	Conditions Conditions `json:"conditions"`
}

// Snapshot is everything Restore needs to rebuild a controller. It is
// assembled from the store at boot.
type Snapshot struct {
	Current Current
	Past    []Session
	Usage   map[string]EquipmentUsage
}
