package command

import (
	"encoding/json"
	"time"
)

// Wire command names.
const (
	KindMove    = "move"
	KindFocus   = "focus"
	KindPark    = "park"
	KindGoto    = "goto"
	KindScenery = "scenery_mode"
)

// Direction is a manual slew direction.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
	Stop  Direction = "stop"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case North, South, East, West, Stop:
		return true
	}
	return false
}

// FocusDirection moves the focuser.
type FocusDirection string

const (
	FocusIn  FocusDirection = "in"
	FocusOut FocusDirection = "out"
)

// GotoRequest slews to a target. RA is in hours, Dec in degrees.
type GotoRequest struct {
	Name         string   `json:"target_name"`
	RA           float64  `json:"ra"`
	Dec          float64  `json:"dec"`
	StartImaging bool     `json:"start_imaging,omitempty"`
	Type         string   `json:"type,omitempty"`
	Magnitude    *float64 `json:"magnitude,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// Result is a successful response.
type Result struct {
	ID       string          `json:"id"`
	Command  string          `json:"command"`
	Data     json.RawMessage `json:"data,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// pending is a command waiting for its response.
type pending struct {
	id         string
	kind       string
	payload    any
	dedupKey   string
	issuedAt   time.Time
	timeoutAt  time.Time
	generation uint64

	// waiters and timer are guarded by Dispatcher.mu.
	waiters int
	timer   *time.Timer

	done   chan struct{}
	result *Result
	err    error
}

// finish records the outcome and releases every waiter. Called once, by
// whoever removed p from the pending set.
func (p *pending) finish(res *Result, err error) {
	p.result = res
	p.err = err
	close(p.done)
}
