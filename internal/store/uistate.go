package store

import (
	"time"
)

// UIState is a flat bag of last-known control values for one UI scope
// (camera, overlay, pip...).
type UIState map[string]any

// Clone returns a shallow copy of the bag.
func (u UIState) Clone() UIState {
	out := make(UIState, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Revive converts RFC 3339 timestamp strings back into time.Time values,
// recursing into nested maps and slices. JSON has no date type, so dates
// written by the UI come back as strings.
func (u UIState) Revive() UIState {
	if u == nil {
		return UIState{}
	}
	out := make(UIState, len(u))
	for k, v := range u {
		out[k] = revive(v)
	}
	return out
}

func revive(v any) any {
	switch val := v.(type) {
	case string:
		if t, ok := parseTimestamp(val); ok {
			return t
		}
		return val
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = revive(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = revive(inner)
		}
		return s
	default:
		return v
	}
}

// parseTimestamp accepts full RFC 3339 date-times only. Bare dates and
// numbers stay as they are.
func parseTimestamp(s string) (time.Time, bool) {
	const minLen = len("2006-01-02T15:04:05Z")
	if len(s) < minLen || s[4] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
