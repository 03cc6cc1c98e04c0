package channel

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	data, err := Encode(Request{ID: "c1", Command: "move", Payload: map[string]string{"direction": "north"}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if got["type"] != "command" || got["id"] != "c1" || got["command"] != "move" {
		t.Errorf("envelope = %v", got)
	}

	if _, err := Encode(Request{Command: "park"}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Encode() without id error = %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		check   func(t *testing.T, m Message)
		wantErr error
	}{
		{
			name: "response ok",
			in:   `{"type":"response","id":"c1","ok":true,"result":{"slewing":true}}`,
			check: func(t *testing.T, m Message) {
				r, ok := m.(*Response)
				if !ok || r.ID != "c1" || !r.OK || string(r.Result) != `{"slewing":true}` {
					t.Errorf("got %#v", m)
				}
			},
		},
		{
			name: "response with string error",
			in:   `{"type":"response","id":"c2","ok":false,"error":"below horizon"}`,
			check: func(t *testing.T, m Message) {
				r := m.(*Response)
				if r.OK || r.Error == nil || r.Error.Message != "below horizon" || r.Error.Code != "" {
					t.Errorf("got %#v", r)
				}
			},
		},
		{
			name: "response with object error",
			in:   `{"type":"response","id":"c3","ok":false,"error":{"code":"parked","message":"mount is parked"}}`,
			check: func(t *testing.T, m Message) {
				r := m.(*Response)
				if r.Error == nil || r.Error.Code != "parked" || r.Error.Message != "mount is parked" {
					t.Errorf("got %#v", r.Error)
				}
			},
		},
		{
			name: "status push",
			in:   `{"type":"status","payload":{"battery":81.5,"temperature":4.2,"ra":10.68,"dec":41.27,"plate_solve":{"job_id":"j1","solved":true,"ra":10.7,"dec":41.3}}}`,
			check: func(t *testing.T, m Message) {
				s, ok := m.(*StatusPush)
				if !ok {
					t.Fatalf("got %T", m)
				}
				if s.Payload.Battery == nil || *s.Payload.Battery != 81.5 {
					t.Errorf("battery = %v", s.Payload.Battery)
				}
				if s.Payload.FreeStorageMB != nil {
					t.Error("absent field should stay nil")
				}
				if s.Payload.PlateSolve == nil || s.Payload.PlateSolve.JobID != "j1" {
					t.Errorf("plate_solve = %v", s.Payload.PlateSolve)
				}
			},
		},
		{
			name: "error without id",
			in:   `{"type":"error","error":"overheating"}`,
			check: func(t *testing.T, m Message) {
				e, ok := m.(*ErrorMessage)
				if !ok || e.ID != "" || e.Error.Message != "overheating" {
					t.Errorf("got %#v", m)
				}
			},
		},
		{name: "not json", in: `{`, wantErr: ErrMalformed},
		{name: "missing type", in: `{"id":"x"}`, wantErr: ErrMalformed},
		{name: "response without id", in: `{"type":"response","ok":true}`, wantErr: ErrMalformed},
		{name: "unknown type", in: `{"type":"hello"}`, wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			tt.check(t, m)
		})
	}
}
