package channel

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type tags on the wire.
const (
	TypeCommand  = "command"
	TypeResponse = "response"
	TypeStatus   = "status"
	TypeError    = "error"
)

// Request is an outbound command.
type Request struct {
	ID      string
	Command string
	Payload any
}

type commandEnvelope struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Command string `json:"command"`
	Payload any    `json:"payload,omitempty"`
}

// Encode serialises a request as a command envelope.
func Encode(req Request) ([]byte, error) {
	if req.ID == "" || req.Command == "" {
		return nil, fmt.Errorf("%w: request needs id and command", ErrMalformed)
	}
	return json.Marshal(commandEnvelope{
		Type:    TypeCommand,
		ID:      req.ID,
		Command: req.Command,
		Payload: req.Payload,
	})
}

// Message is an inbound frame: *Response, *StatusPush or *ErrorMessage.
type Message interface {
	messageType() string
}

// ErrorBody is a device-reported error. On the wire it is either an object
// with code and message or a bare string.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both the object and the bare string form.
func (e *ErrorBody) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Code = ""
		e.Message = s
		return nil
	}
	type plain ErrorBody
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ErrorBody(p)
	return nil
}

// Response answers the command with the same ID.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// StatusPush is unsolicited telemetry.
type StatusPush struct {
	Payload Status `json:"payload"`
}

// ErrorMessage is a device error, optionally tied to a command ID.
type ErrorMessage struct {
	ID    string    `json:"id,omitempty"`
	Error ErrorBody `json:"error"`
}

func (*Response) messageType() string     { return TypeResponse }
func (*StatusPush) messageType() string   { return TypeStatus }
func (*ErrorMessage) messageType() string { return TypeError }

// Status is the telemetry carried by a status push. Absent fields are nil.
type Status struct {
	Battery       *float64          `json:"battery,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	FreeStorageMB *float64          `json:"free_storage_mb,omitempty"`
	RA            *float64          `json:"ra,omitempty"`
	Dec           *float64          `json:"dec,omitempty"`
	PlateSolve    *PlateSolveResult `json:"plate_solve,omitempty"`
	Timestamp     *time.Time        `json:"timestamp,omitempty"`
}

// PlateSolveResult reports the outcome of an asynchronous plate-solve job.
type PlateSolveResult struct {
	JobID  string  `json:"job_id"`
	Solved bool    `json:"solved"`
	RA     float64 `json:"ra,omitempty"`
	Dec    float64 `json:"dec,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Decode parses an inbound frame into its concrete message type.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case TypeResponse:
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("%w: response: %v", ErrMalformed, err)
		}
		if r.ID == "" {
			return nil, fmt.Errorf("%w: response without id", ErrMalformed)
		}
		return &r, nil

	case TypeStatus:
		var s StatusPush
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: status: %v", ErrMalformed, err)
		}
		return &s, nil

	case TypeError:
		var e ErrorMessage
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: error: %v", ErrMalformed, err)
		}
		return &e, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}
