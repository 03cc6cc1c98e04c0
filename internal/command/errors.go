package command

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDeviceSelected is returned when no device is selected.
	ErrNoDeviceSelected = errors.New("command: no device selected")

	// ErrNotConnected is returned when the selected device is not connected.
	ErrNotConnected = errors.New("command: device not connected")

	// ErrTimeout is returned when no response arrived in time. The outcome
	// is unknown; see IsInconclusive.
	ErrTimeout = errors.New("command: timed out")

	// ErrConnectionLost is returned when the channel dropped, or the device
	// was switched, while the command was pending.
	ErrConnectionLost = errors.New("command: connection lost")

	// ErrSendFailed is returned when the command could not be written.
	ErrSendFailed = errors.New("command: send failed")

	// ErrAbandoned is returned when the caller's context ended after the
	// command was written. Like ErrTimeout the outcome is unknown.
	ErrAbandoned = errors.New("command: caller stopped waiting")

	// ErrInvalidArgument is returned for out-of-range command parameters.
	ErrInvalidArgument = errors.New("command: invalid argument")
)

// RejectedError is a refusal reported by the device.
type RejectedError struct {
	Command string
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected by device (%s): %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rejected by device: %s", e.Command, e.Message)
}

// IsInconclusive reports whether err leaves the command's effect unknown.
func IsInconclusive(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrAbandoned)
}

// IsRejected reports whether err is a device refusal.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}
