package core

import "errors"

var (
	// ErrNoDeviceSelected is returned by device operations with no selection.
	ErrNoDeviceSelected = errors.New("core: no device selected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("core: manager closed")
)
