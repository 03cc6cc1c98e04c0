package store

import "errors"

var (
	// ErrNotFound is returned by a Repository when a key does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrMalformed is returned when a persisted value cannot be decoded.
	ErrMalformed = errors.New("store: malformed value")

	// ErrMirrorClosed is returned when writing to a closed Mirror.
	ErrMirrorClosed = errors.New("store: mirror closed")
)
