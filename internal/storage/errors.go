package storage

import "errors"

// Errors shared by the event stores (snapshots, trades) and the feature store.
// Recorded events and finished runs are write-once.
var (
	// ErrNotFound is returned when no feature run has the requested id.
	ErrNotFound = errors.New("feature run not found")

	// ErrDuplicateKey is returned when an event with the same
	// (timestamp, seq, instrument) or a run with the same id is already stored.
	ErrDuplicateKey = errors.New("already stored: events and runs are write-once")

	// ErrInvalidInput is returned for a nil event, an event of the wrong kind
	// for the store, or a run without an id.
	ErrInvalidInput = errors.New("invalid event or run")
)
