package store

import "errors"

var (
	// ErrNotFound indicates no Result is stored under the instance ID.
	ErrNotFound = errors.New("store: result not found")

	// ErrExists indicates a Result for the instance ID was already written.
	// Results are immutable once persisted.
	ErrExists = errors.New("store: result already exists")

	// ErrInvalidID indicates an instance ID that cannot name a record.
	ErrInvalidID = errors.New("store: invalid instance id")
)
