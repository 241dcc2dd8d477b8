package ledger

import "errors"

var (
	// ErrNotConnected means the store has no database pool.
	ErrNotConnected = errors.New("ledger: not connected")
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrConflict means a uniqueness constraint was violated.
	ErrConflict = errors.New("ledger: already exists")
	// ErrInvalidInput means the caller supplied a rejected value.
	ErrInvalidInput = errors.New("ledger: invalid input")
)
