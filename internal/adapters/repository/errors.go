package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrClosed         = errors.New("store closed")
	ErrUnallocatedID  = errors.New("project id was not allocated")
	ErrUnknownBackend = errors.New("unknown store backend")
)
