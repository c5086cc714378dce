package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrQueueClosed = errors.New("event queue closed")
	ErrQueueFull   = errors.New("event queue full")
)
