package lookup

import "errors"

var (
	// ErrQueueStopped is returned by Enqueue after Stop, and resolves every
	// item still waiting when the queue stops.
	ErrQueueStopped = errors.New("lookup: queue stopped")

	// ErrInvalidItem marks a structurally invalid kind, priority or payload.
	ErrInvalidItem = errors.New("lookup: invalid item")

	// ErrWorkerPanic fails an item whose processing panicked.
	ErrWorkerPanic = errors.New("lookup: panic while processing item")
)
