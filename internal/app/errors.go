package service

import "errors"

// Sentinel kinds for service errors. Validation failures wrap
// ranking.ErrInvalidInput so callers match one kind for bad input.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("update queue full")
)
