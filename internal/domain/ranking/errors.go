package ranking

import "errors"

// Sentinel kinds for ranking errors. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already registered")
	ErrInvalidInput = errors.New("invalid input")
)
