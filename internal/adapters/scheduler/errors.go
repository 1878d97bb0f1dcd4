package scheduler

import "errors"

// ErrInvalidSchedule is returned for an unusable spec or job.
var ErrInvalidSchedule = errors.New("invalid schedule")
