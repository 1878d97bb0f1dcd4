package mirror

import "errors"

// ErrPublish wraps every Redis failure.
var ErrPublish = errors.New("mirror publish failed")
