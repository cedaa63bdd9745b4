package capacity

import "errors"

// Domain-level error values returned by the capacity service.
var (
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrUnknownBooth         = errors.New("unknown booth")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")
	ErrInvalidBoothID       = errors.New("invalid booth id")
	ErrInvalidWeight        = errors.New("invalid weight")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
