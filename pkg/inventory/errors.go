package inventory

import "errors"

// Domain-level error values returned by the inventory service.
var (
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrUnknownReward            = errors.New("unknown reward")
	ErrUnknownReservation       = errors.New("unknown reservation")
	ErrPoolExists               = errors.New("pool already exists")
	ErrConcurrencyConflict      = errors.New("concurrency conflict")
	ErrInvalidRewardID          = errors.New("invalid reward id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidPool              = errors.New("invalid pool")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)
