package inventory

import (
	"context"
	"fmt"
	"strings"
)

// Quantity is a positive stock amount.
type Quantity int64

// RewardID identifies a reward and its stock pool.
type RewardID struct {
	value string
}

// ReservationID identifies a stock reservation.
type ReservationID struct {
	value string
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Pool is the stock triple for one reward. Invariant:
// Available + Reserved <= Total, all non-negative. Version guards the
// read-modify-write cycle on the counters.
type Pool struct {
	RewardID  RewardID
	Total     int64
	Available int64
	Reserved  int64
	Redeemed  int64
	Version   int64
}

// Reservation is a temporary hold on reward stock. Unconfirmed reservations
// past ExpiresAtUnixUTC are cancelled by the sweep.
type Reservation struct {
	ReservationID  ReservationID
	RewardID       RewardID
	AccountID      string
	Quantity       Quantity
	Status         ReservationStatus
	ExpiresAtUnixUTC int64
	CreatedUnixUTC int64
}

// PoolUpdate carries the counter values written under the version guard.
type PoolUpdate struct {
	Available int64
	Reserved  int64
	Redeemed  int64
}

// NewRewardID validates and normalizes a reward id.
func NewRewardID(raw string) (RewardID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RewardID{}, fmt.Errorf("%w: empty value", ErrInvalidRewardID)
	}
	return RewardID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RewardID) String() string {
	return id.value
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReservationID{}, fmt.Errorf("%w: empty value", ErrInvalidReservationID)
	}
	return ReservationID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// NewQuantity validates a strictly positive stock amount.
func NewQuantity(raw int64) (Quantity, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return Quantity(raw), nil
}

// Int64 returns the raw amount.
func (quantity Quantity) Int64() int64 {
	return int64(quantity)
}

// ParseReservationStatus validates a stored reservation status.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case ReservationActive, ReservationConfirmed, ReservationCancelled:
		return ReservationStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
}

// String returns the status name.
func (status ReservationStatus) String() string {
	return string(status)
}

// Store is the persistence contract used by Service. UpdatePool must be a
// compare-and-swap on the pool version reporting a miss as
// ErrConcurrencyConflict; UpdateReservationStatus must condition on the
// current status and report a miss as ErrUnknownReservation.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetPool(ctx context.Context, rewardID RewardID) (Pool, error)
	CreatePool(ctx context.Context, pool Pool) error
	UpdatePool(ctx context.Context, rewardID RewardID, update PoolUpdate, expectedVersion int64) error
	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from, to ReservationStatus) error
	ListExpiredActive(ctx context.Context, nowUnixUTC int64, limit int) ([]Reservation, error)
}
