package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	operationReserve = "reserve"
	operationConfirm = "confirm"
	operationCancel  = "cancel"
	operationSweep   = "sweep"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	defaultReservationTTL = 15 * time.Minute
	defaultMaxAttempts    = 3
	defaultRetryBackoff   = 25 * time.Millisecond
	sweepBatchSize        = 100
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing inventory operation.
type OperationLog struct {
	Operation     string
	RewardID      RewardID
	ReservationID ReservationID
	Quantity      Quantity
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithReservationTTL overrides how long an unconfirmed reservation holds stock.
func WithReservationTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.ttl = ttl
		}
	}
}

// WithConflictRetry bounds the internal retry loop for version conflicts.
func WithConflictRetry(maxAttempts int, backoff time.Duration) ServiceOption {
	return func(service *Service) {
		if maxAttempts > 0 {
			service.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			service.backoff = backoff
		}
	}
}

// Service guards the per-reward stock triple. Every stock movement follows the
// reserve -> confirm/cancel protocol; the availability check and the counter
// write share one version-guarded transaction so concurrent reservations
// cannot oversell.
type Service struct {
	store       Store
	nowFn       func() int64
	logger      OperationLogger
	ttl         time.Duration
	maxAttempts int
	backoff     time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:       store,
		nowFn:       now,
		ttl:         defaultReservationTTL,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreatePool registers stock for a reward with available = total.
func (service *Service) CreatePool(ctx context.Context, rewardID RewardID, total int64) error {
	if total < 0 {
		return fmt.Errorf("%w: total must not be negative", ErrInvalidPool)
	}
	return service.store.CreatePool(ctx, Pool{
		RewardID:  rewardID,
		Total:     total,
		Available: total,
		Version:   1,
	})
}

// Reserve moves quantity from available to reserved and records the hold.
// Fails with ErrInsufficientStock when not enough stock is available.
func (service *Service) Reserve(ctx context.Context, rewardID RewardID, accountID string, quantity Quantity) (Reservation, error) {
	var reservation Reservation
	operationError := service.withConflictRetry(ctx, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			pool, err := txStore.GetPool(ctx, rewardID)
			if err != nil {
				return err
			}
			if pool.Available < quantity.Int64() {
				return ErrInsufficientStock
			}
			update := PoolUpdate{
				Available: pool.Available - quantity.Int64(),
				Reserved:  pool.Reserved + quantity.Int64(),
				Redeemed:  pool.Redeemed,
			}
			if err := txStore.UpdatePool(ctx, rewardID, update, pool.Version); err != nil {
				return err
			}
			reservationID, err := NewReservationID(uuid.NewString())
			if err != nil {
				return err
			}
			nowUnixUTC := service.nowFn()
			reservation = Reservation{
				ReservationID:    reservationID,
				RewardID:         rewardID,
				AccountID:        accountID,
				Quantity:         quantity,
				Status:           ReservationActive,
				ExpiresAtUnixUTC: nowUnixUTC + int64(service.ttl/time.Second),
				CreatedUnixUTC:   nowUnixUTC,
			}
			return txStore.InsertReservation(ctx, reservation)
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationReserve,
		RewardID:      rewardID,
		ReservationID: reservation.ReservationID,
		Quantity:      quantity,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return reservation, nil
}

// Confirm consumes a reservation permanently: reserved stock becomes redeemed.
// A reservation that is missing, already confirmed, or already cancelled fails
// with ErrUnknownReservation.
func (service *Service) Confirm(ctx context.Context, reservationID ReservationID) error {
	operationError := service.settle(ctx, reservationID, ReservationConfirmed)
	service.logOperation(ctx, OperationLog{
		Operation:     operationConfirm,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

// Cancel releases a reservation: reserved stock returns to available.
func (service *Service) Cancel(ctx context.Context, reservationID ReservationID) error {
	operationError := service.settle(ctx, reservationID, ReservationCancelled)
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

// Stock returns the current stock triple for a reward.
func (service *Service) Stock(ctx context.Context, rewardID RewardID) (Pool, error) {
	return service.store.GetPool(ctx, rewardID)
}

// SweepExpired cancels active reservations past their TTL so abandoned
// redemptions cannot starve stock. Returns how many were released.
func (service *Service) SweepExpired(ctx context.Context) (int, error) {
	swept := 0
	for {
		expired, err := service.store.ListExpiredActive(ctx, service.nowFn(), sweepBatchSize)
		if err != nil {
			return swept, err
		}
		if len(expired) == 0 {
			break
		}
		for _, reservation := range expired {
			err := service.settle(ctx, reservation.ReservationID, ReservationCancelled)
			if err != nil {
				// Lost the race to a concurrent confirm or cancel.
				if errors.Is(err, ErrUnknownReservation) {
					continue
				}
				return swept, err
			}
			swept++
		}
		if len(expired) < sweepBatchSize {
			break
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationSweep,
		Quantity:  Quantity(swept),
	})
	return swept, nil
}

func (service *Service) settle(ctx context.Context, reservationID ReservationID, to ReservationStatus) error {
	return service.withConflictRetry(ctx, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			reservation, err := txStore.GetReservation(ctx, reservationID)
			if err != nil {
				return err
			}
			if reservation.Status != ReservationActive {
				return fmt.Errorf("%w: reservation is %s", ErrUnknownReservation, reservation.Status)
			}
			if err := txStore.UpdateReservationStatus(ctx, reservationID, ReservationActive, to); err != nil {
				return err
			}
			pool, err := txStore.GetPool(ctx, reservation.RewardID)
			if err != nil {
				return err
			}
			if pool.Reserved < reservation.Quantity.Int64() {
				return fmt.Errorf("%w: reserved below reservation quantity", ErrInvalidPool)
			}
			update := PoolUpdate{
				Available: pool.Available,
				Reserved:  pool.Reserved - reservation.Quantity.Int64(),
				Redeemed:  pool.Redeemed,
			}
			if to == ReservationConfirmed {
				update.Redeemed += reservation.Quantity.Int64()
			} else {
				update.Available += reservation.Quantity.Int64()
			}
			return txStore.UpdatePool(ctx, reservation.RewardID, update, pool.Version)
		})
	})
}

func (service *Service) withConflictRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= service.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrConcurrencyConflict) {
			return lastErr
		}
		if attempt == service.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(service.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
