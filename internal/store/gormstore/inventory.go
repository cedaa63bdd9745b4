package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
)

// InventoryStore implements inventory.Store using GORM.
type InventoryStore struct {
	db *gorm.DB
}

// NewInventoryStore returns an InventoryStore backed by gorm.DB.
func NewInventoryStore(db *gorm.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *InventoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore inventory.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &InventoryStore{db: transaction})
	})
}

func (store *InventoryStore) GetPool(ctx context.Context, rewardID inventory.RewardID) (inventory.Pool, error) {
	var model RewardPool
	err := store.db.WithContext(ctx).
		Where("reward_id = ?", rewardID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return inventory.Pool{}, fmt.Errorf("%w: %s", inventory.ErrUnknownReward, rewardID)
		}
		return inventory.Pool{}, fmt.Errorf("get pool: %w", err)
	}
	return mapPool(model)
}

func (store *InventoryStore) CreatePool(ctx context.Context, pool inventory.Pool) error {
	model := RewardPool{
		RewardID:  pool.RewardID.String(),
		Total:     pool.Total,
		Available: pool.Available,
		Reserved:  pool.Reserved,
		Redeemed:  pool.Redeemed,
		Version:   pool.Version,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", inventory.ErrPoolExists, pool.RewardID)
	}
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	return nil
}

func (store *InventoryStore) UpdatePool(ctx context.Context, rewardID inventory.RewardID, update inventory.PoolUpdate, expectedVersion int64) error {
	result := store.db.WithContext(ctx).
		Model(&RewardPool{}).
		Where("reward_id = ? AND version = ?", rewardID.String(), expectedVersion).
		Updates(map[string]interface{}{
			"available": update.Available,
			"reserved":  update.Reserved,
			"redeemed":  update.Redeemed,
			"version":   expectedVersion + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("update pool: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: pool %s", inventory.ErrConcurrencyConflict, rewardID)
	}
	return nil
}

func (store *InventoryStore) InsertReservation(ctx context.Context, reservation inventory.Reservation) error {
	model := RewardReservation{
		ReservationID: reservation.ReservationID.String(),
		RewardID:      reservation.RewardID.String(),
		AccountID:     reservation.AccountID,
		Quantity:      reservation.Quantity.Int64(),
		Status:        reservation.Status.String(),
		ExpiresAt:     time.Unix(reservation.ExpiresAtUnixUTC, 0).UTC(),
		CreatedAt:     time.Unix(reservation.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (store *InventoryStore) GetReservation(ctx context.Context, reservationID inventory.ReservationID) (inventory.Reservation, error) {
	var model RewardReservation
	err := store.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return inventory.Reservation{}, fmt.Errorf("%w: %s", inventory.ErrUnknownReservation, reservationID)
		}
		return inventory.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return mapReservation(model)
}

func (store *InventoryStore) UpdateReservationStatus(ctx context.Context, reservationID inventory.ReservationID, from, to inventory.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&RewardReservation{}).
		Where("reservation_id = ? AND status = ?", reservationID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return fmt.Errorf("update reservation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrUnknownReservation, reservationID)
	}
	return nil
}

func (store *InventoryStore) ListExpiredActive(ctx context.Context, nowUnixUTC int64, limit int) ([]inventory.Reservation, error) {
	var rows []RewardReservation
	err := store.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", inventory.ReservationActive.String(), time.Unix(nowUnixUTC, 0).UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	reservations := make([]inventory.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func mapPool(model RewardPool) (inventory.Pool, error) {
	rewardID, err := inventory.NewRewardID(model.RewardID)
	if err != nil {
		return inventory.Pool{}, err
	}
	return inventory.Pool{
		RewardID:  rewardID,
		Total:     model.Total,
		Available: model.Available,
		Reserved:  model.Reserved,
		Redeemed:  model.Redeemed,
		Version:   model.Version,
	}, nil
}

func mapReservation(model RewardReservation) (inventory.Reservation, error) {
	reservationID, err := inventory.NewReservationID(model.ReservationID)
	if err != nil {
		return inventory.Reservation{}, err
	}
	rewardID, err := inventory.NewRewardID(model.RewardID)
	if err != nil {
		return inventory.Reservation{}, err
	}
	quantity, err := inventory.NewQuantity(model.Quantity)
	if err != nil {
		return inventory.Reservation{}, err
	}
	status, err := inventory.ParseReservationStatus(model.Status)
	if err != nil {
		return inventory.Reservation{}, err
	}
	return inventory.Reservation{
		ReservationID:    reservationID,
		RewardID:         rewardID,
		AccountID:        model.AccountID,
		Quantity:         quantity,
		Status:           status,
		ExpiresAtUnixUTC: model.ExpiresAt.Unix(),
		CreatedUnixUTC:   model.CreatedAt.Unix(),
	}, nil
}
