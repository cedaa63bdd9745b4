package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
)

// CapacityStore implements capacity.Store using GORM.
type CapacityStore struct {
	db *gorm.DB
}

// NewCapacityStore returns a CapacityStore backed by gorm.DB.
func NewCapacityStore(db *gorm.DB) *CapacityStore {
	return &CapacityStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *CapacityStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore capacity.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &CapacityStore{db: transaction})
	})
}

func (store *CapacityStore) GetWindow(ctx context.Context, boothID capacity.BoothID) (capacity.Window, bool, error) {
	var model BoothWindow
	err := store.db.WithContext(ctx).
		Where("booth_id = ?", boothID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return capacity.Window{}, false, nil
	}
	if err != nil {
		return capacity.Window{}, false, fmt.Errorf("get window: %w", err)
	}
	window, err := mapWindow(model)
	if err != nil {
		return capacity.Window{}, false, err
	}
	return window, true, nil
}

func (store *CapacityStore) UpsertWindow(ctx context.Context, window capacity.Window, expectedVersion int64) error {
	if expectedVersion == 0 {
		model := BoothWindow{
			BoothID:     window.BoothID.String(),
			DateKey:     window.DateKey,
			WeightGrams: window.WeightGrams.Int64(),
			Submissions: window.Submissions,
			Version:     1,
		}
		err := store.db.WithContext(ctx).Create(&model).Error
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: window %s", capacity.ErrConcurrencyConflict, window.BoothID)
		}
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		return nil
	}
	result := store.db.WithContext(ctx).
		Model(&BoothWindow{}).
		Where("booth_id = ? AND version = ?", window.BoothID.String(), expectedVersion).
		Updates(map[string]interface{}{
			"date_key":     window.DateKey,
			"weight_grams": window.WeightGrams.Int64(),
			"submissions":  window.Submissions,
			"version":      expectedVersion + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("update window: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: window %s", capacity.ErrConcurrencyConflict, window.BoothID)
	}
	return nil
}

func mapWindow(model BoothWindow) (capacity.Window, error) {
	boothID, err := capacity.NewBoothID(model.BoothID)
	if err != nil {
		return capacity.Window{}, err
	}
	return capacity.Window{
		BoothID:     boothID,
		DateKey:     model.DateKey,
		WeightGrams: capacity.Grams(model.WeightGrams),
		Submissions: model.Submissions,
		Version:     model.Version,
	}, nil
}
