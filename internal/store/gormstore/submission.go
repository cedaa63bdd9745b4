package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

// SubmissionStore implements submission.Store using GORM.
type SubmissionStore struct {
	db *gorm.DB
}

// NewSubmissionStore returns a SubmissionStore backed by gorm.DB.
func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (store *SubmissionStore) InsertSubmission(ctx context.Context, record submission.Submission) error {
	model := WasteSubmission{
		SubmissionID:  record.SubmissionID.String(),
		AccountID:     record.AccountID.String(),
		BoothID:       record.BoothID.String(),
		WasteType:     record.WasteType.String(),
		QuantityGrams: record.QuantityGrams.Int64(),
		PointsEarned:  record.PointsEarned.Int64(),
		Status:        record.Status.String(),
		VerifiedBy:    record.VerifiedBy,
		RejectReason:  record.RejectReason,
		CreatedAt:     time.Unix(record.CreatedUnixUTC, 0).UTC(),
	}
	if record.VerifiedAtUnixUTC != 0 {
		verifiedAt := time.Unix(record.VerifiedAtUnixUTC, 0).UTC()
		model.VerifiedAt = &verifiedAt
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (store *SubmissionStore) GetSubmission(ctx context.Context, submissionID submission.SubmissionID) (submission.Submission, error) {
	var model WasteSubmission
	err := store.db.WithContext(ctx).
		Where("submission_id = ?", submissionID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return submission.Submission{}, fmt.Errorf("%w: %s", submission.ErrUnknownSubmission, submissionID)
		}
		return submission.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return mapSubmission(model)
}

func (store *SubmissionStore) TransitionStatus(ctx context.Context, submissionID submission.SubmissionID, from, to submission.Status, update submission.StatusUpdate) error {
	values := map[string]interface{}{
		"status":        to.String(),
		"verified_by":   update.VerifiedBy,
		"points_earned": update.PointsEarned.Int64(),
		"reject_reason": update.RejectReason,
	}
	if update.VerifiedAtUnixUTC != 0 {
		values["verified_at"] = time.Unix(update.VerifiedAtUnixUTC, 0).UTC()
	} else {
		values["verified_at"] = nil
	}
	result := store.db.WithContext(ctx).
		Model(&WasteSubmission{}).
		Where("submission_id = ? AND status = ?", submissionID.String(), from.String()).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("transition submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.transitionMiss(ctx, submissionID)
	}
	return nil
}

func (store *SubmissionStore) CountApproved(ctx context.Context, accountID ledger.AccountID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&WasteSubmission{}).
		Where("account_id = ? AND status = ?", accountID.String(), submission.StatusApproved.String()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count approved submissions: %w", err)
	}
	return count, nil
}

func (store *SubmissionStore) transitionMiss(ctx context.Context, submissionID submission.SubmissionID) error {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&WasteSubmission{}).
		Where("submission_id = ?", submissionID.String()).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("lookup submission: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", submission.ErrUnknownSubmission, submissionID)
	}
	return fmt.Errorf("%w: %s", submission.ErrInvalidStateTransition, submissionID)
}

func mapSubmission(model WasteSubmission) (submission.Submission, error) {
	submissionID, err := submission.NewSubmissionID(model.SubmissionID)
	if err != nil {
		return submission.Submission{}, err
	}
	accountID, err := ledger.NewAccountID(model.AccountID)
	if err != nil {
		return submission.Submission{}, err
	}
	boothID, err := capacity.NewBoothID(model.BoothID)
	if err != nil {
		return submission.Submission{}, err
	}
	wasteType, err := submission.NewWasteType(model.WasteType)
	if err != nil {
		return submission.Submission{}, err
	}
	status, err := submission.ParseStatus(model.Status)
	if err != nil {
		return submission.Submission{}, err
	}
	record := submission.Submission{
		SubmissionID:   submissionID,
		AccountID:      accountID,
		BoothID:        boothID,
		WasteType:      wasteType,
		QuantityGrams:  capacity.Grams(model.QuantityGrams),
		PointsEarned:   ledger.Points(model.PointsEarned),
		Status:         status,
		VerifiedBy:     model.VerifiedBy,
		RejectReason:   model.RejectReason,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}
	if model.VerifiedAt != nil {
		record.VerifiedAtUnixUTC = model.VerifiedAt.Unix()
	}
	return record, nil
}
