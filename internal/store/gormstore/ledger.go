package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

const (
	errorOperationStore = "store"

	errorSubjectAccount = "account"
	errorSubjectEntry   = "entry"

	errorCodeDuplicate = "duplicate"
	errorCodeGet       = "get"
	errorCodeInsert    = "insert"
	errorCodeInvalid   = "invalid"
	errorCodeList      = "list"
	errorCodeLookup    = "lookup"
	errorCodeUpdate    = "update"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore returns a LedgerStore backed by gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) GetOrCreateAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).
		Where(Account{AccountID: accountID.String()}).
		Attrs(Account{Version: 1}).
		FirstOrCreate(&model).Error
	if err != nil {
		return ledger.Account{}, wrapLedgerError(errorSubjectAccount, errorCodeLookup, err)
	}
	return mapAccount(model)
}

func (store *LedgerStore) UpdateAccount(ctx context.Context, accountID ledger.AccountID, update ledger.AccountUpdate, expectedVersion int64) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND version = ?", accountID.String(), expectedVersion).
		Updates(map[string]interface{}{
			"balance":      update.Balance.Int64(),
			"total_earned": update.TotalEarned.Int64(),
			"total_spent":  update.TotalSpent.Int64(),
			"version":      expectedVersion + 1,
		})
	if result.Error != nil {
		return wrapLedgerError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapLedgerError(errorSubjectAccount, errorCodeUpdate, ledger.ErrConcurrencyConflict)
	}
	return nil
}

func (store *LedgerStore) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	model := LedgerEntry{
		EntryID:       entry.EntryID.String(),
		AccountID:     entry.AccountID.String(),
		Kind:          entry.Kind.String(),
		Delta:         entry.Delta.Int64(),
		BalanceBefore: entry.BalanceBefore.Int64(),
		BalanceAfter:  entry.BalanceAfter.Int64(),
		ReferenceID:   entry.ReferenceID.String(),
		RelatedEntity: entry.RelatedEntity.String(),
		Status:        entry.Status.String(),
		Reason:        entry.Reason,
		Metadata:      datatypesJSON(entry.MetadataJSON.String()),
		CreatedAt:     time.Unix(entry.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapLedgerError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return wrapLedgerError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

func (store *LedgerStore) GetEntry(ctx context.Context, entryID ledger.EntryID) (ledger.Entry, error) {
	var model LedgerEntry
	err := store.db.WithContext(ctx).
		Where("entry_id = ?", entryID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Entry{}, wrapLedgerError(errorSubjectEntry, errorCodeGet, ledger.ErrUnknownEntry)
		}
		return ledger.Entry{}, wrapLedgerError(errorSubjectEntry, errorCodeGet, err)
	}
	entry, err := mapLedgerEntry(model)
	if err != nil {
		return ledger.Entry{}, wrapLedgerError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entry, nil
}

func (store *LedgerStore) MarkEntryCompleted(ctx context.Context, entryID ledger.EntryID, balanceBefore ledger.Points, balanceAfter ledger.Points) error {
	result := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("entry_id = ? AND status = ?", entryID.String(), ledger.StatusPending.String()).
		Updates(map[string]interface{}{
			"status":         ledger.StatusCompleted.String(),
			"balance_before": balanceBefore.Int64(),
			"balance_after":  balanceAfter.Int64(),
		})
	if result.Error != nil {
		return wrapLedgerError(errorSubjectEntry, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.entryTransitionMiss(ctx, entryID)
	}
	return nil
}

func (store *LedgerStore) MarkEntryClosed(ctx context.Context, entryID ledger.EntryID, to ledger.EntryStatus, reason string) error {
	result := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("entry_id = ? AND status = ?", entryID.String(), ledger.StatusPending.String()).
		Updates(map[string]interface{}{
			"status": to.String(),
			"reason": reason,
		})
	if result.Error != nil {
		return wrapLedgerError(errorSubjectEntry, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.entryTransitionMiss(ctx, entryID)
	}
	return nil
}

func (store *LedgerStore) HasCompletedReference(ctx context.Context, accountID ledger.AccountID, referenceID ledger.ReferenceID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("account_id = ? AND reference_id = ? AND status = ?",
			accountID.String(), referenceID.String(), ledger.StatusCompleted.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapLedgerError(errorSubjectEntry, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *LedgerStore) ListEntries(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Entry, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}

	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("account_id = ? AND created_at < ?", accountID.String(), before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapLedgerError(errorSubjectEntry, errorCodeList, err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLedgerEntry(row)
		if err != nil {
			return nil, wrapLedgerError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// entryTransitionMiss turns a zero-row conditional update into the precise
// domain error: unknown entry or an illegal status transition.
func (store *LedgerStore) entryTransitionMiss(ctx context.Context, entryID ledger.EntryID) error {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("entry_id = ?", entryID.String()).
		Count(&count).Error
	if err != nil {
		return wrapLedgerError(errorSubjectEntry, errorCodeLookup, err)
	}
	if count == 0 {
		return wrapLedgerError(errorSubjectEntry, errorCodeUpdate, ledger.ErrUnknownEntry)
	}
	return wrapLedgerError(errorSubjectEntry, errorCodeUpdate, ledger.ErrInvalidStateTransition)
}

func wrapLedgerError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapAccount(model Account) (ledger.Account, error) {
	accountID, err := ledger.NewAccountID(model.AccountID)
	if err != nil {
		return ledger.Account{}, wrapLedgerError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{
		AccountID:   accountID,
		Balance:     ledger.Points(model.Balance),
		TotalEarned: ledger.Points(model.TotalEarned),
		TotalSpent:  ledger.Points(model.TotalSpent),
		Version:     model.Version,
	}, nil
}

func mapLedgerEntry(row LedgerEntry) (ledger.Entry, error) {
	entryID, err := ledger.NewEntryID(row.EntryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	kind, err := ledger.ParseEntryKind(row.Kind)
	if err != nil {
		return ledger.Entry{}, err
	}
	delta, err := ledger.NewDelta(row.Delta)
	if err != nil {
		return ledger.Entry{}, err
	}
	referenceID, err := ledger.NewReferenceID(row.ReferenceID)
	if err != nil {
		return ledger.Entry{}, err
	}
	status, err := ledger.ParseEntryStatus(row.Status)
	if err != nil {
		return ledger.Entry{}, err
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		EntryID:        entryID,
		AccountID:      accountID,
		Kind:           kind,
		Delta:          delta,
		BalanceBefore:  ledger.Points(row.BalanceBefore),
		BalanceAfter:   ledger.Points(row.BalanceAfter),
		ReferenceID:    referenceID,
		RelatedEntity:  ledger.NewRelatedEntity(row.RelatedEntity),
		Status:         status,
		Reason:         row.Reason,
		MetadataJSON:   metadata,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}
