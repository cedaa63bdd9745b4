package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains the ledger domain logic over a Store. Every
// balance-affecting operation appends exactly one immutable entry, and the
// balance read, entry insert, and counter write happen in one transaction
// guarded by the account version.
type Service struct {
	store       Store
	nowFn       func() int64
	logger      OperationLogger
	ranks       RankTable
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
		ranks:       DefaultRankTable(),
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

// Record appends a completed entry and moves the account balance in the same
// transaction. Fails with ErrInsufficientBalance when the balance would go
// negative and with ErrDuplicateReference when the reference already has a
// completed entry for the account.
func (service *Service) Record(ctx context.Context, accountID AccountID, kind EntryKind, delta Delta, referenceID ReferenceID, related RelatedEntity, metadata MetadataJSON) (Entry, error) {
	entry, operationError := service.append(ctx, accountID, kind, delta, referenceID, related, metadata, StatusCompleted)
	service.logOperation(ctx, OperationLog{
		Operation:   operationRecord,
		AccountID:   accountID,
		Kind:        kind,
		Delta:       delta,
		ReferenceID: referenceID,
		Error:       operationError,
	})
	return entry, operationError
}

// RecordPending appends a pending entry without any balance effect. The entry
// carries the projected balances and is realized by CompleteEntry or closed by
// VoidEntry/FailEntry.
func (service *Service) RecordPending(ctx context.Context, accountID AccountID, kind EntryKind, delta Delta, referenceID ReferenceID, related RelatedEntity, metadata MetadataJSON) (Entry, error) {
	entry, operationError := service.append(ctx, accountID, kind, delta, referenceID, related, metadata, StatusPending)
	service.logOperation(ctx, OperationLog{
		Operation:   operationRecordPending,
		AccountID:   accountID,
		Kind:        kind,
		Delta:       delta,
		ReferenceID: referenceID,
		Error:       operationError,
	})
	return entry, operationError
}

// CompleteEntry realizes a pending entry: re-reads the balance, applies the
// delta, and transitions the entry to completed.
func (service *Service) CompleteEntry(ctx context.Context, entryID EntryID) (Entry, error) {
	var completed Entry
	operationError := service.withConflictRetry(ctx, operationComplete, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			entry, err := txStore.GetEntry(ctx, entryID)
			if err != nil {
				return err
			}
			if entry.Status != StatusPending {
				return fmt.Errorf("%w: entry is %s", ErrInvalidStateTransition, entry.Status)
			}
			account, err := txStore.GetOrCreateAccount(ctx, entry.AccountID)
			if err != nil {
				return err
			}
			duplicate, err := txStore.HasCompletedReference(ctx, entry.AccountID, entry.ReferenceID)
			if err != nil {
				return err
			}
			if duplicate {
				return ErrDuplicateReference
			}
			update, balanceAfter, err := applyDelta(account, entry.Delta)
			if err != nil {
				return err
			}
			if err := txStore.MarkEntryCompleted(ctx, entryID, account.Balance, balanceAfter); err != nil {
				return err
			}
			if err := txStore.UpdateAccount(ctx, entry.AccountID, update, account.Version); err != nil {
				return err
			}
			completed = entry
			completed.Status = StatusCompleted
			completed.BalanceBefore = account.Balance
			completed.BalanceAfter = balanceAfter
			return nil
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationComplete,
		AccountID: completed.AccountID,
		Kind:      completed.Kind,
		Delta:     completed.Delta,
		Error:     operationError,
	})
	return completed, operationError
}

// VoidEntry cancels a pending entry. History is never deleted, only closed.
func (service *Service) VoidEntry(ctx context.Context, entryID EntryID, reason string) error {
	operationError := service.closeEntry(ctx, entryID, StatusCancelled, reason)
	service.logOperation(ctx, OperationLog{
		Operation: operationVoid,
		Error:     operationError,
	})
	return operationError
}

// FailEntry marks a pending entry as failed.
func (service *Service) FailEntry(ctx context.Context, entryID EntryID, reason string) error {
	operationError := service.closeEntry(ctx, entryID, StatusFailed, reason)
	service.logOperation(ctx, OperationLog{
		Operation: operationFail,
		Error:     operationError,
	})
	return operationError
}

// Adjust appends a manual correction entry. The actor is kept in the entry
// metadata for the audit trail; capability checks happen at the boundary.
func (service *Service) Adjust(ctx context.Context, accountID AccountID, delta Delta, reason string, actorID string, referenceID ReferenceID) (Entry, error) {
	if strings.TrimSpace(reason) == "" {
		return Entry{}, fmt.Errorf("%w: adjustment reason is required", ErrInvalidReason)
	}
	metadata, err := NewMetadataJSON(fmt.Sprintf(`{"reason":%q,"actor_id":%q}`, reason, actorID))
	if err != nil {
		return Entry{}, err
	}
	entry, operationError := service.append(ctx, accountID, KindAdjustment, delta, referenceID, RelatedEntity{}, metadata, StatusCompleted)
	service.logOperation(ctx, OperationLog{
		Operation:   operationAdjust,
		AccountID:   accountID,
		Kind:        KindAdjustment,
		Delta:       delta,
		ReferenceID: referenceID,
		Error:       operationError,
	})
	return entry, operationError
}

// Account returns the counters and derived rank for an account.
func (service *Service) Account(ctx context.Context, accountID AccountID) (AccountView, error) {
	account, err := service.store.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{
		Account: account,
		Rank:    service.ranks.RankFor(account.TotalEarned),
	}, nil
}

// Balance returns the current spendable balance.
func (service *Service) Balance(ctx context.Context, accountID AccountID) (Points, error) {
	account, err := service.store.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// ListEntries lists ledger entries for an account before a cutoff time.
func (service *Service) ListEntries(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Entry, error) {
	return service.store.ListEntries(ctx, accountID, beforeUnixUTC, limit)
}

func (service *Service) append(ctx context.Context, accountID AccountID, kind EntryKind, delta Delta, referenceID ReferenceID, related RelatedEntity, metadata MetadataJSON, status EntryStatus) (Entry, error) {
	if err := kind.ValidateDelta(delta); err != nil {
		return Entry{}, err
	}
	var appended Entry
	operationError := service.withConflictRetry(ctx, operationRecord, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			account, err := txStore.GetOrCreateAccount(ctx, accountID)
			if err != nil {
				return err
			}
			duplicate, err := txStore.HasCompletedReference(ctx, accountID, referenceID)
			if err != nil {
				return err
			}
			if duplicate {
				return ErrDuplicateReference
			}
			update, balanceAfter, err := applyDelta(account, delta)
			if err != nil {
				return err
			}
			entryID, err := NewEntryID(uuid.NewString())
			if err != nil {
				return err
			}
			appended = Entry{
				EntryID:        entryID,
				AccountID:      accountID,
				Kind:           kind,
				Delta:          delta,
				BalanceBefore:  account.Balance,
				BalanceAfter:   balanceAfter,
				ReferenceID:    referenceID,
				RelatedEntity:  related,
				Status:         status,
				MetadataJSON:   metadata,
				CreatedUnixUTC: service.nowFn(),
			}
			if err := txStore.InsertEntry(ctx, appended); err != nil {
				return err
			}
			if status != StatusCompleted {
				return nil
			}
			return txStore.UpdateAccount(ctx, accountID, update, account.Version)
		})
	})
	if operationError != nil {
		return Entry{}, operationError
	}
	return appended, nil
}

func (service *Service) closeEntry(ctx context.Context, entryID EntryID, to EntryStatus, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a closing reason is required", ErrInvalidReason)
	}
	return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		entry, err := txStore.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != StatusPending {
			return fmt.Errorf("%w: entry is %s", ErrInvalidStateTransition, entry.Status)
		}
		return txStore.MarkEntryClosed(ctx, entryID, to, reason)
	})
}

// withConflictRetry retries version conflicts with linear backoff before
// surfacing the conflict as a transient failure.
func (service *Service) withConflictRetry(ctx context.Context, operation string, fn func() error) error {
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
	return WrapError(operation, "account", errorCodeRetriesSpent, lastErr)
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

func applyDelta(account Account, delta Delta) (AccountUpdate, Points, error) {
	balanceAfter := account.Balance.Int64() + delta.Int64()
	if balanceAfter < 0 {
		return AccountUpdate{}, 0, ErrInsufficientBalance
	}
	update := AccountUpdate{
		Balance:     Points(balanceAfter),
		TotalEarned: account.TotalEarned,
		TotalSpent:  account.TotalSpent,
	}
	if delta > 0 {
		update.TotalEarned += Points(delta.Int64())
	} else {
		update.TotalSpent += Points(-delta.Int64())
	}
	return update, Points(balanceAfter), nil
}
