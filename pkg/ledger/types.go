package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Points is a non-negative green-credit amount.
type Points int64

// Delta is a signed balance change carried by a ledger entry.
type Delta int64

// AccountID identifies a credit account.
type AccountID struct {
	value string
}

// EntryID identifies a ledger entry.
type EntryID struct {
	value string
}

// ReferenceID scopes duplicate detection for balance-affecting operations.
type ReferenceID struct {
	value string
}

// RelatedEntity optionally links an entry to a submission or reward.
type RelatedEntity struct {
	value string
}

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// EntryKind enumerates ledger entry kinds.
type EntryKind string

const (
	KindEarn       EntryKind = "earn"
	KindRedeem     EntryKind = "redeem"
	KindBonus      EntryKind = "bonus"
	KindPenalty    EntryKind = "penalty"
	KindRefund     EntryKind = "refund"
	KindAdjustment EntryKind = "adjustment"
)

// EntryStatus defines the entry lifecycle. Completed entries are the only
// ones that count toward an account balance.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusCancelled EntryStatus = "cancelled"
	StatusFailed    EntryStatus = "failed"
)

// Entry is a single immutable line in the ledger. Only Status and the closing
// reason may change after insertion.
type Entry struct {
	EntryID        EntryID
	AccountID      AccountID
	Kind           EntryKind
	Delta          Delta
	BalanceBefore  Points
	BalanceAfter   Points
	ReferenceID    ReferenceID
	RelatedEntity  RelatedEntity
	Status         EntryStatus
	Reason         string
	MetadataJSON   MetadataJSON
	CreatedUnixUTC int64
}

// Account is a snapshot of the per-user counters. Version guards the
// read-modify-write cycle: every balance change bumps it by one.
type Account struct {
	AccountID   AccountID
	Balance     Points
	TotalEarned Points
	TotalSpent  Points
	Version     int64
}

// AccountView adds the derived rank to an account snapshot.
type AccountView struct {
	Account
	Rank Rank
}

// AccountUpdate describes the counter values written alongside an entry.
type AccountUpdate struct {
	Balance     Points
	TotalEarned Points
	TotalSpent  Points
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewEntryID validates and normalizes an entry id.
func NewEntryID(raw string) (EntryID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EntryID{}, fmt.Errorf("%w: empty value", ErrInvalidEntryID)
	}
	return EntryID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id EntryID) String() string {
	return id.value
}

// NewReferenceID validates and normalizes an idempotency reference.
func NewReferenceID(raw string) (ReferenceID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReferenceID{}, fmt.Errorf("%w: empty value", ErrInvalidReferenceID)
	}
	return ReferenceID{value: trimmed}, nil
}

// String returns the normalized reference.
func (id ReferenceID) String() string {
	return id.value
}

// NewRelatedEntity normalizes an optional submission or reward reference.
func NewRelatedEntity(raw string) RelatedEntity {
	return RelatedEntity{value: strings.TrimSpace(raw)}
}

// String returns the normalized reference, empty when unset.
func (related RelatedEntity) String() string {
	return related.value
}

// NewMetadataJSON validates metadata (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// NewPoints validates a non-negative point amount.
func NewPoints(raw int64) (Points, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPoints)
	}
	return Points(raw), nil
}

// Int64 returns the raw amount.
func (points Points) Int64() int64 {
	return int64(points)
}

// NewDelta validates a non-zero signed balance change.
func NewDelta(raw int64) (Delta, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must not be zero", ErrInvalidDelta)
	}
	return Delta(raw), nil
}

// Int64 returns the raw change.
func (delta Delta) Int64() int64 {
	return int64(delta)
}

// ParseEntryKind validates a stored entry kind.
func ParseEntryKind(raw string) (EntryKind, error) {
	switch EntryKind(raw) {
	case KindEarn, KindRedeem, KindBonus, KindPenalty, KindRefund, KindAdjustment:
		return EntryKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, raw)
}

// String returns the kind name.
func (kind EntryKind) String() string {
	return string(kind)
}

// ValidateDelta checks the delta sign against the entry kind: earn, bonus and
// refund entries must be positive, redeem and penalty negative, adjustments
// carry either sign.
func (kind EntryKind) ValidateDelta(delta Delta) error {
	switch kind {
	case KindEarn, KindBonus, KindRefund:
		if delta <= 0 {
			return fmt.Errorf("%w: %s requires a positive delta", ErrInvalidDelta, kind)
		}
	case KindRedeem, KindPenalty:
		if delta >= 0 {
			return fmt.Errorf("%w: %s requires a negative delta", ErrInvalidDelta, kind)
		}
	case KindAdjustment:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEntryKind, kind)
	}
	return nil
}

// ParseEntryStatus validates a stored entry status.
func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch EntryStatus(raw) {
	case StatusPending, StatusCompleted, StatusCancelled, StatusFailed:
		return EntryStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryStatus, raw)
}

// String returns the status name.
func (status EntryStatus) String() string {
	return string(status)
}

// Store is the persistence contract used by Service. UpdateAccount must be a
// compare-and-swap on the account version, reporting a miss as
// ErrConcurrencyConflict; MarkEntryCompleted and MarkEntryClosed are only
// legal on pending entries and must report anything else as
// ErrInvalidStateTransition.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOrCreateAccount(ctx context.Context, accountID AccountID) (Account, error)
	UpdateAccount(ctx context.Context, accountID AccountID, update AccountUpdate, expectedVersion int64) error
	InsertEntry(ctx context.Context, entry Entry) error
	GetEntry(ctx context.Context, entryID EntryID) (Entry, error)
	MarkEntryCompleted(ctx context.Context, entryID EntryID, balanceBefore Points, balanceAfter Points) error
	MarkEntryClosed(ctx context.Context, entryID EntryID, to EntryStatus, reason string) error
	HasCompletedReference(ctx context.Context, accountID AccountID, referenceID ReferenceID) (bool, error)
	ListEntries(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Entry, error)
}
