package capacity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Grams is a waste weight in whole grams. Weights are carried as integers so
// counter arithmetic never accumulates floating-point drift.
type Grams int64

// BoothID identifies a collection booth.
type BoothID struct {
	value string
}

// Window is one booth's intake counters for a single day. DateKey names the
// day the counters belong to; a window whose DateKey is stale counts as empty.
// Version guards the read-modify-write cycle.
type Window struct {
	BoothID     BoothID
	DateKey     string
	WeightGrams Grams
	Submissions int64
	Version     int64
}

// Limits is a booth's per-day intake ceiling, supplied by the booth
// configuration collaborator.
type Limits struct {
	MaxWeightGrams    Grams
	MaxSubmissionsPerDay int64
}

// Usage is the externally visible view of a booth's current window.
type Usage struct {
	DateKey         string
	UsedWeightGrams Grams
	UsedSubmissions int64
	Limits          Limits
}

// Decision is the outcome of a capacity check.
type Decision struct {
	OK     bool
	Reason string
}

// LimitsProvider supplies per-booth ceilings. Implementations are read-only
// policy inputs; unknown booths fail with ErrUnknownBooth.
type LimitsProvider interface {
	Limits(ctx context.Context, boothID BoothID) (Limits, error)
}

// NewBoothID validates and normalizes a booth id.
func NewBoothID(raw string) (BoothID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BoothID{}, fmt.Errorf("%w: empty value", ErrInvalidBoothID)
	}
	return BoothID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BoothID) String() string {
	return id.value
}

// NewGrams validates a strictly positive weight.
func NewGrams(raw int64) (Grams, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidWeight)
	}
	return Grams(raw), nil
}

// Int64 returns the raw weight.
func (grams Grams) Int64() int64 {
	return int64(grams)
}

// DayKey formats the UTC day a unix timestamp falls on.
func DayKey(unixUTC int64) string {
	return time.Unix(unixUTC, 0).UTC().Format(time.DateOnly)
}

// Store is the persistence contract used by Service. UpsertWindow must be a
// compare-and-swap on the window version (expectedVersion 0 means "create"),
// reporting a miss as ErrConcurrencyConflict.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetWindow(ctx context.Context, boothID BoothID) (Window, bool, error)
	UpsertWindow(ctx context.Context, window Window, expectedVersion int64) error
}
