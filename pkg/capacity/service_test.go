package capacity

import (
	"context"
	"errors"
	"testing"
)

const dayInSeconds = 24 * 60 * 60

func TestCommitAtWeightBoundary(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	boothID := mustBoothID(test, "booth-1")
	limits := staticLimits{boothID.String(): {MaxWeightGrams: 100_000, MaxSubmissionsPerDay: 50}}
	service := mustNewService(test, store, limits, func() int64 { return 1000 })

	if err := service.Commit(context.Background(), boothID, mustGrams(test, 95_000)); err != nil {
		test.Fatalf("commit 95kg: %v", err)
	}
	if err := service.Commit(context.Background(), boothID, mustGrams(test, 10_000)); !errors.Is(err, ErrCapacityExceeded) {
		test.Fatalf("expected ErrCapacityExceeded for 10kg over the line, got %v", err)
	}
	if err := service.Commit(context.Background(), boothID, mustGrams(test, 5_000)); err != nil {
		test.Fatalf("commit 5kg should exactly fill the window: %v", err)
	}
	window := store.mustWindow(test, boothID)
	if window.WeightGrams != 100_000 || window.Submissions != 2 {
		test.Fatalf("unexpected window: %+v", window)
	}
}

func TestCommitSubmissionCountLimit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	boothID := mustBoothID(test, "booth-2")
	limits := staticLimits{boothID.String(): {MaxWeightGrams: 1_000_000, MaxSubmissionsPerDay: 2}}
	service := mustNewService(test, store, limits, func() int64 { return 1000 })

	for i := 0; i < 2; i++ {
		if err := service.Commit(context.Background(), boothID, mustGrams(test, 100)); err != nil {
			test.Fatalf("commit %d: %v", i, err)
		}
	}
	if err := service.Commit(context.Background(), boothID, mustGrams(test, 100)); !errors.Is(err, ErrCapacityExceeded) {
		test.Fatalf("expected ErrCapacityExceeded on submission count, got %v", err)
	}
}

func TestLazyDayReset(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	boothID := mustBoothID(test, "booth-3")
	limits := staticLimits{boothID.String(): {MaxWeightGrams: 10_000, MaxSubmissionsPerDay: 5}}
	now := int64(1000)
	service := mustNewService(test, store, limits, func() int64 { return now })

	if err := service.Commit(context.Background(), boothID, mustGrams(test, 9_000)); err != nil {
		test.Fatalf("commit day one: %v", err)
	}
	now += dayInSeconds

	decision, err := service.CanAccept(context.Background(), boothID, mustGrams(test, 9_000))
	if err != nil {
		test.Fatalf("can accept: %v", err)
	}
	if !decision.OK {
		test.Fatalf("new day should start from empty counters: %+v", decision)
	}
	if err := service.Commit(context.Background(), boothID, mustGrams(test, 9_000)); err != nil {
		test.Fatalf("commit day two: %v", err)
	}
	window := store.mustWindow(test, boothID)
	if window.WeightGrams != 9_000 || window.Submissions != 1 {
		test.Fatalf("stale counters must reset on rollover: %+v", window)
	}
	if window.DateKey != DayKey(now) {
		test.Fatalf("date key must advance, got %s", window.DateKey)
	}
}

func TestCanAcceptDoesNotMutate(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	boothID := mustBoothID(test, "booth-4")
	limits := staticLimits{boothID.String(): {MaxWeightGrams: 1_000, MaxSubmissionsPerDay: 1}}
	service := mustNewService(test, store, limits, func() int64 { return 1000 })

	decision, err := service.CanAccept(context.Background(), boothID, mustGrams(test, 500))
	if err != nil {
		test.Fatalf("can accept: %v", err)
	}
	if !decision.OK {
		test.Fatalf("expected acceptance, got %+v", decision)
	}
	if _, found := store.windows[boothID.String()]; found {
		test.Fatalf("advisory check must not create a window")
	}

	decision, err = service.CanAccept(context.Background(), boothID, mustGrams(test, 1_500))
	if err != nil {
		test.Fatalf("can accept: %v", err)
	}
	if decision.OK || decision.Reason == "" {
		test.Fatalf("expected refusal with reason, got %+v", decision)
	}
}

func TestReleaseCompensatesCommit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	boothID := mustBoothID(test, "booth-5")
	limits := staticLimits{boothID.String(): {MaxWeightGrams: 10_000, MaxSubmissionsPerDay: 5}}
	now := int64(1000)
	service := mustNewService(test, store, limits, func() int64 { return now })

	if err := service.Commit(context.Background(), boothID, mustGrams(test, 4_000)); err != nil {
		test.Fatalf("commit: %v", err)
	}
	if err := service.Release(context.Background(), boothID, mustGrams(test, 4_000)); err != nil {
		test.Fatalf("release: %v", err)
	}
	window := store.mustWindow(test, boothID)
	if window.WeightGrams != 0 || window.Submissions != 0 {
		test.Fatalf("release should return the window to empty: %+v", window)
	}

	// After a day rollover the stale window is left alone.
	if err := service.Commit(context.Background(), boothID, mustGrams(test, 2_000)); err != nil {
		test.Fatalf("commit: %v", err)
	}
	now += dayInSeconds
	if err := service.Release(context.Background(), boothID, mustGrams(test, 2_000)); err != nil {
		test.Fatalf("release across days: %v", err)
	}
	window = store.mustWindow(test, boothID)
	if window.WeightGrams != 2_000 {
		test.Fatalf("stale window must not be decremented: %+v", window)
	}
}

func TestUnknownBooth(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, staticLimits{}, func() int64 { return 1000 })
	_, err := service.CanAccept(context.Background(), mustBoothID(test, "ghost"), mustGrams(test, 100))
	if !errors.Is(err, ErrUnknownBooth) {
		test.Fatalf("expected ErrUnknownBooth, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	if _, err := NewService(nil, staticLimits{}, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
	if _, err := NewService(store, nil, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
	if _, err := NewService(store, staticLimits{}, nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
}

type staticLimits map[string]Limits

func (limits staticLimits) Limits(ctx context.Context, boothID BoothID) (Limits, error) {
	value, ok := limits[boothID.String()]
	if !ok {
		return Limits{}, ErrUnknownBooth
	}
	return value, nil
}

type stubStore struct {
	windows map[string]Window
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{windows: make(map[string]Window)}
}

// WithTx emulates rollback: state mutated by a failed fn is restored.
func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	backup := make(map[string]Window, len(store.windows))
	for key, window := range store.windows {
		backup[key] = window
	}
	if err := fn(ctx, store); err != nil {
		store.windows = backup
		return err
	}
	return nil
}

func (store *stubStore) GetWindow(ctx context.Context, boothID BoothID) (Window, bool, error) {
	window, ok := store.windows[boothID.String()]
	return window, ok, nil
}

func (store *stubStore) UpsertWindow(ctx context.Context, window Window, expectedVersion int64) error {
	existing, ok := store.windows[window.BoothID.String()]
	if ok && existing.Version != expectedVersion {
		return ErrConcurrencyConflict
	}
	if !ok && expectedVersion != 0 {
		return ErrConcurrencyConflict
	}
	window.Version = expectedVersion + 1
	store.windows[window.BoothID.String()] = window
	return nil
}

func (store *stubStore) mustWindow(test *testing.T, boothID BoothID) Window {
	test.Helper()
	window, ok := store.windows[boothID.String()]
	if !ok {
		test.Fatalf("window %s not found", boothID.String())
	}
	return window
}

func mustNewService(test *testing.T, store Store, limits LimitsProvider, now func() int64, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, limits, now, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustBoothID(test *testing.T, raw string) BoothID {
	test.Helper()
	value, err := NewBoothID(raw)
	if err != nil {
		test.Fatalf("booth id: %v", err)
	}
	return value
}

func mustGrams(test *testing.T, raw int64) Grams {
	test.Helper()
	value, err := NewGrams(raw)
	if err != nil {
		test.Fatalf("grams: %v", err)
	}
	return value
}
