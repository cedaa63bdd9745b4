package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	operationCommit  = "commit"
	operationRelease = "release"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	defaultMaxAttempts  = 3
	defaultRetryBackoff = 25 * time.Millisecond

	reasonWeightLimit     = "daily weight limit reached"
	reasonSubmissionLimit = "daily submission limit reached"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing capacity operation.
type OperationLog struct {
	Operation   string
	BoothID     BoothID
	WeightGrams Grams
	Status      string
	Error       error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
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

// Service guards each booth's daily intake counters. The day-boundary reset is
// lazy: whenever a window with a stale date key is touched, its counters start
// from zero for the current day. Check and increment share one version-guarded
// write so concurrent submissions cannot jointly overshoot the ceiling.
type Service struct {
	store       Store
	limits      LimitsProvider
	nowFn       func() int64
	logger      OperationLogger
	maxAttempts int
	backoff     time.Duration
}

// NewService wires a Service.
func NewService(store Store, limits LimitsProvider, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if limits == nil {
		return nil, fmt.Errorf("%w: limits provider dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:       store,
		limits:      limits,
		nowFn:       now,
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

// CanAccept reports whether a drop of the given weight fits today's window.
// Purely advisory: Commit re-checks under the version guard.
func (service *Service) CanAccept(ctx context.Context, boothID BoothID, weight Grams) (Decision, error) {
	limits, err := service.limits.Limits(ctx, boothID)
	if err != nil {
		return Decision{}, err
	}
	window, _, err := service.currentWindow(ctx, service.store, boothID)
	if err != nil {
		return Decision{}, err
	}
	return decide(window, limits, weight), nil
}

// Commit counts a drop against today's window. The lazy reset, the limit
// check, and the increment happen inside one guarded transaction; a drop that
// no longer fits fails with ErrCapacityExceeded.
func (service *Service) Commit(ctx context.Context, boothID BoothID, weight Grams) error {
	limits, err := service.limits.Limits(ctx, boothID)
	if err != nil {
		return err
	}
	operationError := service.withConflictRetry(ctx, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			window, version, err := service.currentWindow(ctx, txStore, boothID)
			if err != nil {
				return err
			}
			decision := decide(window, limits, weight)
			if !decision.OK {
				return fmt.Errorf("%w: %s", ErrCapacityExceeded, decision.Reason)
			}
			window.WeightGrams += weight
			window.Submissions++
			return txStore.UpsertWindow(ctx, window, version)
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationCommit,
		BoothID:     boothID,
		WeightGrams: weight,
		Error:       operationError,
	})
	return operationError
}

// Release undoes a committed drop, compensating a submission approval that
// failed after its capacity commit. A window that already rolled to a new day
// is left untouched.
func (service *Service) Release(ctx context.Context, boothID BoothID, weight Grams) error {
	operationError := service.withConflictRetry(ctx, func() error {
		return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			window, found, err := txStore.GetWindow(ctx, boothID)
			if err != nil {
				return err
			}
			if !found || window.DateKey != DayKey(service.nowFn()) {
				return nil
			}
			version := window.Version
			window.WeightGrams -= weight
			if window.WeightGrams < 0 {
				window.WeightGrams = 0
			}
			if window.Submissions > 0 {
				window.Submissions--
			}
			return txStore.UpsertWindow(ctx, window, version)
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationRelease,
		BoothID:     boothID,
		WeightGrams: weight,
		Error:       operationError,
	})
	return operationError
}

// Usage returns today's counters and ceilings for a booth.
func (service *Service) Usage(ctx context.Context, boothID BoothID) (Usage, error) {
	limits, err := service.limits.Limits(ctx, boothID)
	if err != nil {
		return Usage{}, err
	}
	window, _, err := service.currentWindow(ctx, service.store, boothID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		DateKey:         window.DateKey,
		UsedWeightGrams: window.WeightGrams,
		UsedSubmissions: window.Submissions,
		Limits:          limits,
	}, nil
}

// currentWindow loads the booth window with the lazy day reset applied. The
// returned version is the CAS expectation for the next write: the stored
// version when the stored day is still current, otherwise the stored version
// with zeroed counters (or 0 when no row exists yet).
func (service *Service) currentWindow(ctx context.Context, store Store, boothID BoothID) (Window, int64, error) {
	today := DayKey(service.nowFn())
	window, found, err := store.GetWindow(ctx, boothID)
	if err != nil {
		return Window{}, 0, err
	}
	if !found {
		return Window{BoothID: boothID, DateKey: today}, 0, nil
	}
	version := window.Version
	if window.DateKey != today {
		window.DateKey = today
		window.WeightGrams = 0
		window.Submissions = 0
	}
	return window, version, nil
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

func decide(window Window, limits Limits, weight Grams) Decision {
	if window.WeightGrams+weight > limits.MaxWeightGrams {
		return Decision{Reason: reasonWeightLimit}
	}
	if window.Submissions >= limits.MaxSubmissionsPerDay {
		return Decision{Reason: reasonSubmissionLimit}
	}
	return Decision{OK: true}
}
