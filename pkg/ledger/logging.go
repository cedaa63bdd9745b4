package ledger

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation   string
	AccountID   AccountID
	Kind        EntryKind
	Delta       Delta
	ReferenceID ReferenceID
	Status      string
	Error       error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithRankTable overrides the default rank thresholds.
func WithRankTable(table RankTable) ServiceOption {
	return func(service *Service) {
		if len(table) > 0 {
			service.ranks = table
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
