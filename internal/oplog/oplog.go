// Package oplog adapts the domain services' operation callbacks onto a shared
// zap logger, so every state-changing operation lands in the structured log
// with the same field vocabulary.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

// LedgerLogger implements ledger.OperationLogger on zap.
type LedgerLogger struct {
	logger *zap.Logger
}

// NewLedgerLogger wires a LedgerLogger.
func NewLedgerLogger(logger *zap.Logger) *LedgerLogger {
	return &LedgerLogger{logger: logger.Named("ledger")}
}

func (adapter *LedgerLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("kind", entry.Kind.String()),
		zap.Int64("delta", entry.Delta.Int64()),
		zap.String("reference_id", entry.ReferenceID.String()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}

// InventoryLogger implements inventory.OperationLogger on zap.
type InventoryLogger struct {
	logger *zap.Logger
}

// NewInventoryLogger wires an InventoryLogger.
func NewInventoryLogger(logger *zap.Logger) *InventoryLogger {
	return &InventoryLogger{logger: logger.Named("inventory")}
}

func (adapter *InventoryLogger) LogOperation(_ context.Context, entry inventory.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("reward_id", entry.RewardID.String()),
		zap.String("reservation_id", entry.ReservationID.String()),
		zap.Int64("quantity", entry.Quantity.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("inventory operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("inventory operation", fields...)
}

// CapacityLogger implements capacity.OperationLogger on zap.
type CapacityLogger struct {
	logger *zap.Logger
}

// NewCapacityLogger wires a CapacityLogger.
func NewCapacityLogger(logger *zap.Logger) *CapacityLogger {
	return &CapacityLogger{logger: logger.Named("capacity")}
}

func (adapter *CapacityLogger) LogOperation(_ context.Context, entry capacity.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("booth_id", entry.BoothID.String()),
		zap.Int64("weight_grams", entry.WeightGrams.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("capacity operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("capacity operation", fields...)
}

// SubmissionLogger implements submission.OperationLogger on zap.
type SubmissionLogger struct {
	logger *zap.Logger
}

// NewSubmissionLogger wires a SubmissionLogger.
func NewSubmissionLogger(logger *zap.Logger) *SubmissionLogger {
	return &SubmissionLogger{logger: logger.Named("submission")}
}

func (adapter *SubmissionLogger) LogOperation(_ context.Context, entry submission.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("submission_id", entry.SubmissionID.String()),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("booth_id", entry.BoothID.String()),
		zap.Int64("points", entry.Points.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("submission operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("submission operation", fields...)
}

// RedemptionLogger implements redemption.OperationLogger on zap.
type RedemptionLogger struct {
	logger *zap.Logger
}

// NewRedemptionLogger wires a RedemptionLogger.
func NewRedemptionLogger(logger *zap.Logger) *RedemptionLogger {
	return &RedemptionLogger{logger: logger.Named("redemption")}
}

func (adapter *RedemptionLogger) LogOperation(_ context.Context, entry redemption.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("reward_id", entry.RewardID.String()),
		zap.Int64("quantity", entry.Quantity.Int64()),
		zap.Int64("points", entry.Points.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("redemption operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("redemption operation", fields...)
}
