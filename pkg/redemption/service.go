package redemption

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

const (
	operationRedeem = "redeem"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	secondsPerDay = 86_400
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a redemption attempt.
type OperationLog struct {
	Operation string
	AccountID ledger.AccountID
	RewardID  inventory.RewardID
	Quantity  inventory.Quantity
	Points    ledger.Points
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// Service turns eligible accounts' points into reward tickets. A redemption
// is a saga across the inventory and the ledger: reserve stock, debit points,
// confirm the hold. A debit failure cancels the hold so the stock returns to
// the pool.
type Service struct {
	catalog     Catalog
	reservation Reserver
	debits      Debiter
	accounts    AccountReader
	history     SubmissionHistory
	nowFn       func() int64
	logger      OperationLogger
}

// NewService wires a Service.
func NewService(catalog Catalog, reservation Reserver, debits Debiter, accounts AccountReader, history SubmissionHistory, now func() int64, options ...ServiceOption) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if reservation == nil {
		return nil, fmt.Errorf("%w: reserver dependency is nil", ErrInvalidServiceConfig)
	}
	if debits == nil {
		return nil, fmt.Errorf("%w: debiter dependency is nil", ErrInvalidServiceConfig)
	}
	if accounts == nil {
		return nil, fmt.Errorf("%w: account reader dependency is nil", ErrInvalidServiceConfig)
	}
	if history == nil {
		return nil, fmt.Errorf("%w: submission history dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		catalog:     catalog,
		reservation: reservation,
		debits:      debits,
		accounts:    accounts,
		history:     history,
		nowFn:       now,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Redeem exchanges points for a reward and issues a ticket. The idempotency
// key becomes the ledger reference, so a retried call cannot debit twice.
func (service *Service) Redeem(ctx context.Context, accountID ledger.AccountID, rewardID inventory.RewardID, quantity inventory.Quantity, idempotencyKey string) (Ticket, error) {
	ticket, operationError := service.redeem(ctx, accountID, rewardID, quantity, idempotencyKey)
	service.logOperation(ctx, OperationLog{
		Operation: operationRedeem,
		AccountID: accountID,
		RewardID:  rewardID,
		Quantity:  quantity,
		Points:    ticket.PointsSpent,
		Error:     operationError,
	})
	return ticket, operationError
}

func (service *Service) redeem(ctx context.Context, accountID ledger.AccountID, rewardID inventory.RewardID, quantity inventory.Quantity, idempotencyKey string) (Ticket, error) {
	if quantity.Int64() <= 0 {
		return Ticket{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return Ticket{}, fmt.Errorf("%w: an idempotency key is required", ErrInvalidReference)
	}
	reward, err := service.catalog.GetReward(ctx, rewardID)
	if err != nil {
		return Ticket{}, err
	}
	account, err := service.accounts.Account(ctx, accountID)
	if err != nil {
		return Ticket{}, err
	}
	approved, err := service.history.ApprovedCount(ctx, accountID)
	if err != nil {
		return Ticket{}, err
	}
	cost := EffectiveCost(reward, quantity)
	now := service.nowFn()
	if notEligible := checkEligibility(reward, account, approved, now); notEligible != nil {
		return Ticket{}, notEligible
	}
	// Fast path for the common shortfall; the debit is the authoritative
	// guard under concurrent spends.
	if account.Balance.Int64() < cost.Int64() {
		return Ticket{}, fmt.Errorf("%w: balance %d below required %d", ledger.ErrInsufficientBalance, account.Balance.Int64(), cost.Int64())
	}

	hold, err := service.reservation.Reserve(ctx, rewardID, accountID.String(), quantity)
	if err != nil {
		return Ticket{}, err
	}
	entry, err := service.debit(ctx, accountID, rewardID, quantity, cost, idempotencyKey)
	if err != nil {
		// Return the stock before surfacing the debit failure.
		_ = service.reservation.Cancel(ctx, hold.ReservationID)
		return Ticket{}, err
	}
	if err := service.reservation.Confirm(ctx, hold.ReservationID); err != nil {
		return Ticket{}, err
	}

	ticketID, err := NewTicketID(uuid.NewString())
	if err != nil {
		return Ticket{}, err
	}
	issued := Ticket{
		TicketID:      ticketID,
		ReservationID: hold.ReservationID,
		RewardID:      rewardID,
		AccountID:     accountID,
		Quantity:      quantity,
		PointsSpent:   cost,
		NewBalance:    entry.BalanceAfter,
		IssuedUnixUTC: now,
	}
	if reward.ValidityPeriodDays > 0 {
		issued.ExpiresAtUnixUTC = now + reward.ValidityPeriodDays*secondsPerDay
	}
	return issued, nil
}

// Quote prices a redemption without touching stock or points.
func (service *Service) Quote(ctx context.Context, rewardID inventory.RewardID, quantity inventory.Quantity) (ledger.Points, error) {
	if quantity.Int64() <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	reward, err := service.catalog.GetReward(ctx, rewardID)
	if err != nil {
		return 0, err
	}
	return EffectiveCost(reward, quantity), nil
}

func (service *Service) debit(ctx context.Context, accountID ledger.AccountID, rewardID inventory.RewardID, quantity inventory.Quantity, cost ledger.Points, idempotencyKey string) (ledger.Entry, error) {
	referenceID, err := ledger.NewReferenceID(idempotencyKey)
	if err != nil {
		return ledger.Entry{}, err
	}
	delta, err := ledger.NewDelta(-cost.Int64())
	if err != nil {
		return ledger.Entry{}, err
	}
	metadata, err := ledger.NewMetadataJSON(fmt.Sprintf(`{"reward_id":%q,"quantity":%d}`, rewardID, quantity.Int64()))
	if err != nil {
		return ledger.Entry{}, err
	}
	return service.debits.Record(ctx, accountID, ledger.KindRedeem, delta, referenceID, ledger.NewRelatedEntity(rewardID.String()), metadata)
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
