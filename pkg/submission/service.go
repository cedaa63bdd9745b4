package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

const (
	operationCreate  = "create"
	operationApprove = "approve"
	operationReject  = "reject"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing submission operation.
type OperationLog struct {
	Operation    string
	SubmissionID SubmissionID
	AccountID    ledger.AccountID
	BoothID      capacity.BoothID
	Points       ledger.Points
	Status       string
	Error        error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPointsPolicy overrides the default rate table and bonus tiers.
func WithPointsPolicy(policy PointsPolicy) ServiceOption {
	return func(service *Service) {
		if len(policy.RatesPerKg) > 0 {
			service.policy = policy
		}
	}
}

// Service drives a waste-drop claim from intake to a credited ledger entry.
// Approval is a saga across the booth window and the ledger: the submission
// status is the pivot, the capacity commit and the earn entry follow, and a
// failure unwinds whatever already happened.
type Service struct {
	store     Store
	gate      CapacityGate
	credits   Crediter
	directory BoothDirectory
	policy    PointsPolicy
	nowFn     func() int64
	logger    OperationLogger
}

// NewService wires a Service.
func NewService(store Store, gate CapacityGate, credits Crediter, directory BoothDirectory, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: capacity gate dependency is nil", ErrInvalidServiceConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: crediter dependency is nil", ErrInvalidServiceConfig)
	}
	if directory == nil {
		return nil, fmt.Errorf("%w: booth directory dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:     store,
		gate:      gate,
		credits:   credits,
		directory: directory,
		policy:    DefaultPointsPolicy(),
		nowFn:     now,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Create validates a waste-drop claim and stores it as pending. The points
// value is computed here, once; approval realizes it unchanged.
func (service *Service) Create(ctx context.Context, accountID ledger.AccountID, boothID capacity.BoothID, wasteType WasteType, quantityKg float64) (Submission, error) {
	created, operationError := service.create(ctx, accountID, boothID, wasteType, quantityKg)
	service.logOperation(ctx, OperationLog{
		Operation:    operationCreate,
		SubmissionID: created.SubmissionID,
		AccountID:    accountID,
		BoothID:      boothID,
		Points:       created.PointsEarned,
		Error:        operationError,
	})
	return created, operationError
}

func (service *Service) create(ctx context.Context, accountID ledger.AccountID, boothID capacity.BoothID, wasteType WasteType, quantityKg float64) (Submission, error) {
	weight, err := validateQuantity(quantityKg)
	if err != nil {
		return Submission{}, err
	}
	accepted, err := service.directory.AcceptsWasteType(ctx, boothID, wasteType)
	if err != nil {
		return Submission{}, err
	}
	if !accepted {
		return Submission{}, fmt.Errorf("%w: booth does not accept %q", ErrInvalidWasteType, wasteType)
	}
	points, err := service.policy.Compute(wasteType, weight)
	if err != nil {
		return Submission{}, err
	}
	if points.Int64() <= 0 {
		return Submission{}, fmt.Errorf("%w: %.3f kg of %s earns no points", ErrInvalidQuantity, quantityKg, wasteType)
	}
	decision, err := service.gate.CanAccept(ctx, boothID, weight)
	if err != nil {
		return Submission{}, err
	}
	if !decision.OK {
		return Submission{}, fmt.Errorf("%w: %s", ErrCapacityExceeded, decision.Reason)
	}
	submissionID, err := NewSubmissionID(uuid.NewString())
	if err != nil {
		return Submission{}, err
	}
	created := Submission{
		SubmissionID:   submissionID,
		AccountID:      accountID,
		BoothID:        boothID,
		WasteType:      wasteType,
		QuantityGrams:  weight,
		PointsEarned:   points,
		Status:         StatusPending,
		CreatedUnixUTC: service.nowFn(),
	}
	if err := service.store.InsertSubmission(ctx, created); err != nil {
		return Submission{}, err
	}
	return created, nil
}

// Approve moves a pending submission to approved, counts it against the booth
// window, and credits the pre-computed points. The status claim is the saga
// pivot: a capacity or ledger failure unwinds it so the submission stays
// pending, and the ledger's reference guard (keyed on the submission id) makes
// a double credit impossible.
func (service *Service) Approve(ctx context.Context, submissionID SubmissionID, verifierID string) (ApprovalResult, error) {
	result, operationError := service.approve(ctx, submissionID, verifierID)
	service.logOperation(ctx, OperationLog{
		Operation:    operationApprove,
		SubmissionID: submissionID,
		Points:       result.PointsCredited,
		Error:        operationError,
	})
	return result, operationError
}

func (service *Service) approve(ctx context.Context, submissionID SubmissionID, verifierID string) (ApprovalResult, error) {
	if strings.TrimSpace(verifierID) == "" {
		return ApprovalResult{}, fmt.Errorf("%w: verifier is required", ErrInvalidVerifier)
	}
	current, err := service.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return ApprovalResult{}, err
	}
	if current.Status != StatusPending {
		return ApprovalResult{}, fmt.Errorf("%w: submission is %s", ErrInvalidStateTransition, current.Status)
	}
	// Everything the ledger call needs is built before the status claim, so
	// no constructor failure can strand an approved submission mid-saga.
	referenceID, err := ledger.NewReferenceID(submissionID.String())
	if err != nil {
		return ApprovalResult{}, err
	}
	metadata, err := ledger.NewMetadataJSON(fmt.Sprintf(`{"waste_type":%q,"quantity_grams":%d,"verified_by":%q}`, current.WasteType, current.QuantityGrams, verifierID))
	if err != nil {
		return ApprovalResult{}, err
	}
	delta, err := ledger.NewDelta(current.PointsEarned.Int64())
	if err != nil {
		return ApprovalResult{}, err
	}
	claim := StatusUpdate{
		VerifiedBy:        verifierID,
		VerifiedAtUnixUTC: service.nowFn(),
		PointsEarned:      current.PointsEarned,
	}
	if err := service.store.TransitionStatus(ctx, submissionID, StatusPending, StatusApproved, claim); err != nil {
		return ApprovalResult{}, err
	}
	if err := service.gate.Commit(ctx, current.BoothID, current.QuantityGrams); err != nil {
		service.unclaim(ctx, submissionID, current.PointsEarned)
		return ApprovalResult{}, err
	}
	entry, err := service.credits.Record(ctx, current.AccountID, ledger.KindEarn, delta, referenceID, ledger.NewRelatedEntity(submissionID.String()), metadata)
	if err != nil {
		// Compensate in reverse order, then surface the ledger failure.
		_ = service.gate.Release(ctx, current.BoothID, current.QuantityGrams)
		service.unclaim(ctx, submissionID, current.PointsEarned)
		return ApprovalResult{}, err
	}
	return ApprovalResult{
		SubmissionID:   submissionID,
		PointsCredited: current.PointsEarned,
		NewBalance:     entry.BalanceAfter,
	}, nil
}

// Reject closes a pending submission with zero points and no ledger or
// capacity effect. A reason is mandatory.
func (service *Service) Reject(ctx context.Context, submissionID SubmissionID, verifierID string, reason string) error {
	operationError := service.reject(ctx, submissionID, verifierID, reason)
	service.logOperation(ctx, OperationLog{
		Operation:    operationReject,
		SubmissionID: submissionID,
		Error:        operationError,
	})
	return operationError
}

func (service *Service) reject(ctx context.Context, submissionID SubmissionID, verifierID string, reason string) error {
	if strings.TrimSpace(verifierID) == "" {
		return fmt.Errorf("%w: verifier is required", ErrInvalidVerifier)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a rejection reason is required", ErrInvalidReason)
	}
	update := StatusUpdate{
		VerifiedBy:        verifierID,
		VerifiedAtUnixUTC: service.nowFn(),
		RejectReason:      reason,
	}
	return service.store.TransitionStatus(ctx, submissionID, StatusPending, StatusRejected, update)
}

// Get returns a submission by id.
func (service *Service) Get(ctx context.Context, submissionID SubmissionID) (Submission, error) {
	return service.store.GetSubmission(ctx, submissionID)
}

// ApprovedCount returns an account's lifetime approved submissions, the
// history input for redemption eligibility.
func (service *Service) ApprovedCount(ctx context.Context, accountID ledger.AccountID) (int64, error) {
	return service.store.CountApproved(ctx, accountID)
}

// unclaim rolls an approved submission back to pending. The points figure is
// computed once at creation and must survive the round trip.
func (service *Service) unclaim(ctx context.Context, submissionID SubmissionID, points ledger.Points) {
	_ = service.store.TransitionStatus(ctx, submissionID, StatusApproved, StatusPending, StatusUpdate{PointsEarned: points})
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
