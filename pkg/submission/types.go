package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

// SubmissionID identifies a waste submission.
type SubmissionID struct {
	value string
}

// WasteType names a waste category accepted by the platform.
type WasteType string

// Status defines the submission lifecycle: pending is the only non-terminal
// state, approved and rejected are reached exactly once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Submission is one waste-drop claim moving through verification.
// PointsEarned is computed at creation and realized into the ledger only on
// approval; rejection zeroes it.
type Submission struct {
	SubmissionID      SubmissionID
	AccountID         ledger.AccountID
	BoothID           capacity.BoothID
	WasteType         WasteType
	QuantityGrams     capacity.Grams
	PointsEarned      ledger.Points
	Status            Status
	VerifiedBy        string
	VerifiedAtUnixUTC int64
	RejectReason      string
	CreatedUnixUTC    int64
}

// StatusUpdate carries the verification fields written with a transition.
type StatusUpdate struct {
	VerifiedBy        string
	VerifiedAtUnixUTC int64
	PointsEarned      ledger.Points
	RejectReason      string
}

// ApprovalResult reports the outcome of a successful approval.
type ApprovalResult struct {
	SubmissionID   SubmissionID
	PointsCredited ledger.Points
	NewBalance     ledger.Points
}

// NewSubmissionID validates and normalizes a submission id.
func NewSubmissionID(raw string) (SubmissionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SubmissionID{}, fmt.Errorf("%w: empty value", ErrInvalidSubmissionID)
	}
	return SubmissionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SubmissionID) String() string {
	return id.value
}

// NewWasteType validates and normalizes a waste type name.
func NewWasteType(raw string) (WasteType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidWasteType)
	}
	return WasteType(normalized), nil
}

// String returns the normalized name.
func (wasteType WasteType) String() string {
	return string(wasteType)
}

// ParseStatus validates a stored submission status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the status name.
func (status Status) String() string {
	return string(status)
}

// Store is the persistence contract used by Service. TransitionStatus must
// condition on the current status and report a miss as
// ErrInvalidStateTransition.
type Store interface {
	InsertSubmission(ctx context.Context, submission Submission) error
	GetSubmission(ctx context.Context, submissionID SubmissionID) (Submission, error)
	TransitionStatus(ctx context.Context, submissionID SubmissionID, from, to Status, update StatusUpdate) error
	CountApproved(ctx context.Context, accountID ledger.AccountID) (int64, error)
}

// CapacityGate is the booth capacity collaborator consumed by the pipeline.
type CapacityGate interface {
	CanAccept(ctx context.Context, boothID capacity.BoothID, weight capacity.Grams) (capacity.Decision, error)
	Commit(ctx context.Context, boothID capacity.BoothID, weight capacity.Grams) error
	Release(ctx context.Context, boothID capacity.BoothID, weight capacity.Grams) error
}

// Crediter is the ledger collaborator consumed by the pipeline.
type Crediter interface {
	Record(ctx context.Context, accountID ledger.AccountID, kind ledger.EntryKind, delta ledger.Delta, referenceID ledger.ReferenceID, related ledger.RelatedEntity, metadata ledger.MetadataJSON) (ledger.Entry, error)
}

// BoothDirectory supplies the per-booth waste-type acceptance list, a
// read-only policy input.
type BoothDirectory interface {
	AcceptsWasteType(ctx context.Context, boothID capacity.BoothID, wasteType WasteType) (bool, error)
}
