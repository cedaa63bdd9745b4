package submission

import "errors"

// Domain-level error values returned by the submission pipeline.
var (
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidWasteType       = errors.New("invalid waste type")
	ErrUnknownSubmission      = errors.New("unknown submission")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidSubmissionID    = errors.New("invalid submission id")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidReason          = errors.New("invalid reason")
	ErrInvalidVerifier        = errors.New("invalid verifier")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)
