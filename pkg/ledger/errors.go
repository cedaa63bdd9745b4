package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDuplicateReference     = errors.New("duplicate reference")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrUnknownEntry           = errors.New("unknown entry")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAccountID       = errors.New("invalid account id")
	ErrInvalidEntryID         = errors.New("invalid entry id")
	ErrInvalidReferenceID     = errors.New("invalid reference id")
	ErrInvalidPoints          = errors.New("invalid points")
	ErrInvalidDelta           = errors.New("invalid delta")
	ErrInvalidEntryKind       = errors.New("invalid entry kind")
	ErrInvalidEntryStatus     = errors.New("invalid entry status")
	ErrInvalidMetadataJSON    = errors.New("invalid metadata json")
	ErrInvalidRank            = errors.New("invalid rank")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
	ErrInvalidReason          = errors.New("invalid reason")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
