package redemption

import (
	"errors"
	"fmt"
	"strings"
)

// Domain-level error values returned by the redemption orchestrator.
var (
	ErrUnknownReward        = errors.New("unknown reward")
	ErrNotEligible          = errors.New("not eligible")
	ErrInvalidTicketID      = errors.New("invalid ticket id")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// NotEligibleError lists every gate the account failed, so the caller sees
// the whole picture instead of the first violation.
type NotEligibleError struct {
	Violations []string
}

// Error renders the violations as one message.
func (notEligible *NotEligibleError) Error() string {
	return fmt.Sprintf("not eligible: %s", strings.Join(notEligible.Violations, "; "))
}

// Unwrap lets errors.Is match ErrNotEligible.
func (notEligible *NotEligibleError) Unwrap() error {
	return ErrNotEligible
}
