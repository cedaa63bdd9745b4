package httpserver

import (
	"errors"
	"net/http"

	"github.com/GreenLoopLabs/greenledger/pkg/access"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

func capacityBoothID(raw string) (capacity.BoothID, error) {
	return capacity.NewBoothID(raw)
}

// writeDomainError maps a domain error onto an HTTP status. Unmatched errors
// are internal failures and deliberately carry no detail.
func (server *Server) writeDomainError(w http.ResponseWriter, err error) {
	server.logHandlerError(err)

	var notEligible *redemption.NotEligibleError
	if errors.As(err, &notEligible) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]interface{}{
				"message":    notEligible.Error(),
				"violations": notEligible.Violations,
			},
		})
		return
	}

	switch {
	case errors.Is(err, access.ErrUnknownActor), errors.Is(err, access.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, submission.ErrUnknownSubmission),
		errors.Is(err, inventory.ErrUnknownReward),
		errors.Is(err, inventory.ErrUnknownReservation),
		errors.Is(err, redemption.ErrUnknownReward),
		errors.Is(err, capacity.ErrUnknownBooth),
		errors.Is(err, ledger.ErrUnknownEntry):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, submission.ErrInvalidStateTransition),
		errors.Is(err, ledger.ErrInvalidStateTransition),
		errors.Is(err, ledger.ErrDuplicateReference):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, submission.ErrCapacityExceeded),
		errors.Is(err, capacity.ErrCapacityExceeded),
		errors.Is(err, redemption.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrConcurrencyConflict),
		errors.Is(err, inventory.ErrConcurrencyConflict),
		errors.Is(err, capacity.ErrConcurrencyConflict):
		writeError(w, http.StatusServiceUnavailable, "transient conflict, retry the request")
	case errors.Is(err, submission.ErrInvalidQuantity),
		errors.Is(err, submission.ErrInvalidWasteType),
		errors.Is(err, submission.ErrInvalidSubmissionID),
		errors.Is(err, submission.ErrInvalidReason),
		errors.Is(err, submission.ErrInvalidVerifier),
		errors.Is(err, redemption.ErrInvalidQuantity),
		errors.Is(err, redemption.ErrInvalidReference),
		errors.Is(err, ledger.ErrInvalidAccountID),
		errors.Is(err, ledger.ErrInvalidDelta),
		errors.Is(err, ledger.ErrInvalidReferenceID),
		errors.Is(err, ledger.ErrInvalidReason),
		errors.Is(err, inventory.ErrInvalidRewardID),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, capacity.ErrInvalidBoothID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
