package redemption

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

// TicketID identifies an issued redemption ticket.
type TicketID struct {
	value string
}

// NewTicketID validates and normalizes a ticket id.
func NewTicketID(raw string) (TicketID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TicketID{}, fmt.Errorf("%w: empty value", ErrInvalidTicketID)
	}
	return TicketID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TicketID) String() string {
	return id.value
}

// AvailabilityWindow bounds when a reward may be redeemed: a date range, an
// optional day-of-week allow list, and an optional hour range, all in UTC.
// A zero date bound is open on that side; an empty weekday list admits every
// day; HourFrom == HourUntil admits every hour.
type AvailabilityWindow struct {
	FromUnixUTC  int64
	UntilUnixUTC int64
	Weekdays     []time.Weekday
	HourFrom     int
	HourUntil    int
}

// Contains reports whether the instant falls inside the window.
func (window AvailabilityWindow) Contains(unixUTC int64) bool {
	if window.FromUnixUTC != 0 && unixUTC < window.FromUnixUTC {
		return false
	}
	if window.UntilUnixUTC != 0 && unixUTC > window.UntilUnixUTC {
		return false
	}
	instant := time.Unix(unixUTC, 0).UTC()
	if len(window.Weekdays) > 0 {
		allowed := false
		for _, weekday := range window.Weekdays {
			if instant.Weekday() == weekday {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if window.HourFrom != window.HourUntil {
		hour := instant.Hour()
		if window.HourFrom < window.HourUntil {
			if hour < window.HourFrom || hour >= window.HourUntil {
				return false
			}
		} else if hour < window.HourFrom && hour >= window.HourUntil {
			// Range wraps midnight.
			return false
		}
	}
	return true
}

// Reward is a catalog item: the cost, the gates an account must clear, and
// how long an issued ticket stays valid.
type Reward struct {
	RewardID           inventory.RewardID
	Name               string
	PointsRequired     ledger.Points
	DiscountPercent    int64
	MinimumRank        ledger.Rank
	MinimumSubmissions int64
	Availability       AvailabilityWindow
	ValidityPeriodDays int64
}

// Ticket is the receipt of a completed redemption. ExpiresAtUnixUTC is the
// end of the reward's validity period, counted from issue.
type Ticket struct {
	TicketID         TicketID
	ReservationID    inventory.ReservationID
	RewardID         inventory.RewardID
	AccountID        ledger.AccountID
	Quantity         inventory.Quantity
	PointsSpent      ledger.Points
	NewBalance       ledger.Points
	IssuedUnixUTC    int64
	ExpiresAtUnixUTC int64
}

// Catalog resolves reward definitions. A miss is ErrUnknownReward.
type Catalog interface {
	GetReward(ctx context.Context, rewardID inventory.RewardID) (Reward, error)
}

// Reserver is the inventory collaborator: hold, then confirm or cancel.
type Reserver interface {
	Reserve(ctx context.Context, rewardID inventory.RewardID, accountID string, quantity inventory.Quantity) (inventory.Reservation, error)
	Confirm(ctx context.Context, reservationID inventory.ReservationID) error
	Cancel(ctx context.Context, reservationID inventory.ReservationID) error
}

// Debiter is the ledger collaborator that spends the points.
type Debiter interface {
	Record(ctx context.Context, accountID ledger.AccountID, kind ledger.EntryKind, delta ledger.Delta, referenceID ledger.ReferenceID, related ledger.RelatedEntity, metadata ledger.MetadataJSON) (ledger.Entry, error)
}

// AccountReader supplies balance and rank for eligibility checks.
type AccountReader interface {
	Account(ctx context.Context, accountID ledger.AccountID) (ledger.AccountView, error)
}

// SubmissionHistory supplies the approved-submission count for eligibility.
type SubmissionHistory interface {
	ApprovedCount(ctx context.Context, accountID ledger.AccountID) (int64, error)
}
