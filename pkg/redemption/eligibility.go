package redemption

import (
	"fmt"
	"math"

	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

// EffectiveCost is the points debited for a redemption: the per-unit price
// after the reward's discount, rounded to the nearest integer, times the
// quantity.
func EffectiveCost(reward Reward, quantity inventory.Quantity) ledger.Points {
	unit := float64(reward.PointsRequired.Int64()) * (1.0 - float64(reward.DiscountPercent)/100.0)
	return ledger.Points(int64(math.Round(unit)) * quantity.Int64())
}

// checkEligibility collects every gate the account fails. A nil return means
// the account may redeem. A balance shortfall is not an eligibility violation;
// it surfaces as InsufficientBalance from the debit step.
func checkEligibility(reward Reward, account ledger.AccountView, approvedSubmissions int64, nowUnixUTC int64) *NotEligibleError {
	var violations []string
	if !reward.Availability.Contains(nowUnixUTC) {
		violations = append(violations, "reward is outside its availability window")
	}
	if reward.MinimumRank != "" && !account.Rank.AtLeast(reward.MinimumRank) {
		violations = append(violations, fmt.Sprintf("rank %s below required %s", account.Rank, reward.MinimumRank))
	}
	if approvedSubmissions < reward.MinimumSubmissions {
		violations = append(violations, fmt.Sprintf("approved submissions %d below required %d", approvedSubmissions, reward.MinimumSubmissions))
	}
	if len(violations) == 0 {
		return nil
	}
	return &NotEligibleError{Violations: violations}
}
