package submission

import (
	"fmt"
	"math"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
)

const (
	// Accepted drop weight: 0.1 kg to 1000 kg.
	minQuantityGrams = 100
	maxQuantityGrams = 1_000_000

	gramsPerKilogram = 1000.0
)

// BonusTier grants a percentage bonus for drops at or above a weight.
type BonusTier struct {
	MinGrams     capacity.Grams
	BonusPercent int64
}

// PointsPolicy is the injectable rate table: points per kilogram by waste
// type plus weight bonus tiers, sorted by descending MinGrams.
type PointsPolicy struct {
	RatesPerKg map[WasteType]int64
	BonusTiers []BonusTier
}

// DefaultPointsPolicy mirrors the stock rates and the 5 kg / 10 kg bonuses.
func DefaultPointsPolicy() PointsPolicy {
	return PointsPolicy{
		RatesPerKg: map[WasteType]int64{
			"plastic":    10,
			"paper":      5,
			"glass":      8,
			"metal":      15,
			"organic":    3,
			"electronic": 20,
		},
		BonusTiers: []BonusTier{
			{MinGrams: 10_000, BonusPercent: 20},
			{MinGrams: 5_000, BonusPercent: 10},
		},
	}
}

// Compute returns the points a drop earns: rate times weight, raised by the
// first bonus tier the weight reaches, rounded to the nearest integer. The
// result is fixed at submission creation and never recomputed.
func (policy PointsPolicy) Compute(wasteType WasteType, weight capacity.Grams) (ledger.Points, error) {
	rate, known := policy.RatesPerKg[wasteType]
	if !known {
		return 0, fmt.Errorf("%w: no rate for %q", ErrInvalidWasteType, wasteType)
	}
	base := float64(rate) * float64(weight.Int64()) / gramsPerKilogram
	multiplier := 1.0
	for _, tier := range policy.BonusTiers {
		if weight >= tier.MinGrams {
			multiplier = 1.0 + float64(tier.BonusPercent)/100.0
			break
		}
	}
	return ledger.Points(math.Round(base * multiplier)), nil
}

// validateQuantity converts kilograms to grams and enforces the drop bounds.
func validateQuantity(quantityKg float64) (capacity.Grams, error) {
	grams := int64(math.Round(quantityKg * gramsPerKilogram))
	if grams < minQuantityGrams || grams > maxQuantityGrams {
		return 0, fmt.Errorf("%w: %.3f kg outside 0.1-1000 kg", ErrInvalidQuantity, quantityKg)
	}
	return capacity.Grams(grams), nil
}
