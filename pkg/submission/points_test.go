package submission

import (
	"errors"
	"testing"

	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
)

func TestComputePointsBonusTiers(t *testing.T) {
	t.Parallel()
	policy := DefaultPointsPolicy()
	cases := []struct {
		name      string
		wasteType WasteType
		grams     int64
		want      int64
	}{
		{name: "plastic 10kg gets 20 percent", wasteType: "plastic", grams: 10_000, want: 120},
		{name: "plastic 5kg gets 10 percent", wasteType: "plastic", grams: 5_000, want: 55},
		{name: "plastic 2kg no bonus", wasteType: "plastic", grams: 2_000, want: 20},
		{name: "paper 4.9kg no bonus", wasteType: "paper", grams: 4_900, want: 25},
		{name: "metal 12kg", wasteType: "metal", grams: 12_000, want: 216},
		{name: "organic rounds to nearest", wasteType: "organic", grams: 500, want: 2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			points, err := policy.Compute(tc.wasteType, capacity.Grams(tc.grams))
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if points.Int64() != tc.want {
				t.Fatalf("expected %d points, got %d", tc.want, points)
			}
		})
	}
}

func TestComputePointsUnknownType(t *testing.T) {
	t.Parallel()
	policy := DefaultPointsPolicy()
	if _, err := policy.Compute("styrofoam", capacity.Grams(1_000)); !errors.Is(err, ErrInvalidWasteType) {
		t.Fatalf("expected ErrInvalidWasteType, got %v", err)
	}
}

func TestValidateQuantityBounds(t *testing.T) {
	t.Parallel()
	if _, err := validateQuantity(0.05); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity below minimum, got %v", err)
	}
	if _, err := validateQuantity(1000.5); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity above maximum, got %v", err)
	}
	weight, err := validateQuantity(0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weight != 100 {
		t.Fatalf("expected 100 grams, got %d", weight)
	}
	weight, err = validateQuantity(2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weight != 2_500 {
		t.Fatalf("expected 2500 grams, got %d", weight)
	}
}
