package ledger

import "fmt"

// Rank is a tier derived from lifetime earned points.
type Rank string

const (
	RankBronze   Rank = "bronze"
	RankSilver   Rank = "silver"
	RankGold     Rank = "gold"
	RankPlatinum Rank = "platinum"
	RankDiamond  Rank = "diamond"
)

var rankOrdinals = map[Rank]int{
	RankBronze:   0,
	RankSilver:   1,
	RankGold:     2,
	RankPlatinum: 3,
	RankDiamond:  4,
}

// ParseRank validates a rank name.
func ParseRank(raw string) (Rank, error) {
	rank := Rank(raw)
	if _, known := rankOrdinals[rank]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidRank, raw)
	}
	return rank, nil
}

// String returns the rank name.
func (rank Rank) String() string {
	return string(rank)
}

// AtLeast reports whether the rank meets a minimum by ordinal comparison.
func (rank Rank) AtLeast(minimum Rank) bool {
	return rankOrdinals[rank] >= rankOrdinals[minimum]
}

// RankThreshold maps a rank to the lifetime earnings that unlock it.
type RankThreshold struct {
	Rank      Rank
	MinEarned Points
}

// RankTable derives ranks from lifetime earned points. Thresholds must be
// sorted ascending; the first threshold is the floor tier.
type RankTable []RankThreshold

// DefaultRankTable mirrors the stock tiering:
// bronze < 500 <= silver < 2000 <= gold < 5000 <= platinum < 10000 <= diamond.
func DefaultRankTable() RankTable {
	return RankTable{
		{Rank: RankBronze, MinEarned: 0},
		{Rank: RankSilver, MinEarned: 500},
		{Rank: RankGold, MinEarned: 2000},
		{Rank: RankPlatinum, MinEarned: 5000},
		{Rank: RankDiamond, MinEarned: 10000},
	}
}

// RankFor returns the highest rank whose threshold the earnings meet.
func (table RankTable) RankFor(earned Points) Rank {
	rank := RankBronze
	for _, threshold := range table {
		if earned >= threshold.MinEarned {
			rank = threshold.Rank
		}
	}
	return rank
}
