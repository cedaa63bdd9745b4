package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GreenLoopLabs/greenledger/pkg/access"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

// PointsPolicy converts the configured rate table into the submission
// policy. Empty config falls back to the stock policy.
func (cfg Config) PointsPolicy() (submission.PointsPolicy, error) {
	if len(cfg.Policy.RatesPerKg) == 0 {
		return submission.DefaultPointsPolicy(), nil
	}
	rates := make(map[submission.WasteType]int64, len(cfg.Policy.RatesPerKg))
	for name, rate := range cfg.Policy.RatesPerKg {
		wasteType, err := submission.NewWasteType(name)
		if err != nil {
			return submission.PointsPolicy{}, fmt.Errorf("rate table: %w", err)
		}
		rates[wasteType] = rate
	}
	tiers := make([]submission.BonusTier, 0, len(cfg.Policy.BonusTiers))
	for _, tier := range cfg.Policy.BonusTiers {
		tiers = append(tiers, submission.BonusTier{
			MinGrams:     capacity.Grams(tier.MinGrams),
			BonusPercent: tier.BonusPercent,
		})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinGrams > tiers[j].MinGrams })
	return submission.PointsPolicy{RatesPerKg: rates, BonusTiers: tiers}, nil
}

// RankTable converts the configured thresholds into the ledger rank table.
// Empty config falls back to the stock table.
func (cfg Config) RankTable() (ledger.RankTable, error) {
	if len(cfg.Policy.RankThresholds) == 0 {
		return ledger.DefaultRankTable(), nil
	}
	table := make(ledger.RankTable, 0, len(cfg.Policy.RankThresholds))
	for _, threshold := range cfg.Policy.RankThresholds {
		rank, err := ledger.ParseRank(threshold.Rank)
		if err != nil {
			return nil, err
		}
		minEarned, err := ledger.NewPoints(threshold.MinEarned)
		if err != nil {
			return nil, fmt.Errorf("rank %q threshold: %w", threshold.Rank, err)
		}
		table = append(table, ledger.RankThreshold{Rank: rank, MinEarned: minEarned})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].MinEarned < table[j].MinEarned })
	return table, nil
}

// BoothRegistry serves the per-booth limits and waste-type acceptance lists
// from configuration. It implements capacity.LimitsProvider and
// submission.BoothDirectory.
type BoothRegistry struct {
	limits    map[string]capacity.Limits
	wasteSets map[string]map[submission.WasteType]bool
}

// BoothRegistry builds the registry from the configured booths.
func (cfg Config) BoothRegistry() (*BoothRegistry, error) {
	registry := &BoothRegistry{
		limits:    make(map[string]capacity.Limits, len(cfg.Booths)),
		wasteSets: make(map[string]map[submission.WasteType]bool, len(cfg.Booths)),
	}
	for _, booth := range cfg.Booths {
		registry.limits[booth.ID] = capacity.Limits{
			MaxWeightGrams:       capacity.Grams(booth.MaxWeightGrams),
			MaxSubmissionsPerDay: booth.MaxSubmissionsPerDay,
		}
		accepted := make(map[submission.WasteType]bool, len(booth.WasteTypes))
		for _, name := range booth.WasteTypes {
			wasteType, err := submission.NewWasteType(name)
			if err != nil {
				return nil, fmt.Errorf("booth %q: %w", booth.ID, err)
			}
			accepted[wasteType] = true
		}
		registry.wasteSets[booth.ID] = accepted
	}
	return registry, nil
}

// Limits returns the booth's daily ceilings.
func (registry *BoothRegistry) Limits(_ context.Context, boothID capacity.BoothID) (capacity.Limits, error) {
	limits, found := registry.limits[boothID.String()]
	if !found {
		return capacity.Limits{}, fmt.Errorf("%w: %s", capacity.ErrUnknownBooth, boothID)
	}
	return limits, nil
}

// AcceptsWasteType reports whether the booth takes the waste type.
func (registry *BoothRegistry) AcceptsWasteType(_ context.Context, boothID capacity.BoothID, wasteType submission.WasteType) (bool, error) {
	accepted, found := registry.wasteSets[boothID.String()]
	if !found {
		return false, fmt.Errorf("%w: %s", capacity.ErrUnknownBooth, boothID)
	}
	return accepted[wasteType], nil
}

// StaticCatalog serves reward definitions from configuration. It implements
// redemption.Catalog.
type StaticCatalog struct {
	rewards map[string]redemption.Reward
}

// Catalog builds the reward catalog from the configured rewards.
func (cfg Config) Catalog() (*StaticCatalog, error) {
	catalog := &StaticCatalog{rewards: make(map[string]redemption.Reward, len(cfg.Rewards))}
	for _, entry := range cfg.Rewards {
		rewardID, err := inventory.NewRewardID(entry.ID)
		if err != nil {
			return nil, err
		}
		weekdays := make([]time.Weekday, 0, len(entry.AvailableWeekdays))
		for _, name := range entry.AvailableWeekdays {
			weekday, err := parseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("reward %q: %w", entry.ID, err)
			}
			weekdays = append(weekdays, weekday)
		}
		reward := redemption.Reward{
			RewardID:           rewardID,
			Name:               entry.Name,
			PointsRequired:     ledger.Points(entry.PointsRequired),
			DiscountPercent:    entry.DiscountPercent,
			MinimumSubmissions: entry.MinimumSubmissions,
			Availability: redemption.AvailabilityWindow{
				FromUnixUTC:  entry.AvailableFromUnix,
				UntilUnixUTC: entry.AvailableUntilUnix,
				Weekdays:     weekdays,
				HourFrom:     entry.AvailableHourFrom,
				HourUntil:    entry.AvailableHourUntil,
			},
			ValidityPeriodDays: entry.ValidityPeriodDays,
		}
		if entry.MinimumRank != "" {
			rank, err := ledger.ParseRank(entry.MinimumRank)
			if err != nil {
				return nil, fmt.Errorf("reward %q: %w", entry.ID, err)
			}
			reward.MinimumRank = rank
		}
		catalog.rewards[entry.ID] = reward
	}
	return catalog, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	weekday, known := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !known {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return weekday, nil
}

// GetReward resolves a reward definition.
func (catalog *StaticCatalog) GetReward(_ context.Context, rewardID inventory.RewardID) (redemption.Reward, error) {
	reward, found := catalog.rewards[rewardID.String()]
	if !found {
		return redemption.Reward{}, fmt.Errorf("%w: %s", redemption.ErrUnknownReward, rewardID)
	}
	return reward, nil
}

// AccessDirectory builds the actor capability directory from configuration.
// The "*" capability grants the wildcard set.
func (cfg Config) AccessDirectory() (*access.StaticDirectory, error) {
	actors := make(map[string]access.CapabilitySet, len(cfg.Actors))
	for _, actor := range cfg.Actors {
		wildcard := false
		capabilities := make([]access.Capability, 0, len(actor.Capabilities))
		for _, raw := range actor.Capabilities {
			if raw == "*" {
				wildcard = true
				continue
			}
			capability, err := access.ParseCapability(raw)
			if err != nil {
				return nil, fmt.Errorf("actor %q: %w", actor.ID, err)
			}
			capabilities = append(capabilities, capability)
		}
		if wildcard {
			actors[actor.ID] = access.AllCapabilities()
			continue
		}
		actors[actor.ID] = access.NewCapabilitySet(capabilities...)
	}
	return access.NewStaticDirectory(actors), nil
}
