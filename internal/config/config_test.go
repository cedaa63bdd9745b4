package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GreenLoopLabs/greenledger/pkg/access"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
)

const sampleConfig = `
database_url: "postgres://localhost:5432/greenledger"
listen_addr: ":9090"
sweep_schedule: "*/5 * * * *"
reservation_ttl_minutes: 10
policy:
  rates_per_kg:
    plastic: 12
    paper: 6
  bonus_tiers:
    - min_grams: 5000
      bonus_percent: 10
    - min_grams: 10000
      bonus_percent: 20
  rank_thresholds:
    - rank: bronze
      min_earned: 0
    - rank: silver
      min_earned: 400
booths:
  - id: booth-central
    max_weight_grams: 100000
    max_submissions_per_day: 50
    waste_types: [plastic, paper]
rewards:
  - id: reward-voucher
    name: transit voucher
    stock: 25
    points_required: 100
    discount_percent: 10
    minimum_rank: silver
    minimum_submissions: 5
    available_weekdays: [saturday, sunday]
    available_hour_from: 9
    available_hour_until: 18
    validity_period_days: 30
actors:
  - id: operator-1
    capabilities: ["submission:verify"]
  - id: admin-1
    capabilities: ["*"]
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greenledger.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/greenledger" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.ListenAddr != ":9090" || cfg.SweepSchedule != "*/5 * * * *" || cfg.ReservationTTLMinutes != 10 {
		t.Fatalf("unexpected runtime settings %+v", cfg)
	}
	if len(cfg.Booths) != 1 || len(cfg.Rewards) != 1 || len(cfg.Actors) != 2 {
		t.Fatalf("unexpected table sizes %+v", cfg)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != DefaultDatabaseURL || cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.ReservationTTLMinutes != DefaultTTLMinutes {
		t.Fatalf("expected default ttl, got %d", cfg.ReservationTTLMinutes)
	}
}

func TestPointsPolicySortsTiersDescending(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	policy, err := cfg.PointsPolicy()
	if err != nil {
		t.Fatalf("points policy: %v", err)
	}
	if len(policy.BonusTiers) != 2 || policy.BonusTiers[0].MinGrams != 10_000 {
		t.Fatalf("expected tiers sorted descending, got %+v", policy.BonusTiers)
	}
	points, err := policy.Compute("plastic", capacity.Grams(10_000))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if points.Int64() != 144 {
		t.Fatalf("expected 144 points at configured rate 12, got %d", points)
	}
}

func TestPointsPolicyRejectsBlankWasteType(t *testing.T) {
	cfg := Config{Policy: PolicyConfig{RatesPerKg: map[string]int64{"  ": 4}}}
	if _, err := cfg.PointsPolicy(); err == nil {
		t.Fatal("expected error for a blank waste type in the rate table")
	}
}

func TestCatalogRejectsUnknownWeekday(t *testing.T) {
	cfg := Config{Rewards: []RewardConfig{
		{ID: "reward-1", PointsRequired: 100, AvailableWeekdays: []string{"caturday"}},
	}}
	if _, err := cfg.Catalog(); err == nil {
		t.Fatal("expected error for unknown weekday name")
	}
}

func TestRankTableFromConfig(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	table, err := cfg.RankTable()
	if err != nil {
		t.Fatalf("rank table: %v", err)
	}
	if table.RankFor(ledger.Points(399)) != ledger.RankBronze {
		t.Fatalf("expected bronze below the configured threshold")
	}
	if table.RankFor(ledger.Points(400)) != ledger.RankSilver {
		t.Fatalf("expected silver at the configured threshold")
	}
}

func TestBoothRegistryServesLimitsAndWasteTypes(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	registry, err := cfg.BoothRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	boothID, err := capacity.NewBoothID("booth-central")
	if err != nil {
		t.Fatalf("booth id: %v", err)
	}
	limits, err := registry.Limits(context.Background(), boothID)
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if limits.MaxWeightGrams != 100_000 || limits.MaxSubmissionsPerDay != 50 {
		t.Fatalf("unexpected limits %+v", limits)
	}
	accepted, err := registry.AcceptsWasteType(context.Background(), boothID, "plastic")
	if err != nil || !accepted {
		t.Fatalf("expected plastic accepted, got %t, %v", accepted, err)
	}
	accepted, err = registry.AcceptsWasteType(context.Background(), boothID, "glass")
	if err != nil || accepted {
		t.Fatalf("expected glass refused, got %t, %v", accepted, err)
	}
	unknown, err := capacity.NewBoothID("booth-missing")
	if err != nil {
		t.Fatalf("booth id: %v", err)
	}
	if _, err := registry.Limits(context.Background(), unknown); !errors.Is(err, capacity.ErrUnknownBooth) {
		t.Fatalf("expected ErrUnknownBooth, got %v", err)
	}
}

func TestCatalogServesRewards(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	rewardID, err := inventory.NewRewardID("reward-voucher")
	if err != nil {
		t.Fatalf("reward id: %v", err)
	}
	reward, err := catalog.GetReward(context.Background(), rewardID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if reward.PointsRequired.Int64() != 100 || reward.MinimumRank != ledger.RankSilver {
		t.Fatalf("unexpected reward %+v", reward)
	}
	wantWeekdays := []time.Weekday{time.Saturday, time.Sunday}
	if len(reward.Availability.Weekdays) != len(wantWeekdays) {
		t.Fatalf("unexpected weekdays %v", reward.Availability.Weekdays)
	}
	for i, weekday := range wantWeekdays {
		if reward.Availability.Weekdays[i] != weekday {
			t.Fatalf("unexpected weekdays %v", reward.Availability.Weekdays)
		}
	}
	if reward.Availability.HourFrom != 9 || reward.Availability.HourUntil != 18 {
		t.Fatalf("unexpected hour range %d-%d", reward.Availability.HourFrom, reward.Availability.HourUntil)
	}
	missing, err := inventory.NewRewardID("reward-missing")
	if err != nil {
		t.Fatalf("reward id: %v", err)
	}
	if _, err := catalog.GetReward(context.Background(), missing); !errors.Is(err, redemption.ErrUnknownReward) {
		t.Fatalf("expected ErrUnknownReward, got %v", err)
	}
}

func TestAccessDirectoryFromConfig(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	directory, err := cfg.AccessDirectory()
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	operator, err := directory.CapabilitiesOf(context.Background(), "operator-1")
	if err != nil {
		t.Fatalf("operator capabilities: %v", err)
	}
	verify := access.Capability{Module: "submission", Action: "verify"}
	adjust := access.Capability{Module: "ledger", Action: "adjust"}
	if !operator.Allows(verify) || operator.Allows(adjust) {
		t.Fatal("operator must verify submissions and nothing else")
	}
	admin, err := directory.CapabilitiesOf(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("admin capabilities: %v", err)
	}
	if !admin.Allows(adjust) {
		t.Fatal("wildcard actor must hold every capability")
	}
}

func TestValidateRejectsBadTables(t *testing.T) {
	bad := Config{
		DatabaseURL:           "sqlite:///tmp/x.db",
		ListenAddr:            ":8080",
		ReservationTTLMinutes: 15,
		Booths: []BoothConfig{
			{ID: "booth-1", MaxWeightGrams: 0, MaxSubmissionsPerDay: 10},
		},
	}
	if err := bad.validate(); err == nil {
		t.Fatal("expected validation error for zero weight limit")
	}
	bad = Config{
		DatabaseURL:           "sqlite:///tmp/x.db",
		ListenAddr:            ":8080",
		ReservationTTLMinutes: 15,
		Rewards: []RewardConfig{
			{ID: "reward-1", PointsRequired: 100, DiscountPercent: 120},
		},
	}
	if err := bad.validate(); err == nil {
		t.Fatal("expected validation error for discount above 100")
	}
}
