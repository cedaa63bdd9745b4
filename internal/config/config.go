// Package config loads the runtime configuration: connection settings plus
// the policy tables the domain services consume as read-only inputs.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultDatabaseURL   = "sqlite:///tmp/greenledger.db"
	DefaultListenAddr    = ":8080"
	DefaultSweepSchedule = "* * * * *"
	DefaultTTLMinutes    = 15
)

// Config is the full runtime configuration.
type Config struct {
	DatabaseURL           string         `mapstructure:"database_url"`
	ListenAddr            string         `mapstructure:"listen_addr"`
	SweepSchedule         string         `mapstructure:"sweep_schedule"`
	ReservationTTLMinutes int            `mapstructure:"reservation_ttl_minutes"`
	Policy                PolicyConfig   `mapstructure:"policy"`
	Booths                []BoothConfig  `mapstructure:"booths"`
	Rewards               []RewardConfig `mapstructure:"rewards"`
	Actors                []ActorConfig  `mapstructure:"actors"`
}

// PolicyConfig carries the points and rank tables. Empty tables fall back to
// the package defaults.
type PolicyConfig struct {
	RatesPerKg     map[string]int64      `mapstructure:"rates_per_kg"`
	BonusTiers     []BonusTierConfig     `mapstructure:"bonus_tiers"`
	RankThresholds []RankThresholdConfig `mapstructure:"rank_thresholds"`
}

// BonusTierConfig grants a percentage bonus at or above a weight.
type BonusTierConfig struct {
	MinGrams     int64 `mapstructure:"min_grams"`
	BonusPercent int64 `mapstructure:"bonus_percent"`
}

// RankThresholdConfig maps a rank name to its lifetime-earnings floor.
type RankThresholdConfig struct {
	Rank      string `mapstructure:"rank"`
	MinEarned int64  `mapstructure:"min_earned"`
}

// BoothConfig describes one collection booth: daily limits and the waste
// types it accepts.
type BoothConfig struct {
	ID                   string   `mapstructure:"id"`
	MaxWeightGrams       int64    `mapstructure:"max_weight_grams"`
	MaxSubmissionsPerDay int64    `mapstructure:"max_submissions_per_day"`
	WasteTypes           []string `mapstructure:"waste_types"`
}

// RewardConfig describes one catalog reward and its initial stock. The
// availability gates are all optional: an empty weekday list admits every day
// and equal hours admit the whole day.
type RewardConfig struct {
	ID                 string   `mapstructure:"id"`
	Name               string   `mapstructure:"name"`
	Stock              int64    `mapstructure:"stock"`
	PointsRequired     int64    `mapstructure:"points_required"`
	DiscountPercent    int64    `mapstructure:"discount_percent"`
	MinimumRank        string   `mapstructure:"minimum_rank"`
	MinimumSubmissions int64    `mapstructure:"minimum_submissions"`
	AvailableFromUnix  int64    `mapstructure:"available_from_unix"`
	AvailableUntilUnix int64    `mapstructure:"available_until_unix"`
	AvailableWeekdays  []string `mapstructure:"available_weekdays"`
	AvailableHourFrom  int      `mapstructure:"available_hour_from"`
	AvailableHourUntil int      `mapstructure:"available_hour_until"`
	ValidityPeriodDays int64    `mapstructure:"validity_period_days"`
}

// ActorConfig grants an operator its capabilities; "*" grants everything.
type ActorConfig struct {
	ID           string   `mapstructure:"id"`
	Capabilities []string `mapstructure:"capabilities"`
}

// Load reads configuration from an optional file plus the environment.
// Environment variables use the GREENLEDGER_ prefix with underscores, e.g.
// GREENLEDGER_DATABASE_URL.
func Load(configPath string) (Config, error) {
	loader := viper.New()
	loader.SetEnvPrefix("GREENLEDGER")
	loader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	loader.AutomaticEnv()

	loader.SetDefault("database_url", DefaultDatabaseURL)
	loader.SetDefault("listen_addr", DefaultListenAddr)
	loader.SetDefault("sweep_schedule", DefaultSweepSchedule)
	loader.SetDefault("reservation_ttl_minutes", DefaultTTLMinutes)

	if configPath != "" {
		loader.SetConfigFile(configPath)
		if err := loader.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("database url is required")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen addr is required")
	}
	if cfg.ReservationTTLMinutes <= 0 {
		return fmt.Errorf("reservation ttl must be positive, got %d", cfg.ReservationTTLMinutes)
	}
	seenBooths := map[string]bool{}
	for _, booth := range cfg.Booths {
		if strings.TrimSpace(booth.ID) == "" {
			return fmt.Errorf("booth id is required")
		}
		if seenBooths[booth.ID] {
			return fmt.Errorf("duplicate booth %q", booth.ID)
		}
		seenBooths[booth.ID] = true
		if booth.MaxWeightGrams <= 0 || booth.MaxSubmissionsPerDay <= 0 {
			return fmt.Errorf("booth %q needs positive limits", booth.ID)
		}
	}
	seenRewards := map[string]bool{}
	for _, reward := range cfg.Rewards {
		if strings.TrimSpace(reward.ID) == "" {
			return fmt.Errorf("reward id is required")
		}
		if seenRewards[reward.ID] {
			return fmt.Errorf("duplicate reward %q", reward.ID)
		}
		seenRewards[reward.ID] = true
		if reward.PointsRequired <= 0 {
			return fmt.Errorf("reward %q needs a positive points price", reward.ID)
		}
		if reward.Stock < 0 {
			return fmt.Errorf("reward %q stock must not be negative", reward.ID)
		}
		if reward.DiscountPercent < 0 || reward.DiscountPercent > 100 {
			return fmt.Errorf("reward %q discount must be 0-100", reward.ID)
		}
		if reward.AvailableHourFrom < 0 || reward.AvailableHourFrom > 23 ||
			reward.AvailableHourUntil < 0 || reward.AvailableHourUntil > 23 {
			return fmt.Errorf("reward %q availability hours must be 0-23", reward.ID)
		}
	}
	return nil
}
