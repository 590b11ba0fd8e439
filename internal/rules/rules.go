package rules

import (
	"fmt"
)

// RuleSet holds every product constant used by resolution, settlement, the ledger
// and the featured-argument auction. It is loaded through config so operators can
// inspect overrides, and served verbatim by the rules endpoint for UI transparency.
// Each category is a named field on purpose: an unknown rule is a compile error,
// not a runtime lookup miss.
type RuleSet struct {
	// Resolution thresholds.
	WorksThreshold float64 `mapstructure:"works_threshold" json:"works_threshold"`
	FailsThreshold float64 `mapstructure:"fails_threshold" json:"fails_threshold"`

	// Confidence bounds: confidence = clamp(floor + |score|, floor, ceiling).
	ConfidenceFloor   int `mapstructure:"confidence_floor" json:"confidence_floor"`
	ConfidenceCeiling int `mapstructure:"confidence_ceiling" json:"confidence_ceiling"`

	// Lookback window weights. Deliberately not renormalized when a window has
	// no data: missing history reduces score magnitude instead of inflating the
	// remaining windows.
	Weight30d  float64 `mapstructure:"weight_30d" json:"weight_30d"`
	Weight90d  float64 `mapstructure:"weight_90d" json:"weight_90d"`
	Weight180d float64 `mapstructure:"weight_180d" json:"weight_180d"`
	Weight365d float64 `mapstructure:"weight_365d" json:"weight_365d"`

	// Minimum indicators with at least one usable window for a resolution run.
	MinIndicators int `mapstructure:"min_indicators" json:"min_indicators"`

	// Settlement multipliers.
	GainMultiplier float64 `mapstructure:"gain_multiplier" json:"gain_multiplier"`
	ExactBonus     float64 `mapstructure:"exact_bonus" json:"exact_bonus"`
	PartialBonus   float64 `mapstructure:"partial_bonus" json:"partial_bonus"`
	LossMultiplier float64 `mapstructure:"loss_multiplier" json:"loss_multiplier"`
	MinEarnSeeds   int64   `mapstructure:"min_earn_seeds" json:"min_earn_seeds"`

	// Auction.
	MinFirstBid int64 `mapstructure:"min_first_bid" json:"min_first_bid"`

	// Level bands: level = floor(sqrt(balance/divisor)) + 1.
	LevelDivisor int64 `mapstructure:"level_divisor" json:"level_divisor"`

	// Signup grant credited through the ledger when a user is created.
	SignupGrantSeeds int64 `mapstructure:"signup_grant_seeds" json:"signup_grant_seeds"`
}

// Window is one lookback window with its aggregation weight.
type Window struct {
	Days   int
	Weight float64
}

func Default() RuleSet {
	return RuleSet{
		WorksThreshold:    30,
		FailsThreshold:    -30,
		ConfidenceFloor:   50,
		ConfidenceCeiling: 100,
		Weight30d:         0.20,
		Weight90d:         0.30,
		Weight180d:        0.30,
		Weight365d:        0.20,
		MinIndicators:     1,
		GainMultiplier:    1.5,
		ExactBonus:        0.50,
		PartialBonus:      0.20,
		LossMultiplier:    0.50,
		MinEarnSeeds:      1,
		MinFirstBid:       50,
		LevelDivisor:      100,
		SignupGrantSeeds:  500,
	}
}

// Windows returns the lookback windows ordered shortest first.
func (r RuleSet) Windows() []Window {
	return []Window{
		{Days: 30, Weight: r.Weight30d},
		{Days: 90, Weight: r.Weight90d},
		{Days: 180, Weight: r.Weight180d},
		{Days: 365, Weight: r.Weight365d},
	}
}

func (r RuleSet) Validate() error {
	if r.WorksThreshold <= r.FailsThreshold {
		return fmt.Errorf("rules: works_threshold %.2f must exceed fails_threshold %.2f", r.WorksThreshold, r.FailsThreshold)
	}
	if r.ConfidenceFloor < 0 || r.ConfidenceCeiling <= r.ConfidenceFloor {
		return fmt.Errorf("rules: confidence bounds [%d,%d] invalid", r.ConfidenceFloor, r.ConfidenceCeiling)
	}
	for _, w := range r.Windows() {
		if w.Weight < 0 || w.Weight > 1 {
			return fmt.Errorf("rules: window %dd weight %.2f out of [0,1]", w.Days, w.Weight)
		}
	}
	if r.MinIndicators < 1 {
		return fmt.Errorf("rules: min_indicators must be >= 1, got %d", r.MinIndicators)
	}
	if r.GainMultiplier <= 0 || r.LossMultiplier < 0 || r.LossMultiplier > 1 {
		return fmt.Errorf("rules: settlement multipliers invalid (gain=%.2f loss=%.2f)", r.GainMultiplier, r.LossMultiplier)
	}
	if r.ExactBonus < 0 || r.PartialBonus < 0 {
		return fmt.Errorf("rules: bonuses must be >= 0")
	}
	if r.MinEarnSeeds < 0 {
		return fmt.Errorf("rules: min_earn_seeds must be >= 0, got %d", r.MinEarnSeeds)
	}
	if r.MinFirstBid <= 0 {
		return fmt.Errorf("rules: min_first_bid must be > 0, got %d", r.MinFirstBid)
	}
	if r.LevelDivisor <= 0 {
		return fmt.Errorf("rules: level_divisor must be > 0, got %d", r.LevelDivisor)
	}
	if r.SignupGrantSeeds < 0 {
		return fmt.Errorf("rules: signup_grant_seeds must be >= 0, got %d", r.SignupGrantSeeds)
	}
	return nil
}
