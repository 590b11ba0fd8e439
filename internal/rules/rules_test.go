package rules

import (
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default rule set invalid: %v", err)
	}
}

func TestWindowsOrderedShortestFirst(t *testing.T) {
	windows := Default().Windows()
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows, got %d", len(windows))
	}
	wantDays := []int{30, 90, 180, 365}
	for i, w := range windows {
		if w.Days != wantDays[i] {
			t.Fatalf("window %d: days = %d, want %d", i, w.Days, wantDays[i])
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuleSet)
	}{
		{"thresholds inverted", func(r *RuleSet) { r.WorksThreshold = -30; r.FailsThreshold = 30 }},
		{"confidence band empty", func(r *RuleSet) { r.ConfidenceCeiling = r.ConfidenceFloor }},
		{"weight above one", func(r *RuleSet) { r.Weight90d = 1.5 }},
		{"negative weight", func(r *RuleSet) { r.Weight365d = -0.1 }},
		{"zero min indicators", func(r *RuleSet) { r.MinIndicators = 0 }},
		{"loss multiplier above one", func(r *RuleSet) { r.LossMultiplier = 1.2 }},
		{"negative bonus", func(r *RuleSet) { r.ExactBonus = -0.5 }},
		{"zero first bid", func(r *RuleSet) { r.MinFirstBid = 0 }},
		{"zero level divisor", func(r *RuleSet) { r.LevelDivisor = 0 }},
		{"negative grant", func(r *RuleSet) { r.SignupGrantSeeds = -1 }},
	}
	for _, tt := range tests {
		r := Default()
		tt.mutate(&r)
		if err := r.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}
