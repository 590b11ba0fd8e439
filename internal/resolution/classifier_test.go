package resolution

import (
	"testing"

	"seeds/internal/models"
	"seeds/internal/rules"
)

func TestClassify(t *testing.T) {
	ruleSet := rules.Default()
	tests := []struct {
		score          float64
		wantOutcome    string
		wantConfidence int
	}{
		{45, models.OutcomeWorks, 95},
		{30, models.OutcomeWorks, 80},
		{29.9, models.OutcomePartial, 79},
		{0, models.OutcomePartial, 50},
		{-10, models.OutcomePartial, 60},
		{-29.9, models.OutcomePartial, 79},
		{-30, models.OutcomeFails, 80},
		{-80, models.OutcomeFails, 100},
		{120, models.OutcomeWorks, 100},
		{-250, models.OutcomeFails, 100},
	}
	for _, tt := range tests {
		outcome, confidence := Classify(ruleSet, tt.score)
		if outcome != tt.wantOutcome || confidence != tt.wantConfidence {
			t.Fatalf("Classify(%.1f) = (%s, %d), want (%s, %d)",
				tt.score, outcome, confidence, tt.wantOutcome, tt.wantConfidence)
		}
	}
}
