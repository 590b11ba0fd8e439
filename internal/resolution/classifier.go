package resolution

import (
	"seeds/internal/models"
	"seeds/internal/rules"
)

// Classify maps an aggregated indicator score to an outcome and confidence.
// Pure: score >= works threshold -> works, score <= fails threshold -> fails,
// anything between -> partial. Confidence grows with score magnitude, clamped
// to the configured band.
func Classify(ruleSet rules.RuleSet, score float64) (string, int) {
	outcome := models.OutcomePartial
	switch {
	case score >= ruleSet.WorksThreshold:
		outcome = models.OutcomeWorks
	case score <= ruleSet.FailsThreshold:
		outcome = models.OutcomeFails
	}

	magnitude := score
	if magnitude < 0 {
		magnitude = -magnitude
	}
	confidence := ruleSet.ConfidenceFloor + int(magnitude)
	if confidence < ruleSet.ConfidenceFloor {
		confidence = ruleSet.ConfidenceFloor
	}
	if confidence > ruleSet.ConfidenceCeiling {
		confidence = ruleSet.ConfidenceCeiling
	}
	return outcome, confidence
}
