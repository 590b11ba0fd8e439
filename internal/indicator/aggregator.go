// Package indicator converts raw indicator time-series into the single weighted
// score a decision is classified from.
package indicator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
)

// ErrInsufficientData means no indicator of the decision had a single usable
// lookback window; resolution must not proceed.
var ErrInsufficientData = errors.New("no usable indicator data")

type Aggregator struct {
	Repo   repository.Repository
	Rules  rules.RuleSet
	Logger *zap.Logger
}

type point struct {
	value      float64
	recordedAt time.Time
}

// Score aggregates every indicator of the decision into one signed score in
// percentage points. Per indicator, each window contributes
// weight * percentage variation between the window baseline and the latest
// snapshot; windows without a baseline are dropped without renormalizing the
// remaining weights, so sparse history shrinks magnitude rather than inflating
// the windows that do have data. Indicators are averaged with equal weight.
func (a *Aggregator) Score(ctx context.Context, decisionID uint64, now time.Time) (float64, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	indicators, err := a.Repo.ListIndicatorsByDecisionID(ctx, decisionID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	usable := 0
	for _, ind := range indicators {
		snapshots, err := a.Repo.ListIndicatorSnapshots(ctx, ind.ID)
		if err != nil {
			return 0, err
		}
		score, ok := indicatorScore(toPoints(snapshots), now, a.Rules.Windows())
		if !ok {
			if a.Logger != nil {
				a.Logger.Debug("indicator has no usable window",
					zap.Uint64("decision_id", decisionID),
					zap.Uint64("indicator_id", ind.ID),
					zap.Int("snapshots", len(snapshots)),
				)
			}
			continue
		}
		total += score
		usable++
	}
	if usable < a.Rules.MinIndicators || usable == 0 {
		return 0, ErrInsufficientData
	}
	return total / float64(usable), nil
}

func toPoints(snapshots []models.IndicatorSnapshot) []point {
	out := make([]point, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, point{value: s.Value.InexactFloat64(), recordedAt: s.RecordedAt})
	}
	return out
}

// indicatorScore computes the weighted sum of window variations for one
// indicator. It reports false when not a single window is usable.
func indicatorScore(points []point, now time.Time, windows []rules.Window) (float64, bool) {
	current, ok := latestAt(points, now)
	if !ok {
		return 0, false
	}
	score := 0.0
	usable := 0
	for _, w := range windows {
		cutoff := now.AddDate(0, 0, -w.Days)
		baseline, ok := latestAt(points, cutoff)
		if !ok || baseline == 0 {
			continue
		}
		variation := (current - baseline) / baseline * 100
		score += w.Weight * variation
		usable++
	}
	if usable == 0 {
		return 0, false
	}
	return score, true
}

// latestAt returns the most recent value recorded at or before the instant.
func latestAt(points []point, at time.Time) (float64, bool) {
	found := false
	var best point
	for _, p := range points {
		if p.recordedAt.After(at) {
			continue
		}
		if !found || p.recordedAt.After(best.recordedAt) {
			best = p
			found = true
		}
	}
	return best.value, found
}
