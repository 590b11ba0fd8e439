package indicator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"seeds/internal/models"
	"seeds/internal/repository/memory"
	"seeds/internal/rules"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIndicatorScoreWeightsAllWindows(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := []point{
		{value: 100, recordedAt: now.AddDate(0, 0, -400)},
		{value: 100, recordedAt: now.AddDate(0, 0, -200)},
		{value: 100, recordedAt: now.AddDate(0, 0, -100)},
		{value: 100, recordedAt: now.AddDate(0, 0, -40)},
		{value: 120, recordedAt: now},
	}
	score, ok := indicatorScore(points, now, rules.Default().Windows())
	if !ok {
		t.Fatalf("expected usable score")
	}
	// Every baseline is 100, variation is +20% in all four windows, and the
	// weights sum to 1.
	if !almostEqual(score, 20) {
		t.Fatalf("score = %f, want 20", score)
	}
}

func TestIndicatorScoreDoesNotRenormalizeMissingWindows(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Only 45 days of history: just the 30d window has a baseline.
	points := []point{
		{value: 100, recordedAt: now.AddDate(0, 0, -45)},
		{value: 150, recordedAt: now},
	}
	score, ok := indicatorScore(points, now, rules.Default().Windows())
	if !ok {
		t.Fatalf("expected usable score")
	}
	// +50% variation weighted only by the 30d weight 0.20; the missing windows
	// shrink the magnitude instead of boosting the 30d weight.
	if !almostEqual(score, 10) {
		t.Fatalf("score = %f, want 10", score)
	}
}

func TestIndicatorScoreSkipsZeroBaseline(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := []point{
		{value: 0, recordedAt: now.AddDate(0, 0, -40)},
		{value: 50, recordedAt: now},
	}
	if _, ok := indicatorScore(points, now, rules.Default().Windows()); ok {
		t.Fatalf("zero baseline must not be usable")
	}
}

func TestLatestAtPicksMostRecentNotAfter(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := []point{
		{value: 1, recordedAt: now.AddDate(0, 0, -10)},
		{value: 2, recordedAt: now.AddDate(0, 0, -5)},
		{value: 3, recordedAt: now.AddDate(0, 0, 5)},
	}
	got, ok := latestAt(points, now)
	if !ok || got != 2 {
		t.Fatalf("latestAt = (%f, %v), want (2, true)", got, ok)
	}
	if _, ok := latestAt(points, now.AddDate(0, 0, -20)); ok {
		t.Fatalf("expected no value before history begins")
	}
}

func TestScoreAveragesIndicators(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	agg := &Aggregator{Repo: store, Rules: rules.Default()}
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	decision := &models.Decision{Title: "migrate billing"}
	if err := store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	// Indicator A: +20% across every window. Indicator B: flat.
	addSeries(t, store, decision.ID, now, 100, 120)
	addSeries(t, store, decision.ID, now, 80, 80)

	score, err := agg.Score(ctx, decision.ID, now)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !almostEqual(score, 10) {
		t.Fatalf("score = %f, want 10", score)
	}
}

func TestScoreInsufficientData(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	agg := &Aggregator{Repo: store, Rules: rules.Default()}

	decision := &models.Decision{Title: "no telemetry"}
	if err := store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if _, err := agg.Score(ctx, decision.ID, time.Now().UTC()); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	// An indicator with a single sample has no baseline in any window.
	ind := &models.Indicator{DecisionID: decision.ID, Name: "latency"}
	if err := store.CreateIndicator(ctx, ind); err != nil {
		t.Fatalf("create indicator: %v", err)
	}
	snap := &models.IndicatorSnapshot{IndicatorID: ind.ID, Value: decimal.NewFromInt(5), RecordedAt: time.Now().UTC()}
	if err := store.UpsertIndicatorSnapshot(ctx, snap); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}
	if _, err := agg.Score(ctx, decision.ID, time.Now().UTC()); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

// addSeries creates one indicator with a baseline sample behind every window and
// a current sample.
func addSeries(t *testing.T, store *memory.Store, decisionID uint64, now time.Time, baseline, current float64) {
	t.Helper()
	ctx := context.Background()
	ind := &models.Indicator{DecisionID: decisionID, Name: "metric"}
	if err := store.CreateIndicator(ctx, ind); err != nil {
		t.Fatalf("create indicator: %v", err)
	}
	for _, daysAgo := range []int{400, 200, 100, 40, 0} {
		value := baseline
		if daysAgo == 0 {
			value = current
		}
		snap := &models.IndicatorSnapshot{
			IndicatorID: ind.ID,
			Value:       decimal.NewFromFloat(value),
			RecordedAt:  now.AddDate(0, 0, -daysAgo),
		}
		if err := store.UpsertIndicatorSnapshot(ctx, snap); err != nil {
			t.Fatalf("upsert snapshot: %v", err)
		}
	}
}
