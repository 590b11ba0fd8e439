package resolution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"seeds/internal/indicator"
	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/repository/memory"
	"seeds/internal/rules"
	"seeds/internal/settlement"
)

type fixture struct {
	store    *memory.Store
	ledger   *ledger.Ledger
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ruleSet := rules.Default()
	seedsLedger := ledger.New(store, ruleSet, nil)
	agg := &indicator.Aggregator{Repo: store, Rules: ruleSet}
	settler := &settlement.Settler{Repo: store, Ledger: seedsLedger, Rules: ruleSet, Workers: 2}
	return &fixture{
		store:  store,
		ledger: seedsLedger,
		resolver: &Resolver{
			Repo:       store,
			Aggregator: agg,
			Settler:    settler,
			Rules:      ruleSet,
		},
	}
}

func (f *fixture) newUser(t *testing.T, name string, grant int64) uint64 {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Username: name}
	if err := f.store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := f.ledger.Apply(ctx, user.ID, decimal.NewFromInt(grant), models.ReasonSignupGrant); err != nil {
		t.Fatalf("grant: %v", err)
	}
	return user.ID
}

// seedIndicator gives the decision one indicator with baseline samples behind
// every lookback window, moving from baseline to current.
func (f *fixture) seedIndicator(t *testing.T, decisionID uint64, baseline, current float64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	ind := &models.Indicator{DecisionID: decisionID, Name: "throughput"}
	if err := f.store.CreateIndicator(ctx, ind); err != nil {
		t.Fatalf("create indicator: %v", err)
	}
	for _, daysAgo := range []int{400, 200, 100, 40} {
		snap := &models.IndicatorSnapshot{
			IndicatorID: ind.ID,
			Value:       decimal.NewFromFloat(baseline),
			RecordedAt:  now.AddDate(0, 0, -daysAgo),
		}
		if err := f.store.UpsertIndicatorSnapshot(ctx, snap); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	snap := &models.IndicatorSnapshot{
		IndicatorID: ind.ID,
		Value:       decimal.NewFromFloat(current),
		RecordedAt:  now.Add(-time.Hour),
	}
	if err := f.store.UpsertIndicatorSnapshot(ctx, snap); err != nil {
		t.Fatalf("upsert current: %v", err)
	}
}

func TestResolveEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision := &models.Decision{Title: "ship the rewrite", Status: models.DecisionActive}
	if err := f.store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	// +40% across every window -> score 40 -> works at confidence 90.
	f.seedIndicator(t, decision.ID, 100, 140)

	userID := f.newUser(t, "carol", 100)
	ant := &models.Anticipation{DecisionID: decision.ID, UserID: userID, Issue: models.OutcomeWorks, SeedsEngaged: decimal.NewFromInt(10)}
	if err := f.store.InsertAnticipation(ctx, ant); err != nil {
		t.Fatalf("insert anticipation: %v", err)
	}

	result, err := f.resolver.Resolve(ctx, decision.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Outcome != models.OutcomeWorks {
		t.Fatalf("outcome = %s, want works", result.Outcome)
	}
	if result.Confidence != 90 {
		t.Fatalf("confidence = %d, want 90", result.Confidence)
	}
	if result.AlreadyRun {
		t.Fatalf("first resolve reported as already run")
	}
	if result.Settlement.Settled != 1 {
		t.Fatalf("settlement = %+v, want 1 settled", result.Settlement)
	}

	stored, _ := f.store.GetDecisionByID(ctx, decision.ID)
	if stored.Status != models.DecisionResolved || stored.ResolutionOutcome == nil {
		t.Fatalf("decision not resolved: %+v", stored)
	}

	// stake 10 works at confidence 90: 10*1.5*1.5*0.9 = 20.25 -> 20 earned.
	balance, err := f.ledger.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("balance = %s, want 130", balance)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision := &models.Decision{Title: "cache layer", Status: models.DecisionActive}
	if err := f.store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	f.seedIndicator(t, decision.ID, 100, 140)
	userID := f.newUser(t, "dave", 100)
	ant := &models.Anticipation{DecisionID: decision.ID, UserID: userID, Issue: models.OutcomeFails, SeedsEngaged: decimal.NewFromInt(10)}
	if err := f.store.InsertAnticipation(ctx, ant); err != nil {
		t.Fatalf("insert anticipation: %v", err)
	}

	first, err := f.resolver.Resolve(ctx, decision.ID)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	txnsAfterFirst, err := f.store.CountSeedsTransactions(ctx, repository.ListSeedsTransactionsParams{UserID: &userID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	second, err := f.resolver.Resolve(ctx, decision.ID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !second.AlreadyRun {
		t.Fatalf("second resolve not flagged as already run")
	}
	if second.Outcome != first.Outcome || second.Confidence != first.Confidence {
		t.Fatalf("second resolve changed the resolution: %+v vs %+v", second, first)
	}
	if second.Settlement.Settled != 0 {
		t.Fatalf("second resolve settled again: %+v", second.Settlement)
	}
	txnsAfterSecond, err := f.store.CountSeedsTransactions(ctx, repository.ListSeedsTransactionsParams{UserID: &userID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if txnsAfterSecond != txnsAfterFirst {
		t.Fatalf("second resolve wrote %d new transactions", txnsAfterSecond-txnsAfterFirst)
	}
}

func TestResolveWithoutDataReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision := &models.Decision{Title: "no indicators yet", Status: models.DecisionActive}
	if err := f.store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	_, err := f.resolver.Resolve(ctx, decision.ID)
	if !errors.Is(err, indicator.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	stored, _ := f.store.GetDecisionByID(ctx, decision.ID)
	if stored.Status != models.DecisionActive {
		t.Fatalf("status after failed resolve = %s, want active", stored.Status)
	}
	if stored.ResolutionOutcome != nil {
		t.Fatalf("failed resolve wrote an outcome")
	}
}

func TestResolveGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.resolver.Resolve(ctx, 404); !errors.Is(err, ErrDecisionNotFound) {
		t.Fatalf("expected ErrDecisionNotFound, got %v", err)
	}

	archived := &models.Decision{Title: "old", Status: models.DecisionArchived}
	if err := f.store.CreateDecision(ctx, archived); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, archived.ID); !errors.Is(err, ErrDecisionArchived) {
		t.Fatalf("expected ErrDecisionArchived, got %v", err)
	}

	claimed := &models.Decision{Title: "mid-flight", Status: models.DecisionResolving}
	if err := f.store.CreateDecision(ctx, claimed); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, claimed.ID); !errors.Is(err, ErrResolutionInProgress) {
		t.Fatalf("expected ErrResolutionInProgress, got %v", err)
	}
}

func TestResolveDueSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	due := &models.Decision{Title: "due", Status: models.DecisionActive, DueAt: &overdue}
	notYet := &models.Decision{Title: "not yet", Status: models.DecisionActive, DueAt: &future}
	for _, d := range []*models.Decision{due, notYet} {
		if err := f.store.CreateDecision(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	f.seedIndicator(t, due.ID, 100, 90)

	resolved := f.resolver.ResolveDue(ctx, now, 10)
	if resolved != 1 {
		t.Fatalf("ResolveDue = %d, want 1", resolved)
	}
	stored, _ := f.store.GetDecisionByID(ctx, due.ID)
	if stored.Status != models.DecisionResolved {
		t.Fatalf("due decision status = %s, want resolved", stored.Status)
	}
	untouched, _ := f.store.GetDecisionByID(ctx, notYet.ID)
	if untouched.Status != models.DecisionActive {
		t.Fatalf("future decision was touched: %s", untouched.Status)
	}
}
