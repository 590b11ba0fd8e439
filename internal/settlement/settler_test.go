package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository/memory"
	"seeds/internal/rules"
)

func TestComputeEarnings(t *testing.T) {
	ruleSet := rules.Default()
	tests := []struct {
		name       string
		stake      int64
		issue      string
		outcome    string
		confidence int
		want       int64
	}{
		// 10 * 1.5 * 1.5 * 0.80 = 18
		{"exact works", 10, models.OutcomeWorks, models.OutcomeWorks, 80, 18},
		// 10 * 1.5 * 1.5 * 1.00 = 22.5 -> 23 (round half away from zero)
		{"exact works full confidence", 10, models.OutcomeWorks, models.OutcomeWorks, 100, 23},
		// 10 * 1.5 * 1.2 * 0.50 = 9
		{"partial match", 10, models.OutcomePartial, models.OutcomePartial, 50, 9},
		// exact fails carries the same bonus as works
		{"exact fails", 20, models.OutcomeFails, models.OutcomeFails, 100, 45},
		// 20 * 0.5 * 0.80 = 8 lost
		{"wrong call", 20, models.OutcomeWorks, models.OutcomeFails, 80, -8},
		// magnitude floored at 1 on both sides
		{"tiny gain floored", 1, models.OutcomeWorks, models.OutcomeWorks, 50, 1},
		{"tiny loss floored", 1, models.OutcomeWorks, models.OutcomePartial, 50, -1},
	}
	for _, tt := range tests {
		got := ComputeEarnings(ruleSet, decimal.NewFromInt(tt.stake), tt.issue, tt.outcome, tt.confidence)
		if !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Fatalf("%s: ComputeEarnings = %s, want %d", tt.name, got, tt.want)
		}
	}
}

func TestLossNeverExceedsHalfStake(t *testing.T) {
	ruleSet := rules.Default()
	for _, stake := range []int64{2, 10, 100, 1000} {
		loss := ComputeEarnings(ruleSet, decimal.NewFromInt(stake), models.OutcomeWorks, models.OutcomeFails, 100)
		half := decimal.NewFromInt(stake).Div(decimal.NewFromInt(2))
		if loss.Neg().GreaterThan(half) {
			t.Fatalf("stake %d: loss %s exceeds half the stake", stake, loss.Neg())
		}
	}
}

func newSettledFixture(t *testing.T) (*Settler, *memory.Store, *models.Decision, []uint64) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ruleSet := rules.Default()
	seedsLedger := ledger.New(store, ruleSet, nil)
	settler := &Settler{Repo: store, Ledger: seedsLedger, Rules: ruleSet, Workers: 4}

	outcome := models.OutcomeWorks
	confidence := 80
	score := decimal.NewFromInt(42)
	resolvedAt := time.Now().UTC()
	decision := &models.Decision{
		Title:                "adopt the new queue",
		Status:               models.DecisionResolved,
		ResolutionScore:      &score,
		ResolutionOutcome:    &outcome,
		ResolutionConfidence: &confidence,
		ResolvedAt:           &resolvedAt,
	}
	if err := store.CreateDecision(ctx, decision); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	var userIDs []uint64
	for _, name := range []string{"right", "wrong"} {
		user := &models.User{Username: name}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if _, err := seedsLedger.Apply(ctx, user.ID, decimal.NewFromInt(100), models.ReasonSignupGrant); err != nil {
			t.Fatalf("grant: %v", err)
		}
		userIDs = append(userIDs, user.ID)
	}
	return settler, store, decision, userIDs
}

func TestSettleDecisionCreditsAndDebits(t *testing.T) {
	settler, store, decision, userIDs := newSettledFixture(t)
	ctx := context.Background()

	right := &models.Anticipation{DecisionID: decision.ID, UserID: userIDs[0], Issue: models.OutcomeWorks, SeedsEngaged: decimal.NewFromInt(10)}
	wrong := &models.Anticipation{DecisionID: decision.ID, UserID: userIDs[1], Issue: models.OutcomeFails, SeedsEngaged: decimal.NewFromInt(20)}
	for _, a := range []*models.Anticipation{right, wrong} {
		if err := store.InsertAnticipation(ctx, a); err != nil {
			t.Fatalf("insert anticipation: %v", err)
		}
	}

	summary, err := settler.SettleDecision(ctx, decision)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if summary.Settled != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	// Correct works call at confidence 80: stake 10 returns with +18.
	rightUser, _ := store.GetUserByID(ctx, userIDs[0])
	if !rightUser.SeedsBalance.Equal(decimal.NewFromInt(128)) {
		t.Fatalf("winner balance = %s, want 128", rightUser.SeedsBalance)
	}
	// Wrong call: stake 20 returns minus 8.
	wrongUser, _ := store.GetUserByID(ctx, userIDs[1])
	if !wrongUser.SeedsBalance.Equal(decimal.NewFromInt(112)) {
		t.Fatalf("loser balance = %s, want 112", wrongUser.SeedsBalance)
	}

	settled, err := store.GetAnticipationByID(ctx, right.ID)
	if err != nil {
		t.Fatalf("get anticipation: %v", err)
	}
	if !settled.Resolved || settled.Result == nil || *settled.Result != models.OutcomeWorks {
		t.Fatalf("anticipation not marked settled: %+v", settled)
	}
	if settled.SeedsEarned == nil || !settled.SeedsEarned.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("seeds_earned = %v, want 18", settled.SeedsEarned)
	}
}

func TestSettleDecisionRerunSkips(t *testing.T) {
	settler, store, decision, userIDs := newSettledFixture(t)
	ctx := context.Background()

	ant := &models.Anticipation{DecisionID: decision.ID, UserID: userIDs[0], Issue: models.OutcomeWorks, SeedsEngaged: decimal.NewFromInt(10)}
	if err := store.InsertAnticipation(ctx, ant); err != nil {
		t.Fatalf("insert anticipation: %v", err)
	}

	if _, err := settler.SettleDecision(ctx, decision); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := settler.SettleDecision(ctx, decision)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Settled != 0 || summary.Failed != 0 {
		t.Fatalf("second run summary = %+v", summary)
	}

	user, _ := store.GetUserByID(ctx, userIDs[0])
	if !user.SeedsBalance.Equal(decimal.NewFromInt(128)) {
		t.Fatalf("balance after rerun = %s, want 128", user.SeedsBalance)
	}
}

func TestSettleDecisionRequiresResolution(t *testing.T) {
	settler, store, _, _ := newSettledFixture(t)
	ctx := context.Background()
	open := &models.Decision{Title: "still open", Status: models.DecisionActive}
	if err := store.CreateDecision(ctx, open); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if _, err := settler.SettleDecision(ctx, open); err != ErrNotResolved {
		t.Fatalf("expected ErrNotResolved, got %v", err)
	}
	if _, err := settler.SettleDecision(ctx, nil); err != ErrNotResolved {
		t.Fatalf("expected ErrNotResolved for nil decision, got %v", err)
	}
}
