package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/repository/memory"
	"seeds/internal/rules"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store, uint64) {
	t.Helper()
	store := memory.New()
	l := New(store, rules.Default(), nil)
	user := &models.User{Username: "alice"}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return l, store, user.ID
}

func TestLevelFor(t *testing.T) {
	l := New(memory.New(), rules.Default(), nil)
	tests := []struct {
		balance int64
		want    int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
	}
	for _, tt := range tests {
		if got := l.LevelFor(decimal.NewFromInt(tt.balance)); got != tt.want {
			t.Fatalf("LevelFor(%d) = %d, want %d", tt.balance, got, tt.want)
		}
	}
}

func TestApplyCreditAndDebit(t *testing.T) {
	l, store, userID := newTestLedger(t)
	ctx := context.Background()

	txn, err := l.Apply(ctx, userID, decimal.NewFromInt(500), models.ReasonSignupGrant)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !txn.BalanceAfter.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance_after = %s, want 500", txn.BalanceAfter)
	}
	if txn.Reference == "" {
		t.Fatalf("reference not set")
	}

	if _, err := l.Escrow(ctx, userID, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("balance = %s, want 380", balance)
	}

	user, err := store.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Level != 2 {
		t.Fatalf("level = %d, want 2", user.Level)
	}
}

func TestApplyRejectsOverdraw(t *testing.T) {
	l, store, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Apply(ctx, userID, decimal.NewFromInt(10), models.ReasonSignupGrant); err != nil {
		t.Fatalf("credit: %v", err)
	}
	_, err := l.Escrow(ctx, userID, decimal.NewFromInt(11))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed debit must leave no trace in the log.
	sum, err := store.SumSeedsTransactionAmounts(ctx, userID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !sum.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("sum = %s, want 10", sum)
	}
}

func TestApplyUnknownUser(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if _, err := l.Apply(context.Background(), 999, decimal.NewFromInt(5), models.ReasonSignupGrant); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestConcurrentAppliesConserve(t *testing.T) {
	l, store, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Apply(ctx, userID, decimal.NewFromInt(1000), models.ReasonSignupGrant); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = l.Apply(ctx, userID, decimal.NewFromInt(7), models.ReasonSettlement)
			} else {
				_, _ = l.Escrow(ctx, userID, decimal.NewFromInt(3))
			}
		}(i)
	}
	wg.Wait()

	// 1000 + 10*7 - 10*3 = 1040 regardless of interleaving.
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1040)) {
		t.Fatalf("balance = %s, want 1040", balance)
	}
	sum, err := store.SumSeedsTransactionAmounts(ctx, userID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !sum.Equal(balance) {
		t.Fatalf("transaction sum %s != balance %s", sum, balance)
	}
	latest, err := store.LatestSeedsTransaction(ctx, userID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.BalanceAfter.Equal(balance) {
		t.Fatalf("latest balance_after %s != balance %s", latest.BalanceAfter, balance)
	}
}

func TestAuditFlagsDriftedBalance(t *testing.T) {
	l, store, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Apply(ctx, userID, decimal.NewFromInt(100), models.ReasonSignupGrant); err != nil {
		t.Fatalf("credit: %v", err)
	}
	report, err := l.Audit(ctx)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if report.UsersChecked != 1 || len(report.Violations) != 0 {
		t.Fatalf("clean ledger reported %+v", report)
	}

	// Write the balance behind the ledger's back; the audit must notice.
	if err := store.ApplyBalanceChange(ctx, &models.SeedsTransaction{
		UserID:       userID,
		Amount:       decimal.NewFromInt(50),
		Reason:       models.ReasonSettlement,
		Reference:    "drift",
		BalanceAfter: decimal.NewFromInt(999),
	}, 1, nil); err != nil {
		t.Fatalf("drift: %v", err)
	}
	report, err = l.Audit(ctx)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(report.Violations) == 0 {
		t.Fatalf("expected violations after drift")
	}
}

func TestApplySettlementIsAtomicWithMark(t *testing.T) {
	l, store, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Apply(ctx, userID, decimal.NewFromInt(100), models.ReasonSignupGrant); err != nil {
		t.Fatalf("credit: %v", err)
	}
	ant := &models.Anticipation{DecisionID: 1, UserID: userID, Issue: models.OutcomeWorks, SeedsEngaged: decimal.NewFromInt(10)}
	if err := store.InsertAnticipation(ctx, ant); err != nil {
		t.Fatalf("insert anticipation: %v", err)
	}

	mark := repository.SettlementMark{AnticipationID: ant.ID, Result: models.OutcomeWorks, SeedsEarned: decimal.NewFromInt(18)}
	if _, err := l.ApplySettlement(ctx, userID, decimal.NewFromInt(28), mark); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Second settlement of the same anticipation is a no-op, not a double credit.
	_, err := l.ApplySettlement(ctx, userID, decimal.NewFromInt(28), mark)
	if !errors.Is(err, repository.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(128)) {
		t.Fatalf("balance = %s, want 128", balance)
	}
}
