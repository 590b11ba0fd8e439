// Package ledger owns every Seeds balance mutation. Other components never
// write balances; they request a signed application through Apply/Escrow and the
// ledger appends a transaction, recomputes the derived balance and level, and
// persists both atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
)

var (
	ErrInsufficientFunds = errors.New("insufficient seeds balance")
	ErrUserNotFound      = errors.New("user not found")
)

type Ledger struct {
	Repo   repository.Repository
	Rules  rules.RuleSet
	Logger *zap.Logger

	// Serializes read-compute-write per user; mutations on different users
	// proceed in parallel.
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func New(repo repository.Repository, ruleSet rules.RuleSet, logger *zap.Logger) *Ledger {
	return &Ledger{
		Repo:   repo,
		Rules:  ruleSet,
		Logger: logger,
		locks:  map[uint64]*sync.Mutex{},
	}
}

func (l *Ledger) userLock(userID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// Apply appends one signed transaction for the user. A debit that would push the
// balance below zero is rejected with ErrInsufficientFunds and nothing is
// written.
func (l *Ledger) Apply(ctx context.Context, userID uint64, amount decimal.Decimal, reason string) (*models.SeedsTransaction, error) {
	return l.apply(ctx, userID, amount, reason, nil)
}

// ApplySettlement is Apply plus the write-once settlement mark of one
// anticipation, committed in the same repository transaction. When the
// anticipation is already settled no ledger entry is written and
// repository.ErrAlreadySettled is returned.
func (l *Ledger) ApplySettlement(ctx context.Context, userID uint64, amount decimal.Decimal, mark repository.SettlementMark) (*models.SeedsTransaction, error) {
	return l.apply(ctx, userID, amount, models.ReasonSettlement, &mark)
}

func (l *Ledger) apply(ctx context.Context, userID uint64, amount decimal.Decimal, reason string, mark *repository.SettlementMark) (*models.SeedsTransaction, error) {
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	next := user.SeedsBalance.Add(amount)
	if amount.IsNegative() && next.IsNegative() {
		return nil, fmt.Errorf("%w: balance=%s requested=%s", ErrInsufficientFunds, user.SeedsBalance.String(), amount.String())
	}

	txn := &models.SeedsTransaction{
		UserID:       userID,
		Amount:       amount,
		Reason:       reason,
		Reference:    uuid.NewString(),
		BalanceAfter: next,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.Repo.ApplyBalanceChange(ctx, txn, l.LevelFor(next), mark); err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Debug("ledger applied",
			zap.Uint64("user_id", userID),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("reason", reason),
			zap.String("balance_after", next.StringFixed(2)),
		)
	}
	return txn, nil
}

// Escrow debits amount from the user, holding it outside the balance until a
// settlement or refund credits it back.
func (l *Ledger) Escrow(ctx context.Context, userID uint64, amount decimal.Decimal) (*models.SeedsTransaction, error) {
	return l.Apply(ctx, userID, amount.Neg(), models.ReasonEscrow)
}

// Balance reads the live balance.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	user, err := l.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, ErrUserNotFound
	}
	return user.SeedsBalance, nil
}

// LevelFor derives the progression level from a balance:
// floor(sqrt(balance/divisor)) + 1, so 0-99 is level 1, 100-399 level 2,
// 400-899 level 3 and so on.
func (l *Ledger) LevelFor(balance decimal.Decimal) int {
	divisor := l.Rules.LevelDivisor
	if divisor <= 0 {
		divisor = 100
	}
	value := balance.InexactFloat64()
	if value < 0 {
		value = 0
	}
	return int(math.Floor(math.Sqrt(value/float64(divisor)))) + 1
}
