package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"seeds/internal/models"
)

// ErrAlreadySettled is returned by ApplyBalanceChange when the settlement mark
// targets an anticipation that is already resolved. The caller treats it as a
// skip, never as a failure: no ledger entry is written in that case.
var ErrAlreadySettled = errors.New("anticipation already settled")

// SettlementMark couples a ledger credit with the write-once settlement fields of
// one anticipation so both commit atomically (the crash-safe checkpoint).
type SettlementMark struct {
	AnticipationID uint64
	Result         string
	SeedsEarned    decimal.Decimal
	SettledAt      time.Time
}

// Repository is the single persistence surface of the engine. The gorm
// implementation backs production; the memory implementation backs tests and is
// the reference semantics for the conditional (compare-and-swap) operations.
type Repository interface {
	// Users & wallet.
	CreateUser(ctx context.Context, item *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListTopUsers(ctx context.Context, limit int) ([]models.User, error)

	// Ledger. ApplyBalanceChange atomically appends the transaction and writes the
	// derived balance/level back to the user row. When mark is non-nil the
	// anticipation settlement fields are written in the same transaction, guarded
	// by resolved=false (ErrAlreadySettled when the guard fails).
	ApplyBalanceChange(ctx context.Context, txn *models.SeedsTransaction, level int, mark *SettlementMark) error
	ListSeedsTransactions(ctx context.Context, params ListSeedsTransactionsParams) ([]models.SeedsTransaction, error)
	CountSeedsTransactions(ctx context.Context, params ListSeedsTransactionsParams) (int64, error)
	SumSeedsTransactionAmounts(ctx context.Context, userID uint64) (decimal.Decimal, error)
	LatestSeedsTransaction(ctx context.Context, userID uint64) (*models.SeedsTransaction, error)
	ListUserIDsWithTransactions(ctx context.Context) ([]uint64, error)

	// Decisions.
	CreateDecision(ctx context.Context, item *models.Decision) error
	GetDecisionByID(ctx context.Context, id uint64) (*models.Decision, error)
	ListDecisions(ctx context.Context, params ListDecisionsParams) ([]models.Decision, error)
	CountDecisions(ctx context.Context, params ListDecisionsParams) (int64, error)
	UpdateDecisionStatus(ctx context.Context, id uint64, from []string, to string) (bool, error)
	// ClaimDecisionResolving flips announced|active -> resolving; it is the
	// single-flight gate for a resolution run.
	ClaimDecisionResolving(ctx context.Context, id uint64) (bool, error)
	// MarkDecisionResolved writes the resolution fields; it only succeeds while
	// the claim is held, which makes resolution write-once.
	MarkDecisionResolved(ctx context.Context, id uint64, score decimal.Decimal, outcome string, confidence int, resolvedAt time.Time) (bool, error)
	ListDueUnresolvedDecisions(ctx context.Context, now time.Time, limit int) ([]models.Decision, error)

	// Indicators.
	CreateIndicator(ctx context.Context, item *models.Indicator) error
	GetIndicatorByID(ctx context.Context, id uint64) (*models.Indicator, error)
	ListIndicatorsByDecisionID(ctx context.Context, decisionID uint64) ([]models.Indicator, error)
	UpsertIndicatorSnapshot(ctx context.Context, item *models.IndicatorSnapshot) error
	ListIndicatorSnapshots(ctx context.Context, indicatorID uint64) ([]models.IndicatorSnapshot, error)

	// Anticipations.
	InsertAnticipation(ctx context.Context, item *models.Anticipation) error
	GetAnticipationByID(ctx context.Context, id uint64) (*models.Anticipation, error)
	ListOpenAnticipationsByDecisionID(ctx context.Context, decisionID uint64) ([]models.Anticipation, error)
	CountOpenAnticipationsByDecisionID(ctx context.Context, decisionID uint64) (int64, error)
	ListAnticipations(ctx context.Context, params ListAnticipationsParams) ([]models.Anticipation, error)
	CountAnticipations(ctx context.Context, params ListAnticipationsParams) (int64, error)

	// Featured-argument slots.
	GetTopArgument(ctx context.Context, decisionID uint64, position string) (*models.TopArgument, error)
	ListTopArgumentsByDecisionID(ctx context.Context, decisionID uint64) ([]models.TopArgument, error)
	// CreateTopArgument inserts the slot if and only if it does not exist yet;
	// false means another bidder created it first.
	CreateTopArgument(ctx context.Context, item *models.TopArgument) (bool, error)
	// SwapTopArgumentBid is the CAS: it replaces holder/bid/content only when the
	// stored bid still equals prevBid and the slot is open.
	SwapTopArgumentBid(ctx context.Context, decisionID uint64, position string, prevBid decimal.Decimal, next models.TopArgument) (bool, error)
	CloseTopArgumentsByDecisionID(ctx context.Context, decisionID uint64) (int64, error)
}

type ListSeedsTransactionsParams struct {
	Limit   int
	Offset  int
	UserID  *uint64
	Reason  *string
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListDecisionsParams struct {
	Limit   int
	Offset  int
	Status  *string
	Outcome *string
	Title   *string
	OrderBy string
	Asc     *bool
}

type ListAnticipationsParams struct {
	Limit      int
	Offset     int
	UserID     *uint64
	DecisionID *uint64
	Resolved   *bool
	OrderBy    string
	Asc        *bool
}
