// Package settlement converts a resolved decision into per-anticipation Seeds
// gains and losses, driving the ledger. A batch is safe to re-run: every
// anticipation is settled at most once, guarded by its write-once resolved flag.
package settlement

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
)

// ErrNotResolved is returned when settlement is requested for a decision that
// has no resolution yet.
var ErrNotResolved = errors.New("decision not resolved")

type Settler struct {
	Repo    repository.Repository
	Ledger  *ledger.Ledger
	Rules   rules.RuleSet
	Logger  *zap.Logger
	Workers int
}

// Summary reports one settlement run. Failed items stay open for the next run;
// the decision remains queryable as partially settled until Failed reaches zero.
type Summary struct {
	DecisionID uint64 `json:"decision_id"`
	Settled    int    `json:"settled"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// SettleDecision settles every open anticipation of the decision. Items are
// processed by a bounded worker pool: each settlement touches only its own
// anticipation row and its owner's ledger, so they are independent. One item
// failing is logged and skipped, never aborting the rest of the batch.
func (s *Settler) SettleDecision(ctx context.Context, decision *models.Decision) (Summary, error) {
	summary := Summary{}
	if decision == nil {
		return summary, ErrNotResolved
	}
	summary.DecisionID = decision.ID
	if !decision.IsResolved() || decision.ResolutionOutcome == nil || decision.ResolutionConfidence == nil {
		return summary, ErrNotResolved
	}
	outcome := *decision.ResolutionOutcome
	confidence := *decision.ResolutionConfidence

	open, err := s.Repo.ListOpenAnticipationsByDecisionID(ctx, decision.ID)
	if err != nil {
		return summary, err
	}
	if len(open) == 0 {
		return summary, nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}

	var settled, skipped, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, item := range open {
		anticipation := item
		group.Go(func() error {
			earned := ComputeEarnings(s.Rules, anticipation.SeedsEngaged, anticipation.Issue, outcome, confidence)
			credit := anticipation.SeedsEngaged.Add(earned)
			mark := repository.SettlementMark{
				AnticipationID: anticipation.ID,
				Result:         outcome,
				SeedsEarned:    earned,
				SettledAt:      time.Now().UTC(),
			}
			_, err := s.Ledger.ApplySettlement(groupCtx, anticipation.UserID, credit, mark)
			switch {
			case errors.Is(err, repository.ErrAlreadySettled):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				if s.Logger != nil {
					s.Logger.Warn("anticipation settlement failed",
						zap.Uint64("decision_id", decision.ID),
						zap.Uint64("anticipation_id", anticipation.ID),
						zap.Uint64("user_id", anticipation.UserID),
						zap.Error(err),
					)
				}
			default:
				settled.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	summary.Settled = int(settled.Load())
	summary.Skipped = int(skipped.Load())
	summary.Failed = int(failed.Load())
	if s.Logger != nil {
		s.Logger.Info("settlement batch finished",
			zap.Uint64("decision_id", decision.ID),
			zap.String("outcome", outcome),
			zap.Int("confidence", confidence),
			zap.Int("settled", summary.Settled),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// ComputeEarnings is the pure settlement formula. A correct prediction earns
// stake * gain multiplier * (1 + bonus) * confidence%, where the bonus rewards
// exact works/fails calls over partial ones. A wrong prediction loses
// stake * loss multiplier * confidence%, so at most half the stake. Either way
// the magnitude is floored at the configured minimum and rounded to whole
// Seeds.
func ComputeEarnings(ruleSet rules.RuleSet, stake decimal.Decimal, issue, outcome string, confidence int) decimal.Decimal {
	confidenceFactor := decimal.NewFromInt(int64(confidence)).Div(decimal.NewFromInt(100))
	minimum := decimal.NewFromInt(ruleSet.MinEarnSeeds)

	if issue == outcome {
		bonus := ruleSet.PartialBonus
		if outcome == models.OutcomeWorks || outcome == models.OutcomeFails {
			bonus = ruleSet.ExactBonus
		}
		gain := stake.
			Mul(decimal.NewFromFloat(ruleSet.GainMultiplier)).
			Mul(decimal.NewFromFloat(1 + bonus)).
			Mul(confidenceFactor).
			Round(0)
		if gain.LessThan(minimum) {
			gain = minimum
		}
		return gain
	}

	loss := stake.
		Mul(decimal.NewFromFloat(ruleSet.LossMultiplier)).
		Mul(confidenceFactor).
		Round(0)
	if loss.LessThan(minimum) {
		loss = minimum
	}
	return loss.Neg()
}
