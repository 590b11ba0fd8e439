// Package resolution runs the one-time computation that assigns a decision its
// final outcome: aggregate indicators, classify the score, write the resolution
// once, then settle every open anticipation.
package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/indicator"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
	"seeds/internal/settlement"
)

var (
	ErrDecisionNotFound = errors.New("decision not found")
	// ErrResolutionInProgress means another run currently holds the resolving
	// claim; callers may retry shortly.
	ErrResolutionInProgress = errors.New("resolution already in progress")
	// ErrDecisionArchived means the decision can no longer be resolved.
	ErrDecisionArchived = errors.New("decision archived")
)

type Resolver struct {
	Repo       repository.Repository
	Aggregator *indicator.Aggregator
	Settler    *settlement.Settler
	Rules      rules.RuleSet
	Logger     *zap.Logger
}

// Result is what a resolve call reports, whether this call performed the
// resolution or found it already done.
type Result struct {
	DecisionID uint64             `json:"decision_id"`
	Score      decimal.Decimal    `json:"score"`
	Outcome    string             `json:"outcome"`
	Confidence int                `json:"confidence"`
	ResolvedAt time.Time          `json:"resolved_at"`
	AlreadyRun bool               `json:"already_resolved"`
	Settlement settlement.Summary `json:"settlement"`
}

// Resolve computes and writes the resolution of one decision, then settles its
// anticipations. It is idempotent: a decision that is already resolved is not
// re-scored, only its settlement is re-driven (which itself settles nothing
// when all anticipations are closed). Single-flight is enforced through a
// status claim, so two concurrent calls cannot both resolve.
func (r *Resolver) Resolve(ctx context.Context, decisionID uint64) (*Result, error) {
	decision, err := r.Repo.GetDecisionByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, ErrDecisionNotFound
	}

	switch decision.Status {
	case models.DecisionArchived:
		return nil, ErrDecisionArchived
	case models.DecisionResolved:
		return r.resettle(ctx, decision)
	case models.DecisionResolving:
		return nil, ErrResolutionInProgress
	}

	claimed, err := r.Repo.ClaimDecisionResolving(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race: either a concurrent run holds the claim or the
		// decision resolved in between.
		fresh, err := r.Repo.GetDecisionByID(ctx, decisionID)
		if err != nil {
			return nil, err
		}
		if fresh != nil && fresh.IsResolved() {
			return r.resettle(ctx, fresh)
		}
		return nil, ErrResolutionInProgress
	}

	now := time.Now().UTC()
	score, err := r.Aggregator.Score(ctx, decisionID, now)
	if err != nil {
		// Computation failures must not leave the decision resolved or stuck
		// in resolving; hand the claim back.
		if _, releaseErr := r.Repo.UpdateDecisionStatus(ctx, decisionID, []string{models.DecisionResolving}, decision.Status); releaseErr != nil && r.Logger != nil {
			r.Logger.Error("failed to release resolving claim",
				zap.Uint64("decision_id", decisionID),
				zap.Error(releaseErr),
			)
		}
		return nil, err
	}

	outcome, confidence := Classify(r.Rules, score)
	scoreDec := decimal.NewFromFloat(score).Round(4)
	written, err := r.Repo.MarkDecisionResolved(ctx, decisionID, scoreDec, outcome, confidence, now)
	if err != nil {
		return nil, err
	}
	if !written {
		return nil, ErrResolutionInProgress
	}
	if r.Logger != nil {
		r.Logger.Info("decision resolved",
			zap.Uint64("decision_id", decisionID),
			zap.String("score", scoreDec.String()),
			zap.String("outcome", outcome),
			zap.Int("confidence", confidence),
		)
	}

	resolved, err := r.Repo.GetDecisionByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	summary, err := r.Settler.SettleDecision(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return &Result{
		DecisionID: decisionID,
		Score:      scoreDec,
		Outcome:    outcome,
		Confidence: confidence,
		ResolvedAt: now,
		Settlement: summary,
	}, nil
}

// resettle re-runs settlement for an already resolved decision. This is the
// operator remediation path for partially settled batches and makes Resolve
// idempotent.
func (r *Resolver) resettle(ctx context.Context, decision *models.Decision) (*Result, error) {
	summary, err := r.Settler.SettleDecision(ctx, decision)
	if err != nil {
		return nil, err
	}
	out := &Result{
		DecisionID: decision.ID,
		Outcome:    derefString(decision.ResolutionOutcome),
		Confidence: derefInt(decision.ResolutionConfidence),
		AlreadyRun: true,
		Settlement: summary,
	}
	if decision.ResolutionScore != nil {
		out.Score = *decision.ResolutionScore
	}
	if decision.ResolvedAt != nil {
		out.ResolvedAt = *decision.ResolvedAt
	}
	return out, nil
}

// ResolveDue resolves every decision whose due date has passed. Used by the
// scheduler; failures are logged per decision so one bad decision cannot block
// the sweep.
func (r *Resolver) ResolveDue(ctx context.Context, now time.Time, limit int) int {
	due, err := r.Repo.ListDueUnresolvedDecisions(ctx, now, limit)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("due decision scan failed", zap.Error(err))
		}
		return 0
	}
	resolved := 0
	for _, decision := range due {
		if _, err := r.Resolve(ctx, decision.ID); err != nil {
			if r.Logger != nil {
				r.Logger.Warn("auto-resolution failed",
					zap.Uint64("decision_id", decision.ID),
					zap.Error(err),
				)
			}
			continue
		}
		resolved++
	}
	return resolved
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
