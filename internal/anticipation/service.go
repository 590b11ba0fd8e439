// Package anticipation handles stake placement: validate, escrow the stake
// through the ledger, record the anticipation.
package anticipation

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository"
)

var (
	ErrInvalidStake     = errors.New("seeds engaged must be positive")
	ErrInvalidIssue     = errors.New("issue must be works, partial or fails")
	ErrDecisionNotFound = errors.New("decision not found")
	// ErrDecisionClosed means the decision already resolved (or was archived);
	// no further anticipations can be placed on it.
	ErrDecisionClosed = errors.New("decision no longer accepts anticipations")
)

type Service struct {
	Repo   repository.Repository
	Ledger *ledger.Ledger
	Logger *zap.Logger
}

// Place escrows the stake and records the anticipation. The escrow happens
// first: a failed insert refunds it, so no Seeds can leak out of the ledger.
func (s *Service) Place(ctx context.Context, decisionID, userID uint64, issue string, seedsEngaged decimal.Decimal) (*models.Anticipation, error) {
	if seedsEngaged.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidStake
	}
	if !models.ValidOutcome(issue) {
		return nil, ErrInvalidIssue
	}
	decision, err := s.Repo.GetDecisionByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, ErrDecisionNotFound
	}
	if decision.Status != models.DecisionAnnounced && decision.Status != models.DecisionActive {
		return nil, ErrDecisionClosed
	}

	if _, err := s.Ledger.Escrow(ctx, userID, seedsEngaged); err != nil {
		return nil, err
	}
	item := &models.Anticipation{
		DecisionID:   decisionID,
		UserID:       userID,
		Issue:        issue,
		SeedsEngaged: seedsEngaged,
	}
	if err := s.Repo.InsertAnticipation(ctx, item); err != nil {
		// Return the escrowed stake rather than stranding it.
		if _, refundErr := s.Ledger.Apply(ctx, userID, seedsEngaged, models.ReasonEscrowRefund); refundErr != nil && s.Logger != nil {
			s.Logger.Error("escrow refund after failed anticipation insert",
				zap.Uint64("user_id", userID),
				zap.String("amount", seedsEngaged.StringFixed(2)),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("anticipation placed",
			zap.Uint64("decision_id", decisionID),
			zap.Uint64("user_id", userID),
			zap.String("issue", issue),
			zap.String("seeds_engaged", seedsEngaged.StringFixed(2)),
		)
	}
	return item, nil
}
