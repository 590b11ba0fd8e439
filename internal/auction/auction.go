// Package auction implements the featured-argument slots: one escalating-bid
// auction per (decision, position). The slot only ever moves to a strictly
// higher bid, enforced by a compare-and-swap on the stored bid, and the outbid
// holder is refunded through the ledger so no Seeds stay locked.
package auction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
)

var (
	ErrInvalidBid       = errors.New("bid must be positive with non-empty content")
	ErrInvalidPosition  = errors.New("position must be for or against")
	ErrDecisionNotFound = errors.New("decision not found")
	// ErrSlotClosed means the decision was archived and its slots accept no
	// further bids.
	ErrSlotClosed = errors.New("featured argument slot closed")
	// ErrBidTooLow covers both the floor on an empty slot and a bid at or below
	// the current one.
	ErrBidTooLow = errors.New("bid too low")
	// ErrConcurrencyConflict means the slot changed under the bidder more times
	// than the retry budget allows; the request can simply be retried.
	ErrConcurrencyConflict = errors.New("slot changed concurrently, try again")
)

type Auction struct {
	Repo   repository.Repository
	Ledger *ledger.Ledger
	Rules  rules.RuleSet
	Logger *zap.Logger
	// MaxRetries bounds transparent retries after a lost swap; defaults to 3.
	MaxRetries int
}

// MinimumNextBid is the authoritative next acceptable bid for a slot. Callers
// (including the UI) must read it from here instead of deriving it themselves.
func (a *Auction) MinimumNextBid(slot *models.TopArgument) decimal.Decimal {
	if slot == nil {
		return decimal.NewFromInt(a.Rules.MinFirstBid)
	}
	return slot.CurrentBid.Add(decimal.NewFromInt(1))
}

// Bid escrows amount for the bidder and installs them as the slot holder. On an
// occupied slot the previous holder's escrowed bid is credited back. A lost
// race is retried transparently up to MaxRetries before surfacing
// ErrConcurrencyConflict.
func (a *Auction) Bid(ctx context.Context, decisionID uint64, position string, userID uint64, content string, amount decimal.Decimal) (*models.TopArgument, error) {
	if !models.ValidPosition(position) {
		return nil, ErrInvalidPosition
	}
	if amount.LessThanOrEqual(decimal.Zero) || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidBid
	}
	decision, err := a.Repo.GetDecisionByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, ErrDecisionNotFound
	}
	if decision.Status == models.DecisionArchived {
		return nil, ErrSlotClosed
	}

	attempts := a.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	for attempt := 0; attempt < attempts; attempt++ {
		slot, err := a.Repo.GetTopArgument(ctx, decisionID, position)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			won, err := a.bidEmpty(ctx, decisionID, position, userID, content, amount)
			if err != nil {
				return nil, err
			}
			if won != nil {
				return won, nil
			}
			// Someone created the slot first; re-read and bid against it.
			continue
		}
		if slot.Closed {
			return nil, ErrSlotClosed
		}
		won, err := a.bidHeld(ctx, slot, userID, content, amount)
		if err != nil {
			return nil, err
		}
		if won != nil {
			return won, nil
		}
	}
	return nil, ErrConcurrencyConflict
}

// bidEmpty claims a not-yet-existing slot. A nil, nil return means the create
// lost the race and the caller should retry against the now-existing slot.
func (a *Auction) bidEmpty(ctx context.Context, decisionID uint64, position string, userID uint64, content string, amount decimal.Decimal) (*models.TopArgument, error) {
	floor := decimal.NewFromInt(a.Rules.MinFirstBid)
	if amount.LessThan(floor) {
		return nil, ErrBidTooLow
	}
	if _, err := a.Ledger.Escrow(ctx, userID, amount); err != nil {
		return nil, err
	}
	slot := &models.TopArgument{
		DecisionID:   decisionID,
		Position:     position,
		CurrentBid:   amount,
		Content:      content,
		HolderUserID: userID,
		UpdatedAt:    time.Now().UTC(),
	}
	created, err := a.Repo.CreateTopArgument(ctx, slot)
	if err != nil {
		a.refund(ctx, userID, amount, "create failed")
		return nil, err
	}
	if !created {
		a.refund(ctx, userID, amount, "slot created concurrently")
		return nil, nil
	}
	a.logBid(slot, nil)
	return slot, nil
}

// bidHeld outbids the current holder. A nil, nil return means the swap lost the
// race and the caller should retry with a fresh read.
func (a *Auction) bidHeld(ctx context.Context, slot *models.TopArgument, userID uint64, content string, amount decimal.Decimal) (*models.TopArgument, error) {
	if amount.LessThanOrEqual(slot.CurrentBid) {
		return nil, ErrBidTooLow
	}
	if _, err := a.Ledger.Escrow(ctx, userID, amount); err != nil {
		return nil, err
	}
	next := models.TopArgument{
		CurrentBid:   amount,
		Content:      content,
		HolderUserID: userID,
		UpdatedAt:    time.Now().UTC(),
	}
	swapped, err := a.Repo.SwapTopArgumentBid(ctx, slot.DecisionID, slot.Position, slot.CurrentBid, next)
	if err != nil {
		a.refund(ctx, userID, amount, "swap failed")
		return nil, err
	}
	if !swapped {
		a.refund(ctx, userID, amount, "lost bid race")
		return nil, nil
	}
	// The outbid holder gets their escrowed Seeds back; without this the old
	// bid would be locked forever since bids cannot be cancelled.
	if _, err := a.Ledger.Apply(ctx, slot.HolderUserID, slot.CurrentBid, models.ReasonAuctionRefund); err != nil && a.Logger != nil {
		a.Logger.Error("outbid refund failed",
			zap.Uint64("decision_id", slot.DecisionID),
			zap.String("position", slot.Position),
			zap.Uint64("holder_user_id", slot.HolderUserID),
			zap.String("amount", slot.CurrentBid.StringFixed(2)),
			zap.Error(err),
		)
	}
	out := *slot
	out.CurrentBid = next.CurrentBid
	out.Content = next.Content
	out.HolderUserID = next.HolderUserID
	out.UpdatedAt = next.UpdatedAt
	a.logBid(&out, slot)
	return &out, nil
}

// Close marks every slot of the decision closed and refunds nothing: the final
// holders keep their featured placement, their bids stay spent.
func (a *Auction) Close(ctx context.Context, decisionID uint64) (int64, error) {
	return a.Repo.CloseTopArgumentsByDecisionID(ctx, decisionID)
}

func (a *Auction) refund(ctx context.Context, userID uint64, amount decimal.Decimal, cause string) {
	if _, err := a.Ledger.Apply(ctx, userID, amount, models.ReasonAuctionRefund); err != nil && a.Logger != nil {
		a.Logger.Error("bid escrow refund failed",
			zap.Uint64("user_id", userID),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("cause", cause),
			zap.Error(err),
		)
	}
}

func (a *Auction) logBid(slot, previous *models.TopArgument) {
	if a.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Uint64("decision_id", slot.DecisionID),
		zap.String("position", slot.Position),
		zap.Uint64("holder_user_id", slot.HolderUserID),
		zap.String("bid", slot.CurrentBid.StringFixed(2)),
	}
	if previous != nil {
		fields = append(fields, zap.Uint64("outbid_user_id", previous.HolderUserID))
	}
	a.Logger.Info("featured argument bid accepted", fields...)
}
