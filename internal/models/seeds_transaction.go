package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger transaction reasons.
const (
	ReasonSignupGrant   = "signup_grant"
	ReasonEscrow        = "escrow"
	ReasonEscrowRefund  = "escrow_refund"
	ReasonSettlement    = "settlement"
	ReasonAuctionRefund = "auction_refund"
)

// SeedsTransaction is one append-only ledger entry. For every user the running
// invariant holds: sum(amount) == users.seeds_balance == latest balance_after.
type SeedsTransaction struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	UserID       uint64          `gorm:"not null;index:idx_seeds_tx_user_created,priority:1"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Reason       string          `gorm:"type:varchar(50);not null;index"`
	Reference    string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CreatedAt    time.Time       `gorm:"type:timestamptz;index:idx_seeds_tx_user_created,priority:2"`
}

func (SeedsTransaction) TableName() string {
	return "seeds_transactions"
}
