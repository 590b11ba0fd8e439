package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Featured-argument positions: one auction slot exists per (decision, position).
const (
	PositionFor     = "for"
	PositionAgainst = "against"
)

// TopArgument is the featured-argument auction slot. CurrentBid only moves up,
// and every mutation is a compare-and-swap against the bid the caller last read.
type TopArgument struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	DecisionID   uint64          `gorm:"not null;uniqueIndex:idx_top_argument_slot,priority:1"`
	Position     string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_top_argument_slot,priority:2"`
	CurrentBid   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Content      string          `gorm:"type:text;not null"`
	HolderUserID uint64          `gorm:"not null;index"`
	Closed       bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz"`
}

func (TopArgument) TableName() string {
	return "top_arguments"
}

func ValidPosition(s string) bool {
	return s == PositionFor || s == PositionAgainst
}
