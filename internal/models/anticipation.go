package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Anticipation is a user's staked prediction on a decision outcome. The stake is
// escrowed at creation and immutable. Settlement fields are written at most once;
// Resolved doubles as the per-item checkpoint when a settlement batch is resumed.
type Anticipation struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	DecisionID   uint64          `gorm:"not null;index:idx_anticipation_decision_open,priority:1"`
	UserID       uint64          `gorm:"not null;index"`
	Issue        string          `gorm:"type:varchar(20);not null"`
	SeedsEngaged decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	Resolved    bool             `gorm:"not null;default:false;index:idx_anticipation_decision_open,priority:2"`
	Result      *string          `gorm:"type:varchar(20)"`
	SeedsEarned *decimal.Decimal `gorm:"type:numeric(20,2)"`
	SettledAt   *time.Time       `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Anticipation) TableName() string {
	return "anticipations"
}
