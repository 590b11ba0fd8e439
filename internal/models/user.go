package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User carries the wallet subset of the account: balance and level are always
// derived from the transaction log by the ledger, never written directly.
type User struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	Username     string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	SeedsBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Level        int             `gorm:"not null;default:1"`
	CreatedAt    time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
