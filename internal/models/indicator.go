package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Indicator is a time-series metric attached to exactly one decision.
type Indicator struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	DecisionID uint64    `gorm:"not null;index"`
	Name       string    `gorm:"type:text;not null"`
	Unit       *string   `gorm:"type:varchar(50)"`
	Source     *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Indicator) TableName() string {
	return "indicators"
}

// IndicatorSnapshot is one dated sample delivered by the ingestion system.
type IndicatorSnapshot struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	IndicatorID uint64          `gorm:"not null;uniqueIndex:idx_snapshot_indicator_date,priority:1"`
	Value       decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	RecordedAt  time.Time       `gorm:"type:timestamptz;not null;uniqueIndex:idx_snapshot_indicator_date,priority:2"`
	CreatedAt   time.Time       `gorm:"type:timestamptz;autoCreateTime"`
}

func (IndicatorSnapshot) TableName() string {
	return "indicator_snapshots"
}
