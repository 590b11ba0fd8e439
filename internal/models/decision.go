package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Decision statuses. A decision is mutable until it reaches "resolved";
// "resolving" is the single-flight claim held while a resolution run is active.
const (
	DecisionAnnounced = "announced"
	DecisionActive    = "active"
	DecisionResolving = "resolving"
	DecisionResolved  = "resolved"
	DecisionArchived  = "archived"
)

// Resolution outcomes.
const (
	OutcomeWorks   = "works"
	OutcomePartial = "partial"
	OutcomeFails   = "fails"
)

type Decision struct {
	ID      uint64  `gorm:"primaryKey;autoIncrement"`
	Slug    *string `gorm:"type:text;uniqueIndex"`
	Title   string  `gorm:"type:text;not null"`
	Status  string  `gorm:"type:varchar(20);not null;default:announced;index"`
	Summary *string `gorm:"type:text"`

	// Resolution fields, write-once when the decision transitions to resolved.
	ResolutionScore      *decimal.Decimal `gorm:"type:numeric(10,4)"`
	ResolutionOutcome    *string          `gorm:"type:varchar(20);index"`
	ResolutionConfidence *int             ``
	ResolvedAt           *time.Time       `gorm:"type:timestamptz"`

	// When set, the due-decision scan resolves the decision automatically.
	DueAt *time.Time `gorm:"type:timestamptz;index"`

	Detail datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Decision) TableName() string {
	return "decisions"
}

func (d *Decision) IsResolved() bool {
	return d != nil && d.Status == DecisionResolved
}

// ValidOutcome reports whether s is one of the three resolution outcomes.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomeWorks, OutcomePartial, OutcomeFails:
		return true
	}
	return false
}
