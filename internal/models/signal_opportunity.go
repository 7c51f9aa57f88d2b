package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Signal side on the exchange's binary contract.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Signal tiers, weakest first.
const (
	TierStatic = "static"
	TierStrong = "strong"
	TierElite  = "elite"
)

// Signal lifecycle states.
const (
	SignalActive    = "active"
	SignalExecuted  = "executed"
	SignalExpired   = "expired"
	SignalDismissed = "dismissed"
)

// Trigger reasons.
const (
	TriggerEdge     = "edge"
	TriggerMovement = "movement"
	TriggerBoth     = "both"
)

// Urgency buckets, derived from time to event start.
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// SignalOpportunity is the detector's output row. At most one active signal
// exists per (event_name, recommended_outcome); the partial unique index in
// the migration enforces it.
type SignalOpportunity struct {
	ID                    uint64  `gorm:"primaryKey;autoIncrement"`
	EventName             string  `gorm:"type:text;not null;index"`
	RecommendedOutcome    string  `gorm:"type:varchar(120);not null"`
	Side                  string  `gorm:"type:varchar(3);not null"`
	SportCode             *string `gorm:"type:varchar(20);index"`
	PolymarketConditionID *string `gorm:"type:varchar(100);index"`

	// PolymarketPrice is the price of the recommended side, not always the
	// YES price.
	PolymarketPrice   float64         `gorm:"type:numeric(20,10);not null"`
	PolymarketVolume  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	BookmakerProbFair float64         `gorm:"type:numeric(20,10);not null"`
	EdgePercent       float64         `gorm:"type:numeric(20,10);not null"`
	SignalStrength    float64         `gorm:"type:numeric(20,10);not null"`

	SignalTier        string   `gorm:"type:varchar(10);not null;index"`
	TriggerReason     string   `gorm:"type:varchar(10);not null"`
	MovementConfirmed bool     `gorm:"not null;default:false"`
	MovementVelocity  *float64 `gorm:"type:numeric(20,10)"`
	ConfidenceScore   float64  `gorm:"not null"`
	Urgency           string   `gorm:"type:varchar(10);not null;default:'normal'"`

	Status        string         `gorm:"type:varchar(10);not null;default:'active';index"`
	ExpiresAt     *time.Time     `gorm:"type:timestamptz;index"`
	SignalFactors datatypes.JSON `gorm:"type:jsonb"`

	PolymarketUpdatedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt           time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt           time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SignalOpportunity) TableName() string {
	return "signal_opportunities"
}
