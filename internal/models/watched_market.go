package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Monitoring status for a cached exchange market.
const (
	MonitoringIdle      = "idle"
	MonitoringWatching  = "watching"
	MonitoringTriggered = "triggered"
	MonitoringExpired   = "expired"
)

// Row source for cache entries.
const (
	SourceAPI       = "api"
	SourceFirecrawl = "firecrawl"
)

// Market lifecycle status mirrored from the exchange.
const (
	MarketActive = "active"
	MarketClosed = "closed"
)

// WatchedMarket is one exchange market under surveillance, keyed by the
// exchange's stable condition id. Rows are written by the catalog sync (or an
// external scanner) and mutated by the detector: price refresh, monitoring
// escalation, expiry.
type WatchedMarket struct {
	ConditionID      string          `gorm:"column:condition_id;type:varchar(100);primaryKey"`
	EventTitle       string          `gorm:"type:text;not null"`
	Question         string          `gorm:"type:text"`
	SportCode        *string         `gorm:"type:varchar(20);index"`
	MarketType       string          `gorm:"type:varchar(20);not null;default:'h2h'"`
	YesTokenID       *string         `gorm:"type:varchar(120);index"`
	NoTokenID        *string         `gorm:"type:varchar(120)"`
	CachedYesPrice   *float64        `gorm:"type:numeric(20,10)"`
	CachedVolume     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	EventStartTime   *time.Time      `gorm:"type:timestamptz;index"`
	MonitoringStatus string          `gorm:"type:varchar(20);not null;default:'idle';index"`
	Status           string          `gorm:"type:varchar(20);not null;default:'active';index"`
	Source           *string         `gorm:"type:varchar(20);index"`
	LastPolyRefresh  *time.Time      `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WatchedMarket) TableName() string {
	return "polymarket_h2h_cache"
}
