package models

import "time"

const (
	WatchStateMonitored = "monitored"
	WatchStateAlerted   = "alerted"
	WatchStateExpired   = "expired"
)

// EventWatchState is a long-lived escalation row per exchange market. One row
// per condition id; refreshed on every pass that touches the market.
type EventWatchState struct {
	ID                    uint64     `gorm:"primaryKey;autoIncrement"`
	PolymarketConditionID string     `gorm:"type:varchar(100);not null;uniqueIndex"`
	WatchState            string     `gorm:"type:varchar(20);not null;default:'monitored';index"`
	LastPolyRefresh       *time.Time `gorm:"type:timestamptz"`
	CurrentProbability    *float64   `gorm:"type:numeric(20,10)"`
	PolymarketMatched     bool       `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (EventWatchState) TableName() string {
	return "event_watch_state"
}
