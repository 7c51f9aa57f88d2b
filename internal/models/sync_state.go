package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState tracks the progress of background jobs: the catalog sync cursor
// and the last detection pass summary.
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:text"`
	Cursor        *string        `gorm:"type:text"`
	WatermarkTS   *time.Time     `gorm:"type:timestamptz"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
