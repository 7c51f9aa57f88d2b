package models

import "time"

// SharpSnapshot is one observation of one (event, outcome, sharp bookmaker)
// triple. Immutable once written; the movement detector reads the last 30
// minutes and a prune job drops rows older than the retention window.
type SharpSnapshot struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement"`
	EventKey           string    `gorm:"type:varchar(200);not null;uniqueIndex:uq_sharp_snapshot,priority:1;index"`
	EventName          string    `gorm:"type:text;not null"`
	Outcome            string    `gorm:"type:varchar(120);not null;uniqueIndex:uq_sharp_snapshot,priority:2"`
	Bookmaker          string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_sharp_snapshot,priority:3"`
	ImpliedProbability float64   `gorm:"type:numeric(20,10);not null"`
	RawOdds            float64   `gorm:"type:numeric(20,10);not null"`
	CapturedAt         time.Time `gorm:"type:timestamptz;not null;uniqueIndex:uq_sharp_snapshot,priority:4;index"`
}

func (SharpSnapshot) TableName() string {
	return "sharp_book_snapshots"
}
