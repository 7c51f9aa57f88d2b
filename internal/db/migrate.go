package db

import (
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.WatchedMarket{},
		&models.SharpSnapshot{},
		&models.EventWatchState{},
		&models.SignalOpportunity{},
		&models.SyncState{},
	); err != nil {
		return err
	}

	// AutoMigrate cannot express a partial unique index; the one-active-signal
	// invariant needs it.
	return db.Gorm.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_signal_active_event_outcome
		 ON signal_opportunities (event_name, recommended_outcome)
		 WHERE status = 'active'`,
	).Error
}
