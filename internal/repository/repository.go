package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

// ListWatchedMarketsParams filters the exchange market cache. Zero values
// mean "no filter" except Limit, which falls back to a per-query default.
type ListWatchedMarketsParams struct {
	Sources            []string
	IncludeNullSource  bool
	MinVolume          *float64
	MonitoringStatuses []string
	Status             string
	SportCodes         []string
	StartAfter         *time.Time
	StartByOrBefore    *time.Time
	OrderByStartAsc    bool
	Limit              int
	Offset             int
}

type ListSignalsParams struct {
	Status  *string
	Tier    *string
	Sport   *string
	Event   *string
	OrderBy string
	Asc     *bool
	Limit   int
	Offset  int
}

// Repository is the persistence adapter for the detection pipeline. All
// methods tolerate a nil receiver/handle for test stubs.
type Repository interface {
	// Exchange market cache.
	ListWatchedMarkets(ctx context.Context, params ListWatchedMarketsParams) ([]models.WatchedMarket, error)
	GetWatchedMarket(ctx context.Context, conditionID string) (*models.WatchedMarket, error)
	UpsertWatchedMarket(ctx context.Context, item *models.WatchedMarket) error
	UpdateMarketQuote(ctx context.Context, conditionID string, yesPrice *float64, volume *decimal.Decimal, refreshedAt time.Time) error
	SetMarketMonitoringStatus(ctx context.Context, conditionID string, status string) error
	ExpireMarketsStartingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountWatchedMarkets(ctx context.Context, params ListWatchedMarketsParams) (int64, error)

	// Sharp bookmaker snapshot time series.
	InsertSharpSnapshots(ctx context.Context, items []models.SharpSnapshot) error
	ListSharpSnapshots(ctx context.Context, eventKey, outcome string, since time.Time) ([]models.SharpSnapshot, error)
	PruneSharpSnapshots(ctx context.Context, before time.Time) (int64, error)
	CountSharpSnapshots(ctx context.Context, since *time.Time) (int64, error)

	// Event watch escalation rows.
	GetEventWatchState(ctx context.Context, conditionID string) (*models.EventWatchState, error)
	UpsertEventWatchState(ctx context.Context, item *models.EventWatchState) error

	// Signal opportunities.
	InsertSignal(ctx context.Context, item *models.SignalOpportunity) error
	GetSignal(ctx context.Context, id uint64) (*models.SignalOpportunity, error)
	LatestSignalByEventOutcome(ctx context.Context, eventName, outcome string) (*models.SignalOpportunity, error)
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.SignalOpportunity, error)
	CountSignals(ctx context.Context, params ListSignalsParams) (int64, error)
	ListActiveSignals(ctx context.Context) ([]models.SignalOpportunity, error)
	UpdateSignalFields(ctx context.Context, id uint64, updates map[string]any) error
	UpdateSignalStatus(ctx context.Context, id uint64, status string) error
	ExpireOtherActiveSignals(ctx context.Context, eventName, keepOutcome string) (int64, error)
	ExpireSignalsDueBy(ctx context.Context, now time.Time) (int64, error)
	CountActiveSignals(ctx context.Context) (int64, error)

	// Background job state.
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}
