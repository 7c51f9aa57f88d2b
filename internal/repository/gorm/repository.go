package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- watched markets ---------------------------------------------------------

func (s *Store) ListWatchedMarkets(ctx context.Context, params repository.ListWatchedMarketsParams) ([]models.WatchedMarket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyWatchedMarketFilters(s.db.WithContext(ctx).Model(&models.WatchedMarket{}), params)
	if params.OrderByStartAsc {
		query = query.Order("event_start_time asc")
	} else {
		query = query.Order("created_at desc")
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.WatchedMarket
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWatchedMarkets(ctx context.Context, params repository.ListWatchedMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyWatchedMarketFilters(s.db.WithContext(ctx).Model(&models.WatchedMarket{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyWatchedMarketFilters(query *gorm.DB, params repository.ListWatchedMarketsParams) *gorm.DB {
	sources := cleanStrings(params.Sources)
	if len(sources) > 0 && params.IncludeNullSource {
		query = query.Where("(source IN ? OR source IS NULL OR source = '')", sources)
	} else if len(sources) > 0 {
		query = query.Where("source IN ?", sources)
	} else if params.IncludeNullSource {
		query = query.Where("(source IS NULL OR source = '')")
	}
	if params.MinVolume != nil {
		query = query.Where("cached_volume >= ?", *params.MinVolume)
	}
	if statuses := cleanStrings(params.MonitoringStatuses); len(statuses) > 0 {
		query = query.Where("monitoring_status IN ?", statuses)
	}
	if strings.TrimSpace(params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(params.Status))
	}
	if codes := cleanStrings(params.SportCodes); len(codes) > 0 {
		query = query.Where("sport_code IN ?", codes)
	}
	if params.StartAfter != nil && !params.StartAfter.IsZero() {
		query = query.Where("event_start_time > ?", *params.StartAfter)
	}
	if params.StartByOrBefore != nil && !params.StartByOrBefore.IsZero() {
		query = query.Where("event_start_time <= ?", *params.StartByOrBefore)
	}
	return query
}

func (s *Store) GetWatchedMarket(ctx context.Context, conditionID string) (*models.WatchedMarket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, nil
	}
	var item models.WatchedMarket
	err := s.db.WithContext(ctx).
		Where("condition_id = ?", conditionID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertWatchedMarket(ctx context.Context, item *models.WatchedMarket) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ConditionID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "condition_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_title",
			"question",
			"sport_code",
			"market_type",
			"yes_token_id",
			"no_token_id",
			"cached_yes_price",
			"cached_volume",
			"event_start_time",
			"monitoring_status",
			"status",
			"source",
			"last_poly_refresh",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpdateMarketQuote(ctx context.Context, conditionID string, yesPrice *float64, volume *decimal.Decimal, refreshedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil
	}
	if refreshedAt.IsZero() {
		refreshedAt = time.Now().UTC()
	}
	updates := map[string]any{
		"last_poly_refresh": refreshedAt,
		"updated_at":        time.Now().UTC(),
	}
	if yesPrice != nil {
		updates["cached_yes_price"] = *yesPrice
	}
	if volume != nil {
		updates["cached_volume"] = *volume
	}
	return s.db.WithContext(ctx).
		Model(&models.WatchedMarket{}).
		Where("condition_id = ?", conditionID).
		Updates(updates).Error
}

func (s *Store) SetMarketMonitoringStatus(ctx context.Context, conditionID string, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	conditionID = strings.TrimSpace(conditionID)
	status = strings.TrimSpace(status)
	if conditionID == "" || status == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.WatchedMarket{}).
		Where("condition_id = ?", conditionID).
		Updates(map[string]any{
			"monitoring_status": status,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (s *Store) ExpireMarketsStartingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.WatchedMarket{}).
		Where("event_start_time IS NOT NULL").
		Where("event_start_time <= ?", cutoff).
		Where("monitoring_status IN ?", []string{models.MonitoringWatching, models.MonitoringTriggered}).
		Updates(map[string]any{
			"monitoring_status": models.MonitoringExpired,
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// --- sharp snapshots ----------------------------------------------------------

func (s *Store) InsertSharpSnapshots(ctx context.Context, items []models.SharpSnapshot) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	// Natural-key conflicts happen when two passes observe the same
	// bookmaker update; the first write wins.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "event_key"},
			{Name: "outcome"},
			{Name: "bookmaker"},
			{Name: "captured_at"},
		},
		DoNothing: true,
	}).CreateInBatches(items, 200).Error
}

func (s *Store) ListSharpSnapshots(ctx context.Context, eventKey, outcome string, since time.Time) ([]models.SharpSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	eventKey = strings.TrimSpace(eventKey)
	outcome = strings.TrimSpace(outcome)
	if eventKey == "" || outcome == "" {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SharpSnapshot{}).
		Where("event_key = ?", eventKey).
		Where("outcome = ?", outcome)
	if !since.IsZero() {
		query = query.Where("captured_at >= ?", since)
	}
	var items []models.SharpSnapshot
	if err := query.Order("captured_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) PruneSharpSnapshots(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("captured_at < ?", before).
		Delete(&models.SharpSnapshot{})
	return res.RowsAffected, res.Error
}

func (s *Store) CountSharpSnapshots(ctx context.Context, since *time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SharpSnapshot{})
	if since != nil && !since.IsZero() {
		query = query.Where("captured_at >= ?", *since)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- event watch state ----------------------------------------------------------

func (s *Store) GetEventWatchState(ctx context.Context, conditionID string) (*models.EventWatchState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, nil
	}
	var item models.EventWatchState
	err := s.db.WithContext(ctx).
		Where("polymarket_condition_id = ?", conditionID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertEventWatchState(ctx context.Context, item *models.EventWatchState) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.PolymarketConditionID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polymarket_condition_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"watch_state",
			"last_poly_refresh",
			"current_probability",
			"polymarket_matched",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- signal opportunities ----------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.SignalOpportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetSignal(ctx context.Context, id uint64) (*models.SignalOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.SignalOpportunity
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LatestSignalByEventOutcome(ctx context.Context, eventName, outcome string) (*models.SignalOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	eventName = strings.TrimSpace(eventName)
	outcome = strings.TrimSpace(outcome)
	if eventName == "" || outcome == "" {
		return nil, nil
	}
	var item models.SignalOpportunity
	err := s.db.WithContext(ctx).
		Where("event_name = ?", eventName).
		Where("recommended_outcome = ?", outcome).
		Order("created_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.SignalOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applySignalFilters(s.db.WithContext(ctx).Model(&models.SignalOpportunity{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.SignalOpportunity
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applySignalFilters(s.db.WithContext(ctx).Model(&models.SignalOpportunity{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applySignalFilters(query *gorm.DB, params repository.ListSignalsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Tier != nil && strings.TrimSpace(*params.Tier) != "" {
		query = query.Where("signal_tier = ?", strings.TrimSpace(*params.Tier))
	}
	if params.Sport != nil && strings.TrimSpace(*params.Sport) != "" {
		query = query.Where("sport_code = ?", strings.TrimSpace(*params.Sport))
	}
	if params.Event != nil && strings.TrimSpace(*params.Event) != "" {
		query = query.Where("event_name ILIKE ?", "%"+strings.TrimSpace(*params.Event)+"%")
	}
	return query
}

func (s *Store) ListActiveSignals(ctx context.Context) ([]models.SignalOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SignalOpportunity
	err := s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("status = ?", models.SignalActive).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateSignalFields(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || id == 0 || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) UpdateSignalStatus(ctx context.Context, id uint64, status string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) ExpireOtherActiveSignals(ctx context.Context, eventName, keepOutcome string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	eventName = strings.TrimSpace(eventName)
	if eventName == "" {
		return 0, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("event_name = ?", eventName).
		Where("status = ?", models.SignalActive)
	if keepOutcome = strings.TrimSpace(keepOutcome); keepOutcome != "" {
		query = query.Where("recommended_outcome <> ?", keepOutcome)
	}
	res := query.Updates(map[string]any{
		"status":     models.SignalExpired,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}

func (s *Store) ExpireSignalsDueBy(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("status = ?", models.SignalActive).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Updates(map[string]any{
			"status":     models.SignalExpired,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) CountActiveSignals(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.SignalOpportunity{}).
		Where("status = ?", models.SignalActive).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// --- sync state ----------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, nil
	}
	var item models.SyncState
	err := s.db.WithContext(ctx).
		Where("scope = ?", scope).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	if strings.TrimSpace(state.Scope) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"watermark_ts",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

// --- helpers ----------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
