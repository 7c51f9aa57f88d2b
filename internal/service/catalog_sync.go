// Package service holds the background jobs that keep the market cache
// current: the catalog sync against the exchange metadata API and the
// order-book quote stream.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	polymarketgamma "github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/gamma"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/matching"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

const catalogScope = "catalog"

// MarketSource lists exchange market metadata one page at a time.
type MarketSource interface {
	ListMarkets(ctx context.Context, filter *polymarketgamma.MarketsFilter) ([]polymarketgamma.Market, error)
}

// CatalogSyncService discovers upcoming sports markets on the exchange and
// keeps the watch cache stocked. It stands in for an external scanner: rows
// it writes carry source "api" so the detector treats them like any other
// cache rows.
type CatalogSyncService struct {
	Gamma  MarketSource
	Repo   repository.Repository
	Cfg    config.CatalogSyncConfig
	Logger *zap.Logger
}

type SyncOptions struct {
	Limit    int  `json:"limit"`
	MaxPages int  `json:"max_pages"`
	Resume   bool `json:"resume"`
}

type SyncResult struct {
	Scope      string `json:"scope"`
	Pages      int    `json:"pages"`
	Scanned    int    `json:"scanned"`
	Watched    int    `json:"watched"`
	Expired    int64  `json:"expired"`
	NextOffset int    `json:"next_offset"`
	Done       bool   `json:"done"`
}

// Sync walks the exchange market listing page by page, upserting tradeable
// head-to-head markets that start within the lookahead window. The page
// cursor survives in sync_state so interrupted runs resume where they left
// off; a completed walk resets it.
func (s *CatalogSyncService) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if s == nil || s.Gamma == nil || s.Repo == nil {
		return SyncResult{}, fmt.Errorf("catalog sync unavailable")
	}
	limit := normalizeLimit(opts.Limit, s.Cfg.PageLimit)
	maxPages := normalizeMaxPages(opts.MaxPages, s.Cfg.MaxPages)
	lookahead := s.Cfg.Lookahead
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}

	offset := 0
	if opts.Resume {
		state, err := s.Repo.GetSyncState(ctx, catalogScope)
		if err != nil {
			return SyncResult{}, err
		}
		if state != nil && state.Cursor != nil {
			if parsed, err := strconv.Atoi(*state.Cursor); err == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	now := time.Now().UTC()
	result := SyncResult{Scope: catalogScope}

	expired, err := s.Repo.ExpireMarketsStartingBefore(ctx, now)
	if err != nil {
		s.writeSyncError(ctx, err)
		return result, err
	}
	result.Expired = expired

	active := true
	closed := false
	for page := 0; page < maxPages; page++ {
		filter := &polymarketgamma.MarketsFilter{
			Active:     &active,
			Closed:     &closed,
			EndDateMin: now,
			Limit:      limit,
			Offset:     offset,
			Order:      "volumeNum",
			Ascending:  false,
		}
		items, err := s.Gamma.ListMarkets(ctx, filter)
		if err != nil {
			s.writeSyncError(ctx, err)
			return result, err
		}
		if len(items) == 0 {
			result.Done = true
			break
		}
		result.Scanned += len(items)

		for i := range items {
			m := &items[i]
			row, ok := s.buildWatchRow(m, now, lookahead)
			if !ok {
				continue
			}
			if err := s.carryMonitoringStatus(ctx, row, now); err != nil {
				s.writeSyncError(ctx, err)
				return result, err
			}
			if err := s.Repo.UpsertWatchedMarket(ctx, row); err != nil {
				s.writeSyncError(ctx, err)
				return result, err
			}
			result.Watched++
		}

		nextOffset := offset + len(items)
		result.Pages++
		result.NextOffset = nextOffset
		offset = nextOffset
		if len(items) < limit {
			result.Done = true
			break
		}
	}

	cursor := strconv.Itoa(result.NextOffset)
	if result.Done {
		cursor = "0"
	}
	if err := s.Repo.SaveSyncState(ctx, &models.SyncState{
		Scope:         catalogScope,
		Cursor:        &cursor,
		LastAttemptAt: &now,
		LastSuccessAt: &now,
		LastError:     nil,
		StatsJSON: statsJSON(map[string]any{
			"scanned": result.Scanned,
			"watched": result.Watched,
			"expired": result.Expired,
		}),
	}); err != nil {
		return result, err
	}
	if s.Logger != nil {
		s.Logger.Info("catalog sync finished",
			zap.Int("pages", result.Pages),
			zap.Int("scanned", result.Scanned),
			zap.Int("watched", result.Watched),
			zap.Int64("expired", result.Expired),
			zap.Bool("done", result.Done))
	}
	return result, nil
}

// buildWatchRow converts one metadata record into a cache row, or reports
// that the market is not worth watching.
func (s *CatalogSyncService) buildWatchRow(m *polymarketgamma.Market, now time.Time, lookahead time.Duration) (*models.WatchedMarket, bool) {
	if m == nil || strings.TrimSpace(m.ConditionID) == "" || !m.Tradeable() {
		return nil, false
	}
	title := m.EventTitle()
	if !isHeadToHead(m, title) {
		return nil, false
	}
	start := m.StartTime()
	if start.IsZero() || !start.After(now) || start.After(now.Add(lookahead)) {
		return nil, false
	}

	row := &models.WatchedMarket{
		ConditionID:      strings.TrimSpace(m.ConditionID),
		EventTitle:       title,
		Question:         m.Question,
		MarketType:       marketType(m),
		CachedVolume:     decimal.NewFromFloat(m.Volume.Float64()),
		EventStartTime:   &start,
		MonitoringStatus: models.MonitoringWatching,
		Status:           models.MarketActive,
		LastPolyRefresh:  &now,
	}
	source := models.SourceAPI
	row.Source = &source
	if code := sports.Detect(title + " " + m.Question); code != "" {
		row.SportCode = &code
	}

	if yes, no, ok := tokenPair(m); ok {
		row.YesTokenID = &yes
		if no != "" {
			row.NoTokenID = &no
		}
	}
	if price, ok := yesPrice(m); ok {
		row.CachedYesPrice = &price
	}
	return row, true
}

// carryMonitoringStatus keeps detector escalation intact across refreshes:
// the upsert rewrites monitoring_status, so an existing triggered row must
// not silently drop back to watching.
func (s *CatalogSyncService) carryMonitoringStatus(ctx context.Context, row *models.WatchedMarket, now time.Time) error {
	existing, err := s.Repo.GetWatchedMarket(ctx, row.ConditionID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	switch existing.MonitoringStatus {
	case models.MonitoringTriggered, models.MonitoringIdle:
		row.MonitoringStatus = existing.MonitoringStatus
	case models.MonitoringExpired:
		// Stays expired unless it re-listed with a future start.
		if row.EventStartTime == nil || !row.EventStartTime.After(now) {
			row.MonitoringStatus = models.MonitoringExpired
		}
	}
	return nil
}

func (s *CatalogSyncService) writeSyncError(ctx context.Context, err error) {
	if s.Logger != nil {
		s.Logger.Warn("catalog sync failed", zap.String("scope", catalogScope), zap.Error(err))
	}
	now := time.Now().UTC()
	msg := err.Error()
	_ = s.Repo.SaveSyncState(ctx, &models.SyncState{
		Scope:         catalogScope,
		LastAttemptAt: &now,
		LastError:     &msg,
	})
}

// isHeadToHead keeps only two-way game markets: either tagged moneyline by
// the exchange or titled "<team> vs <team>".
func isHeadToHead(m *polymarketgamma.Market, title string) bool {
	switch m.SportsMarketType {
	case polymarketgamma.SportsMarketMoneyline:
		return true
	case polymarketgamma.SportsMarketSpreads, polymarketgamma.SportsMarketTotals:
		return false
	}
	_, _, ok := matching.ParseTitle(title)
	return ok
}

func marketType(m *polymarketgamma.Market) string {
	if m.SportsMarketType != "" {
		return m.SportsMarketType
	}
	return "h2h"
}

// tokenPair orders the market's token ids as (yes, no). The exchange lists
// the YES token first unless the outcome names say otherwise.
func tokenPair(m *polymarketgamma.Market) (yes, no string, ok bool) {
	tokens := m.ClobTokenIDs()
	if len(tokens) == 0 {
		return "", "", false
	}
	yesIdx := 0
	outcomes := m.Outcomes()
	if len(outcomes) >= 2 && strings.EqualFold(strings.TrimSpace(outcomes[1]), "yes") {
		yesIdx = 1
	}
	if yesIdx >= len(tokens) {
		yesIdx = 0
	}
	yes = strings.TrimSpace(tokens[yesIdx])
	if yes == "" {
		return "", "", false
	}
	if len(tokens) > 1 {
		no = strings.TrimSpace(tokens[1-yesIdx])
	}
	return yes, no, true
}

func yesPrice(m *polymarketgamma.Market) (float64, bool) {
	prices := m.OutcomePrices()
	if len(prices) == 0 {
		return 0, false
	}
	idx := 0
	if len(m.Outcomes()) >= 2 && strings.EqualFold(strings.TrimSpace(m.Outcomes()[1]), "yes") && len(prices) > 1 {
		idx = 1
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(prices[idx]), 64)
	if err != nil || f <= 0 || f >= 1 {
		return 0, false
	}
	return f, true
}

func normalizeLimit(limit, def int) int {
	if limit > 0 && limit <= 500 {
		return limit
	}
	if def > 0 && def <= 500 {
		return def
	}
	return 200
}

func normalizeMaxPages(maxPages, def int) int {
	if maxPages > 0 {
		return maxPages
	}
	if def > 0 {
		return def
	}
	return 5
}

func statsJSON(stats map[string]any) datatypes.JSON {
	raw, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
