// Package detector runs the detection pass: load the watch set, refresh both
// venues' prices in parallel, then walk the markets through matching,
// consensus, movement, and the signal rails. Passes are stateless; all
// cross-pass state lives in the repository.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/consensus"
	"github.com/favron1/ev-ace-advisor-sub003/internal/matching"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/movement"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// ErrOddsKeyMissing is the only pass error the HTTP layer maps to a 5xx.
var ErrOddsKeyMissing = errors.New("odds api key not configured")

// PassScope is the sync_state scope the pass summary is stored under.
const PassScope = "detector_pass"

// QuoteClient is the exchange surface a pass needs: batch quotes, batch
// spreads, and the single-market fallback.
type QuoteClient interface {
	Prices(ctx context.Context, tokenIDs []string) (map[string]clob.Quote, error)
	Spreads(ctx context.Context, tokenIDs []string) (map[string]float64, error)
	GetMarket(ctx context.Context, conditionID string) (*clob.MarketDetail, error)
}

// OddsClient is the sportsbook odds surface.
type OddsClient interface {
	Configured() bool
	Events(ctx context.Context, sportKey string, marketKeys []string) ([]oddsapi.Event, error)
}

// Notifier delivers new-signal alerts, best-effort.
type Notifier interface {
	Enabled() bool
	AlertSignal(ctx context.Context, sig *models.SignalOpportunity, now time.Time) bool
}

// PassResult is the counter set one pass returns; it is also the HTTP
// trigger's response body.
type PassResult struct {
	Success           bool  `json:"success"`
	EventsPolled      int   `json:"events_polled"`
	EventsMatched     int   `json:"events_matched"`
	EventsExpired     int   `json:"events_expired"`
	EdgesFound        int   `json:"edges_found"`
	MovementConfirmed int   `json:"movement_confirmed"`
	AlertsSent        int   `json:"alerts_sent"`
	DurationMs        int64 `json:"duration_ms"`
}

// Service runs detection passes. One instance is shared by the cron job and
// the HTTP trigger; overlapping invocations collapse into the running pass.
type Service struct {
	cfg       config.Config
	repo      repository.Repository
	quotes    QuoteClient
	odds      OddsClient
	consensus *consensus.Engine
	movement  *movement.Detector
	resolver  matching.EventResolver
	notifier  Notifier
	logger    *zap.Logger
	flight    singleflight.Group
	nowFn     func() time.Time
}

func New(cfg config.Config, repo repository.Repository, quotes QuoteClient, odds OddsClient, resolver matching.EventResolver, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		repo:      repo,
		quotes:    quotes,
		odds:      odds,
		consensus: consensus.New(cfg.Consensus),
		movement:  movement.New(cfg.Movement),
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger,
		nowFn:     time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn().UTC()
	}
	return time.Now().UTC()
}

// RunPass executes one detection pass. Concurrent callers share the pass
// already in flight instead of starting another.
func (s *Service) RunPass(ctx context.Context) (PassResult, error) {
	v, err, _ := s.flight.Do(PassScope, func() (any, error) {
		return s.runPass(ctx)
	})
	res, _ := v.(PassResult)
	return res, err
}

func (s *Service) runPass(ctx context.Context) (PassResult, error) {
	started := s.now()
	var res PassResult
	if s.odds == nil || !s.odds.Configured() {
		return res, ErrOddsKeyMissing
	}
	deadline := s.cfg.Detector.Deadline
	if deadline <= 0 {
		deadline = 25 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	now := started

	// Sweep rows whose event has started before loading the watch set.
	if n, err := s.repo.ExpireMarketsStartingBefore(ctx, now); err != nil {
		s.logger.Warn("expire started markets", zap.Error(err))
	} else {
		res.EventsExpired += int(n)
	}
	if _, err := s.repo.ExpireSignalsDueBy(ctx, now); err != nil {
		s.logger.Warn("expire due signals", zap.Error(err))
	}

	markets, err := s.loadWatchSet(ctx, now)
	if err != nil {
		s.savePassState(ctx, res, err, now)
		return res, fmt.Errorf("load watch set: %w", err)
	}
	res.EventsPolled = len(markets)

	// The two bulk I/O legs run in parallel; everything downstream joins on
	// both. Each leg swallows its own failures into partial maps.
	var (
		quotes  map[string]clob.Quote
		spreads map[string]float64
		games   map[string][]oddsapi.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quotes, spreads = s.fetchQuotes(gctx, markets)
		return nil
	})
	g.Go(func() error {
		games = s.fetchGames(gctx, markets)
		return nil
	})
	_ = g.Wait()

	s.refreshActiveSignals(ctx, quotes, now)

	matcher := matching.NewMatcher(s.resolver, s.cfg.LLM.MaxCallsPerPass, s.cfg.LLM.Timeout, s.logger)
	for i := range markets {
		if ctx.Err() != nil {
			s.logger.Warn("pass deadline reached",
				zap.Int("processed", i), zap.Int("total", len(markets)))
			break
		}
		out := s.safeProcess(ctx, &markets[i], quotes, spreads, games, matcher, now)
		if out.matched {
			res.EventsMatched++
		}
		if out.expired {
			res.EventsExpired++
		}
		if out.movement {
			res.MovementConfirmed++
		}
		if out.signal {
			res.EdgesFound++
		}
		if out.alerted {
			res.AlertsSent++
		}
	}

	res.Success = true
	res.DurationMs = s.now().Sub(started).Milliseconds()
	s.savePassState(ctx, res, nil, now)
	s.logger.Info("detection pass complete",
		zap.Int("events_polled", res.EventsPolled),
		zap.Int("events_matched", res.EventsMatched),
		zap.Int("events_expired", res.EventsExpired),
		zap.Int("edges_found", res.EdgesFound),
		zap.Int("movement_confirmed", res.MovementConfirmed),
		zap.Int("alerts_sent", res.AlertsSent),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}

// marketOutcome is what one market contributed to the pass counters.
type marketOutcome struct {
	matched  bool
	expired  bool
	movement bool
	signal   bool
	alerted  bool
}

// safeProcess isolates one market: a panic is logged and counted as a skip
// so a single bad market cannot abort the pass.
func (s *Service) safeProcess(ctx context.Context, market *models.WatchedMarket, quotes map[string]clob.Quote, spreads map[string]float64, games map[string][]oddsapi.Event, matcher *matching.Matcher, now time.Time) (out marketOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("market processing panicked",
				zap.String("condition_id", market.ConditionID),
				zap.Any("panic", r))
			out = marketOutcome{}
		}
	}()
	return s.processMarket(ctx, market, quotes, spreads, games, matcher, now)
}

func (s *Service) processMarket(ctx context.Context, market *models.WatchedMarket, quotes map[string]clob.Quote, spreads map[string]float64, games map[string][]oddsapi.Event, matcher *matching.Matcher, now time.Time) marketOutcome {
	var out marketOutcome

	// Event-start gate.
	if market.EventStartTime != nil && !market.EventStartTime.After(now) {
		if err := s.repo.SetMarketMonitoringStatus(ctx, market.ConditionID, models.MonitoringExpired); err != nil {
			s.logger.Warn("expire started market",
				zap.String("condition_id", market.ConditionID), zap.Error(err))
		}
		s.saveWatchState(ctx, market, models.WatchStateExpired, nil, nil, false)
		out.expired = true
		return out
	}

	price, ok := s.resolvePrice(ctx, market, quotes, spreads, now)
	if !ok {
		return out
	}

	sportCode := ""
	if market.SportCode != nil {
		sportCode = *market.SportCode
	}
	candidates := games[sportCode]
	if len(candidates) == 0 {
		s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, false)
		return out
	}

	ev := matching.Event{
		Title:      market.EventTitle,
		Question:   market.Question,
		SportCode:  sportCode,
		MarketType: market.MarketType,
		StartTime:  market.EventStartTime,
	}
	match := matcher.Match(ctx, ev, candidates, now)
	if match == nil {
		s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, false)
		return out
	}
	out.matched = true

	yesRes := s.consensus.FairProbability(match.Game, match.MarketKey, match.YesName)
	noRes := s.consensus.FairProbability(match.Game, match.MarketKey, match.NoName)
	if yesRes == nil || noRes == nil {
		s.logger.Debug("no consensus for matched market",
			zap.String("condition_id", market.ConditionID),
			zap.String("event", market.EventTitle))
		s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, true)
		return out
	}
	if match.MarketKey == oddsapi.MarketH2H {
		if diff := math.Abs(yesRes.Fair + noRes.Fair - 1); diff > s.cfg.Consensus.SumToleranceAbs {
			s.logger.Warn("PROBABILITY MISMATCH",
				zap.String("condition_id", market.ConditionID),
				zap.String("event", market.EventTitle),
				zap.Float64("yes_fair", yesRes.Fair),
				zap.Float64("no_fair", noRes.Fair))
			s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, true)
			return out
		}
	}

	cand, skip := s.buildSignal(ctx, buildInput{
		market:  market,
		match:   match,
		yesFair: yesRes.Fair,
		noFair:  noRes.Fair,
		books:   [2]int{yesRes.Books, noRes.Books},
		price:   price,
		now:     now,
	})

	// This pass's panel becomes next pass's movement history; written only
	// after the movement reads above.
	if rows := panelSnapshots(market.EventTitle, match.Game, match.MarketKey, []string{match.YesName, match.NoName}, now); len(rows) > 0 {
		if err := s.repo.InsertSharpSnapshots(ctx, rows); err != nil {
			s.logger.Warn("insert sharp snapshots",
				zap.String("event", market.EventTitle), zap.Error(err))
		}
	}

	if cand == nil {
		if skip != skipNone {
			s.logger.Debug("market skipped",
				zap.String("condition_id", market.ConditionID),
				zap.String("event", market.EventTitle),
				zap.String("reason", string(skip)))
		}
		s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, true)
		return out
	}
	out.movement = cand.movementOK

	inserted, sig, err := s.persistSignal(ctx, market, cand)
	if err != nil {
		s.logger.Warn("persist signal",
			zap.String("event", market.EventTitle), zap.Error(err))
		return out
	}
	if sig == nil {
		s.saveWatchState(ctx, market, models.WatchStateMonitored, &price.yes, price.refreshedAt, true)
		return out
	}
	out.signal = true

	if err := s.repo.SetMarketMonitoringStatus(ctx, market.ConditionID, models.MonitoringTriggered); err != nil {
		s.logger.Warn("escalate monitoring status",
			zap.String("condition_id", market.ConditionID), zap.Error(err))
	}
	s.saveWatchState(ctx, market, models.WatchStateAlerted, &price.yes, price.refreshedAt, true)

	if inserted && s.shouldAlert(sig, now) && s.notifier != nil && s.notifier.Enabled() {
		if s.notifier.AlertSignal(ctx, sig, now) {
			out.alerted = true
		}
	}
	return out
}

// fetchQuotes pulls both sides of the book plus spreads for every watched
// YES token, chunked to the payload limit. Chunk failures leave holes in the
// maps; partial maps are the norm.
func (s *Service) fetchQuotes(ctx context.Context, markets []models.WatchedMarket) (map[string]clob.Quote, map[string]float64) {
	tokens := make([]string, 0, len(markets))
	seen := make(map[string]bool, len(markets))
	for _, m := range markets {
		if m.YesTokenID == nil {
			continue
		}
		id := strings.TrimSpace(*m.YesTokenID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		tokens = append(tokens, id)
	}
	quotes := make(map[string]clob.Quote, len(tokens))
	spreads := make(map[string]float64, len(tokens))
	chunkSize := s.cfg.Clob.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}
	for start := 0; start < len(tokens); start += chunkSize {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]
		prices, err := s.quotes.Prices(ctx, chunk)
		if err != nil {
			s.logger.Warn("price chunk failed", zap.Int("offset", start), zap.Error(err))
		} else {
			for id, q := range prices {
				quotes[id] = q
			}
		}
		sp, err := s.quotes.Spreads(ctx, chunk)
		if err != nil {
			s.logger.Warn("spread chunk failed", zap.Int("offset", start), zap.Error(err))
			continue
		}
		for id, v := range sp {
			spreads[id] = v
		}
	}
	return quotes, spreads
}

// fetchGames makes one odds call per sport present in the watch set and
// drops games too thin for consensus.
func (s *Service) fetchGames(ctx context.Context, markets []models.WatchedMarket) map[string][]oddsapi.Event {
	wanted := make(map[string]map[string]bool)
	for _, m := range markets {
		if m.SportCode == nil {
			continue
		}
		code := *m.SportCode
		if !sports.Supported(code) {
			continue
		}
		if wanted[code] == nil {
			wanted[code] = map[string]bool{oddsapi.MarketH2H: true}
		}
		switch strings.ToLower(strings.TrimSpace(m.MarketType)) {
		case "total", "totals":
			wanted[code][oddsapi.MarketTotals] = true
		case "spread", "spreads":
			wanted[code][oddsapi.MarketSpreads] = true
		}
	}
	out := make(map[string][]oddsapi.Event, len(wanted))
	for code, keys := range wanted {
		endpoint, ok := sports.OddsKey(code)
		if !ok {
			continue
		}
		marketKeys := make([]string, 0, len(keys))
		for k := range keys {
			marketKeys = append(marketKeys, k)
		}
		sort.Strings(marketKeys)
		events, err := s.odds.Events(ctx, endpoint, marketKeys)
		if err != nil {
			s.logger.Warn("odds fetch failed", zap.String("sport", code), zap.Error(err))
			continue
		}
		kept := make([]oddsapi.Event, 0, len(events))
		for _, ev := range events {
			if len(ev.Bookmakers) >= 2 {
				kept = append(kept, ev)
			}
		}
		out[code] = kept
	}
	return out
}

func (s *Service) saveWatchState(ctx context.Context, market *models.WatchedMarket, state string, prob *float64, refreshedAt *time.Time, matched bool) {
	st := &models.EventWatchState{
		PolymarketConditionID: market.ConditionID,
		WatchState:            state,
		LastPolyRefresh:       refreshedAt,
		CurrentProbability:    prob,
		PolymarketMatched:     matched,
	}
	if err := s.repo.UpsertEventWatchState(ctx, st); err != nil {
		s.logger.Warn("upsert watch state",
			zap.String("condition_id", market.ConditionID), zap.Error(err))
	}
}

// savePassState records the pass summary under the detector scope. Skipped
// once the deadline has passed: nothing is written after it.
func (s *Service) savePassState(ctx context.Context, res PassResult, passErr error, now time.Time) {
	if ctx.Err() != nil {
		return
	}
	stats, _ := json.Marshal(res)
	state, err := s.repo.GetSyncState(ctx, PassScope)
	if err != nil || state == nil {
		state = &models.SyncState{Scope: PassScope}
	}
	state.LastAttemptAt = &now
	state.StatsJSON = datatypes.JSON(stats)
	if passErr != nil {
		msg := passErr.Error()
		state.LastError = &msg
	} else {
		state.LastSuccessAt = &now
		state.LastError = nil
	}
	if err := s.repo.SaveSyncState(ctx, state); err != nil {
		s.logger.Warn("save pass state", zap.Error(err))
	}
}

// PruneSnapshots drops sharp-book history older than the retention window.
func (s *Service) PruneSnapshots(ctx context.Context) (int64, error) {
	retention := s.cfg.Snapshots.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	n, err := s.repo.PruneSharpSnapshots(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned sharp snapshots", zap.Int64("deleted", n))
	}
	return n, nil
}
