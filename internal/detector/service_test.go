package detector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

var detNow = time.Date(2026, 2, 7, 18, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Detector = config.DetectorConfig{
		Deadline:        25 * time.Second,
		EdgeThreshold:   0.05,
		RawEdgeFloor:    0.02,
		SwapMinRealEdge: 0.01,
		SwapThreshold:   0.05,
		StaleFairMin:    0.85,
		StalenessLimit:  3 * time.Minute,
		ExtremeFairMin:  0.90,
		ExtremeEdgeCap:  0.40,
		FeeRate:         0.01,
		DefaultStakeUSD: 100,
		AlertMaxLead:    24 * time.Hour,
	}
	cfg.Consensus = config.ConsensusConfig{
		OutlierHigh:     0.92,
		OutlierLow:      0.08,
		SharpWeight:     1.5,
		MinBookmakers:   2,
		SumToleranceAbs: 0.05,
	}
	cfg.Movement = config.MovementConfig{
		Window:           30 * time.Minute,
		RecencyWindow:    10 * time.Minute,
		RecencyShare:     0.70,
		BaseThreshold:    0.02,
		RelativeFactor:   0.12,
		CounterThreshold: 0.02,
		MinBooks:         2,
	}
	cfg.Loader = config.LoaderConfig{
		APIVolumeMin: 5000,
		APICap:       150,
		FirecrawlCap: 100,
		Lookahead:    24 * time.Hour,
	}
	cfg.LLM.MaxCallsPerPass = 15
	cfg.LLM.Timeout = 8 * time.Second
	cfg.Clob.ChunkSize = 50
	cfg.Snapshots.Retention = 24 * time.Hour
	return cfg
}

func newService(repo repository.Repository, quotes QuoteClient, odds OddsClient, notifier Notifier) *Service {
	s := New(testConfig(), repo, quotes, odds, nil, notifier, zap.NewNop())
	s.nowFn = func() time.Time { return detNow }
	return s
}

// stubRepo is an in-memory Repository covering everything a pass touches.
type stubRepo struct {
	markets        []models.WatchedMarket
	snapshots      []models.SharpSnapshot
	signals        []models.SignalOpportunity
	watchStates    map[string]models.EventWatchState
	syncStates     map[string]models.SyncState
	monitoring     map[string]string
	updates        map[uint64][]map[string]any
	listCalls      []repository.ListWatchedMarketsParams
	quoteWrites    int
	expireMarketsN int64
	nextID         uint64
}

func newStubRepo(markets ...models.WatchedMarket) *stubRepo {
	return &stubRepo{
		markets:     markets,
		watchStates: map[string]models.EventWatchState{},
		syncStates:  map[string]models.SyncState{},
		monitoring:  map[string]string{},
		updates:     map[uint64][]map[string]any{},
	}
}

func containsStr(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func sourceMatches(params repository.ListWatchedMarketsParams, src *string) bool {
	if len(params.Sources) == 0 {
		return true
	}
	if src == nil {
		return params.IncludeNullSource
	}
	return containsStr(params.Sources, *src)
}

func (r *stubRepo) ListWatchedMarkets(_ context.Context, params repository.ListWatchedMarketsParams) ([]models.WatchedMarket, error) {
	r.listCalls = append(r.listCalls, params)
	var out []models.WatchedMarket
	for _, m := range r.markets {
		if !sourceMatches(params, m.Source) {
			continue
		}
		if params.Status != "" && m.Status != params.Status {
			continue
		}
		if len(params.MonitoringStatuses) > 0 && !containsStr(params.MonitoringStatuses, m.MonitoringStatus) {
			continue
		}
		if params.MinVolume != nil && m.CachedVolume.InexactFloat64() < *params.MinVolume {
			continue
		}
		if params.StartAfter != nil && (m.EventStartTime == nil || !m.EventStartTime.After(*params.StartAfter)) {
			continue
		}
		if params.StartByOrBefore != nil && m.EventStartTime != nil && m.EventStartTime.After(*params.StartByOrBefore) {
			continue
		}
		out = append(out, m)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

func (r *stubRepo) GetWatchedMarket(_ context.Context, conditionID string) (*models.WatchedMarket, error) {
	for i := range r.markets {
		if r.markets[i].ConditionID == conditionID {
			m := r.markets[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) UpsertWatchedMarket(_ context.Context, item *models.WatchedMarket) error {
	for i := range r.markets {
		if r.markets[i].ConditionID == item.ConditionID {
			r.markets[i] = *item
			return nil
		}
	}
	r.markets = append(r.markets, *item)
	return nil
}

func (r *stubRepo) UpdateMarketQuote(_ context.Context, conditionID string, yesPrice *float64, volume *decimal.Decimal, refreshedAt time.Time) error {
	r.quoteWrites++
	for i := range r.markets {
		if r.markets[i].ConditionID != conditionID {
			continue
		}
		r.markets[i].CachedYesPrice = yesPrice
		if volume != nil {
			r.markets[i].CachedVolume = *volume
		}
		t := refreshedAt
		r.markets[i].LastPolyRefresh = &t
	}
	return nil
}

func (r *stubRepo) SetMarketMonitoringStatus(_ context.Context, conditionID string, status string) error {
	r.monitoring[conditionID] = status
	return nil
}

func (r *stubRepo) ExpireMarketsStartingBefore(_ context.Context, _ time.Time) (int64, error) {
	return r.expireMarketsN, nil
}

func (r *stubRepo) CountWatchedMarkets(ctx context.Context, params repository.ListWatchedMarketsParams) (int64, error) {
	rows, _ := r.ListWatchedMarkets(ctx, params)
	return int64(len(rows)), nil
}

func (r *stubRepo) InsertSharpSnapshots(_ context.Context, items []models.SharpSnapshot) error {
	r.snapshots = append(r.snapshots, items...)
	return nil
}

func (r *stubRepo) ListSharpSnapshots(_ context.Context, eventKey, outcome string, since time.Time) ([]models.SharpSnapshot, error) {
	var out []models.SharpSnapshot
	for _, s := range r.snapshots {
		if s.EventKey == eventKey && s.Outcome == outcome && !s.CapturedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) PruneSharpSnapshots(_ context.Context, before time.Time) (int64, error) {
	var kept []models.SharpSnapshot
	var n int64
	for _, s := range r.snapshots {
		if s.CapturedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	r.snapshots = kept
	return n, nil
}

func (r *stubRepo) CountSharpSnapshots(_ context.Context, since *time.Time) (int64, error) {
	if since == nil {
		return int64(len(r.snapshots)), nil
	}
	var n int64
	for _, s := range r.snapshots {
		if !s.CapturedAt.Before(*since) {
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) GetEventWatchState(_ context.Context, conditionID string) (*models.EventWatchState, error) {
	st, ok := r.watchStates[conditionID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *stubRepo) UpsertEventWatchState(_ context.Context, item *models.EventWatchState) error {
	r.watchStates[item.PolymarketConditionID] = *item
	return nil
}

func (r *stubRepo) InsertSignal(_ context.Context, item *models.SignalOpportunity) error {
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = detNow
	r.signals = append(r.signals, *item)
	return nil
}

func (r *stubRepo) GetSignal(_ context.Context, id uint64) (*models.SignalOpportunity, error) {
	for i := range r.signals {
		if r.signals[i].ID == id {
			s := r.signals[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) LatestSignalByEventOutcome(_ context.Context, eventName, outcome string) (*models.SignalOpportunity, error) {
	for i := len(r.signals) - 1; i >= 0; i-- {
		if r.signals[i].EventName == eventName && r.signals[i].RecommendedOutcome == outcome {
			s := r.signals[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListSignals(_ context.Context, _ repository.ListSignalsParams) ([]models.SignalOpportunity, error) {
	return append([]models.SignalOpportunity(nil), r.signals...), nil
}

func (r *stubRepo) CountSignals(_ context.Context, _ repository.ListSignalsParams) (int64, error) {
	return int64(len(r.signals)), nil
}

func (r *stubRepo) ListActiveSignals(_ context.Context) ([]models.SignalOpportunity, error) {
	var out []models.SignalOpportunity
	for _, s := range r.signals {
		if s.Status == models.SignalActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateSignalFields(_ context.Context, id uint64, updates map[string]any) error {
	r.updates[id] = append(r.updates[id], updates)
	return nil
}

func (r *stubRepo) UpdateSignalStatus(_ context.Context, id uint64, status string) error {
	for i := range r.signals {
		if r.signals[i].ID == id {
			r.signals[i].Status = status
		}
	}
	return nil
}

func (r *stubRepo) ExpireOtherActiveSignals(_ context.Context, eventName, keepOutcome string) (int64, error) {
	var n int64
	for i := range r.signals {
		if r.signals[i].EventName == eventName &&
			r.signals[i].Status == models.SignalActive &&
			r.signals[i].RecommendedOutcome != keepOutcome {
			r.signals[i].Status = models.SignalExpired
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) ExpireSignalsDueBy(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *stubRepo) CountActiveSignals(ctx context.Context) (int64, error) {
	rows, _ := r.ListActiveSignals(ctx)
	return int64(len(rows)), nil
}

func (r *stubRepo) GetSyncState(_ context.Context, scope string) (*models.SyncState, error) {
	st, ok := r.syncStates[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *stubRepo) SaveSyncState(_ context.Context, state *models.SyncState) error {
	r.syncStates[state.Scope] = *state
	return nil
}

type stubQuotes struct {
	quotes    map[string]clob.Quote
	spreads   map[string]float64
	detail    *clob.MarketDetail
	detailErr error
	chunks    [][]string
}

func (q *stubQuotes) Prices(_ context.Context, tokenIDs []string) (map[string]clob.Quote, error) {
	q.chunks = append(q.chunks, append([]string(nil), tokenIDs...))
	out := make(map[string]clob.Quote)
	for _, id := range tokenIDs {
		if v, ok := q.quotes[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (q *stubQuotes) Spreads(_ context.Context, tokenIDs []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range tokenIDs {
		if v, ok := q.spreads[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (q *stubQuotes) GetMarket(_ context.Context, _ string) (*clob.MarketDetail, error) {
	return q.detail, q.detailErr
}

type stubOdds struct {
	configured bool
	events     map[string][]oddsapi.Event
	calls      []string
}

func (o *stubOdds) Configured() bool { return o.configured }

func (o *stubOdds) Events(_ context.Context, sportKey string, _ []string) ([]oddsapi.Event, error) {
	o.calls = append(o.calls, sportKey)
	return o.events[sportKey], nil
}

type stubNotifier struct {
	enabled bool
	alerts  []string
}

func (n *stubNotifier) Enabled() bool { return n.enabled }

func (n *stubNotifier) AlertSignal(_ context.Context, sig *models.SignalOpportunity, _ time.Time) bool {
	n.alerts = append(n.alerts, sig.EventName+"|"+sig.RecommendedOutcome)
	return true
}

func nbaMarket(cond, token string) models.WatchedMarket {
	sport := sports.CodeNBA
	source := models.SourceAPI
	start := detNow.Add(2 * time.Hour)
	tok := token
	return models.WatchedMarket{
		ConditionID:      cond,
		EventTitle:       "Lakers vs Celtics",
		Question:         "Will the Lakers beat the Celtics?",
		SportCode:        &sport,
		MarketType:       "h2h",
		YesTokenID:       &tok,
		CachedVolume:     decimal.NewFromInt(600000),
		EventStartTime:   &start,
		MonitoringStatus: models.MonitoringWatching,
		Status:           models.MarketActive,
		Source:           &source,
	}
}

func h2hBook(key, homeName string, homePrice float64, awayName string, awayPrice float64) oddsapi.Bookmaker {
	return oddsapi.Bookmaker{
		Key:        key,
		LastUpdate: detNow.Add(-time.Minute),
		Markets: []oddsapi.Market{{
			Key: oddsapi.MarketH2H,
			Outcomes: []oddsapi.Outcome{
				{Name: homeName, Price: homePrice},
				{Name: awayName, Price: awayPrice},
			},
		}},
	}
}

func nbaGame(books ...oddsapi.Bookmaker) oddsapi.Event {
	return oddsapi.Event{
		ID:           "game-1",
		SportKey:     "basketball_nba",
		CommenceTime: detNow.Add(2 * time.Hour),
		HomeTeam:     "Los Angeles Lakers",
		AwayTeam:     "Boston Celtics",
		Bookmakers:   books,
	}
}

func TestRunPassCreatesSignalThenRefreshes(t *testing.T) {
	repo := newStubRepo(nbaMarket("cond-1", "tok-1"))
	ask, bid := 0.39, 0.37
	quotes := &stubQuotes{
		quotes:  map[string]clob.Quote{"tok-1": {Bid: &bid, Ask: &ask}},
		spreads: map[string]float64{"tok-1": 0.01},
	}
	odds := &stubOdds{
		configured: true,
		events: map[string][]oddsapi.Event{
			"basketball_nba": {nbaGame(
				h2hBook("pinnacle", "Los Angeles Lakers", 2.0, "Boston Celtics", 2.0),
				h2hBook("fanduel", "Los Angeles Lakers", 2.0, "Boston Celtics", 2.0),
			)},
		},
	}
	notifier := &stubNotifier{enabled: true}
	s := newService(repo, quotes, odds, notifier)

	res, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if !res.Success || res.EventsPolled != 1 || res.EventsMatched != 1 || res.EdgesFound != 1 {
		t.Fatalf("counters: %+v", res)
	}
	if res.AlertsSent != 1 || len(notifier.alerts) != 1 {
		t.Fatalf("alert not sent: %+v", res)
	}
	if len(repo.signals) != 1 {
		t.Fatalf("want one signal, got %d", len(repo.signals))
	}
	sig := repo.signals[0]
	if sig.Side != models.SideYes || sig.RecommendedOutcome != "Los Angeles Lakers" {
		t.Fatalf("recommendation: side=%s outcome=%s", sig.Side, sig.RecommendedOutcome)
	}
	if sig.Status != models.SignalActive || sig.SignalTier != models.TierStrong || sig.TriggerReason != models.TriggerEdge {
		t.Fatalf("grading: tier=%s trigger=%s status=%s", sig.SignalTier, sig.TriggerReason, sig.Status)
	}
	// Fair 0.50 against a 0.39 ask is an 11 point edge; costs shave the
	// strength below it.
	if math.Abs(sig.EdgePercent-11) > 1e-6 || math.Abs(sig.PolymarketPrice-0.39) > 1e-9 {
		t.Fatalf("edge=%v price=%v", sig.EdgePercent, sig.PolymarketPrice)
	}
	if sig.SignalStrength <= 0 || sig.SignalStrength >= sig.EdgePercent {
		t.Fatalf("strength=%v edge=%v", sig.SignalStrength, sig.EdgePercent)
	}
	if sig.Urgency != models.UrgencyHigh {
		t.Fatalf("urgency=%s", sig.Urgency)
	}
	if sig.ExpiresAt == nil || !sig.ExpiresAt.Equal(detNow.Add(2*time.Hour)) {
		t.Fatalf("expires_at=%v", sig.ExpiresAt)
	}
	if repo.monitoring["cond-1"] != models.MonitoringTriggered {
		t.Fatalf("monitoring=%q", repo.monitoring["cond-1"])
	}
	if st := repo.watchStates["cond-1"]; st.WatchState != models.WatchStateAlerted || !st.PolymarketMatched {
		t.Fatalf("watch state: %+v", st)
	}
	// Only the sharp book is snapshotted, one row per outcome.
	if len(repo.snapshots) != 2 || repo.snapshots[0].Bookmaker != "pinnacle" {
		t.Fatalf("snapshots: %+v", repo.snapshots)
	}
	state, ok := repo.syncStates[PassScope]
	if !ok || state.LastSuccessAt == nil || state.LastError != nil {
		t.Fatalf("pass state: %+v", state)
	}

	// A second pass updates the open signal in place, no duplicate, no
	// repeat alert.
	res2, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("second RunPass: %v", err)
	}
	if res2.EdgesFound != 1 || res2.AlertsSent != 0 {
		t.Fatalf("second pass counters: %+v", res2)
	}
	if len(repo.signals) != 1 || len(notifier.alerts) != 1 {
		t.Fatalf("signal duplicated: %d signals, %d alerts", len(repo.signals), len(notifier.alerts))
	}
	if len(repo.updates[sig.ID]) == 0 {
		t.Fatalf("existing signal not refreshed")
	}
}

func TestRunPassRequiresOddsKey(t *testing.T) {
	repo := newStubRepo(nbaMarket("cond-1", "tok-1"))
	s := newService(repo, &stubQuotes{}, &stubOdds{configured: false}, nil)

	_, err := s.RunPass(context.Background())
	if !errors.Is(err, ErrOddsKeyMissing) {
		t.Fatalf("err=%v", err)
	}
	if len(repo.syncStates) != 0 {
		t.Fatalf("pass state written on refused pass")
	}
}

func TestRunPassDismissedSignalStaysDismissed(t *testing.T) {
	repo := newStubRepo(nbaMarket("cond-1", "tok-1"))
	repo.nextID = 1
	repo.signals = []models.SignalOpportunity{{
		ID:                 1,
		EventName:          "Lakers vs Celtics",
		RecommendedOutcome: "Los Angeles Lakers",
		Side:               models.SideYes,
		Status:             models.SignalDismissed,
	}}
	ask := 0.39
	quotes := &stubQuotes{quotes: map[string]clob.Quote{"tok-1": {Ask: &ask}}}
	odds := &stubOdds{
		configured: true,
		events: map[string][]oddsapi.Event{
			"basketball_nba": {nbaGame(
				h2hBook("pinnacle", "Los Angeles Lakers", 2.0, "Boston Celtics", 2.0),
				h2hBook("fanduel", "Los Angeles Lakers", 2.0, "Boston Celtics", 2.0),
			)},
		},
	}
	s := newService(repo, quotes, odds, nil)

	res, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if res.EdgesFound != 0 || res.EventsMatched != 1 {
		t.Fatalf("counters: %+v", res)
	}
	if len(repo.signals) != 1 || repo.signals[0].Status != models.SignalDismissed {
		t.Fatalf("dismissed signal recreated: %+v", repo.signals)
	}
	if st := repo.watchStates["cond-1"]; st.WatchState != models.WatchStateMonitored {
		t.Fatalf("watch state: %+v", st)
	}
}

func TestLoadWatchSetDedupAndBackfill(t *testing.T) {
	api := nbaMarket("cond-1", "tok-1")
	api.SportCode = nil
	laterStart := detNow.Add(3 * time.Hour)
	api.EventStartTime = &laterStart

	scrapedSrc := models.SourceFirecrawl
	dup := nbaMarket("cond-1", "tok-1")
	dup.Source = &scrapedSrc

	scraped := nbaMarket("cond-2", "tok-2")
	scraped.Source = &scrapedSrc
	scraped.EventTitle = "Oilers vs Flames"
	scraped.Question = ""
	scraped.SportCode = nil
	earlier := detNow.Add(time.Hour)
	scraped.EventStartTime = &earlier

	repo := newStubRepo(api, dup, scraped)
	s := newService(repo, &stubQuotes{}, &stubOdds{configured: true}, nil)

	rows, err := s.loadWatchSet(context.Background(), detNow)
	if err != nil {
		t.Fatalf("loadWatchSet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	// Start-time order, the duplicate collapsed onto the API row.
	if rows[0].ConditionID != "cond-2" || rows[1].ConditionID != "cond-1" {
		t.Fatalf("order: %s, %s", rows[0].ConditionID, rows[1].ConditionID)
	}
	if rows[1].SportCode == nil || *rows[1].SportCode != sports.CodeNBA {
		t.Fatalf("api row sport: %v", rows[1].SportCode)
	}
	if rows[0].SportCode == nil || *rows[0].SportCode != sports.CodeNHL {
		t.Fatalf("scraped row sport: %v", rows[0].SportCode)
	}
	if len(repo.listCalls) != 2 {
		t.Fatalf("want two watch-set reads, got %d", len(repo.listCalls))
	}
	if repo.listCalls[0].Limit != 150 || repo.listCalls[0].MinVolume == nil {
		t.Fatalf("api read params: %+v", repo.listCalls[0])
	}
	if repo.listCalls[1].Limit != 100 || len(repo.listCalls[1].Sources) != 1 {
		t.Fatalf("scrape read params: %+v", repo.listCalls[1])
	}
}

func TestFetchQuotesChunks(t *testing.T) {
	ask := 0.5
	quotes := &stubQuotes{
		quotes: map[string]clob.Quote{
			"t-a": {Ask: &ask},
			"t-b": {Ask: &ask},
			"t-c": {Ask: &ask},
		},
		spreads: map[string]float64{"t-a": 0.01, "t-c": 0.02},
	}
	s := newService(newStubRepo(), quotes, &stubOdds{configured: true}, nil)
	s.cfg.Clob.ChunkSize = 2

	markets := []models.WatchedMarket{
		nbaMarket("c1", "t-a"),
		nbaMarket("c2", "t-b"),
		nbaMarket("c3", "t-a"), // duplicate token, fetched once
		nbaMarket("c4", "t-c"),
		{ConditionID: "c5"}, // no token id
	}
	got, spreads := s.fetchQuotes(context.Background(), markets)
	if len(quotes.chunks) != 2 || len(quotes.chunks[0]) != 2 || len(quotes.chunks[1]) != 1 {
		t.Fatalf("chunks: %v", quotes.chunks)
	}
	if len(got) != 3 || len(spreads) != 2 {
		t.Fatalf("merged maps: %d quotes, %d spreads", len(got), len(spreads))
	}
}

func TestResolvePriceFallbackChain(t *testing.T) {
	t.Run("batch quote synthesizes spread", func(t *testing.T) {
		m := nbaMarket("cond-1", "tok-1")
		repo := newStubRepo(m)
		s := newService(repo, &stubQuotes{}, &stubOdds{configured: true}, nil)
		ask, bid := 0.40, 0.38
		p, ok := s.resolvePrice(context.Background(), &m,
			map[string]clob.Quote{"tok-1": {Ask: &ask, Bid: &bid}}, nil, detNow)
		if !ok || p.yes != 0.40 {
			t.Fatalf("p=%+v ok=%v", p, ok)
		}
		if p.spread == nil || math.Abs(*p.spread-0.02/0.39) > 1e-9 {
			t.Fatalf("spread=%v", p.spread)
		}
		if p.refreshedAt == nil || !p.refreshedAt.Equal(detNow) {
			t.Fatalf("refreshedAt=%v", p.refreshedAt)
		}
		if repo.quoteWrites != 1 {
			t.Fatalf("quote not cached")
		}
	})

	t.Run("measured spread wins over synthetic", func(t *testing.T) {
		m := nbaMarket("cond-1", "tok-1")
		s := newService(newStubRepo(m), &stubQuotes{}, &stubOdds{configured: true}, nil)
		ask, bid := 0.40, 0.38
		p, ok := s.resolvePrice(context.Background(), &m,
			map[string]clob.Quote{"tok-1": {Ask: &ask, Bid: &bid}},
			map[string]float64{"tok-1": 0.013}, detNow)
		if !ok || p.spread == nil || *p.spread != 0.013 {
			t.Fatalf("p=%+v ok=%v", p, ok)
		}
	})

	t.Run("single market fallback", func(t *testing.T) {
		m := nbaMarket("cond-1", "tok-1")
		repo := newStubRepo(m)
		quotes := &stubQuotes{detail: &clob.MarketDetail{
			ConditionID: "cond-1",
			Tokens:      []clob.Token{{TokenID: "tok-1", Price: clob.Decimal{Decimal: decimal.NewFromFloat(0.55)}}},
			Volume:      clob.Decimal{Decimal: decimal.NewFromInt(750000)},
		}}
		s := newService(repo, quotes, &stubOdds{configured: true}, nil)
		p, ok := s.resolvePrice(context.Background(), &m, nil, nil, detNow)
		if !ok || math.Abs(p.yes-0.55) > 1e-9 {
			t.Fatalf("p=%+v ok=%v", p, ok)
		}
		if !p.volume.Equal(decimal.NewFromInt(750000)) {
			t.Fatalf("volume=%v", p.volume)
		}
	})

	t.Run("cached price last", func(t *testing.T) {
		m := nbaMarket("cond-1", "tok-1")
		cached := 0.61
		refreshed := detNow.Add(-10 * time.Minute)
		m.CachedYesPrice = &cached
		m.LastPolyRefresh = &refreshed
		quotes := &stubQuotes{detailErr: errors.New("boom")}
		s := newService(newStubRepo(m), quotes, &stubOdds{configured: true}, nil)
		p, ok := s.resolvePrice(context.Background(), &m, nil, nil, detNow)
		if !ok || p.yes != 0.61 {
			t.Fatalf("p=%+v ok=%v", p, ok)
		}
		if p.refreshedAt == nil || !p.refreshedAt.Equal(refreshed) {
			t.Fatalf("refreshedAt=%v", p.refreshedAt)
		}
	})

	t.Run("no token no price", func(t *testing.T) {
		m := nbaMarket("cond-1", "tok-1")
		m.YesTokenID = nil
		s := newService(newStubRepo(m), &stubQuotes{}, &stubOdds{configured: true}, nil)
		if _, ok := s.resolvePrice(context.Background(), &m, nil, nil, detNow); ok {
			t.Fatalf("priced a market with no token id")
		}
	})
}

func TestRefreshActiveSignalsInvertsForNoSide(t *testing.T) {
	m := nbaMarket("cond-1", "tok-1")
	repo := newStubRepo(m)
	cond := "cond-1"
	repo.signals = []models.SignalOpportunity{{
		ID:                    3,
		EventName:             "Lakers vs Celtics",
		RecommendedOutcome:    "Boston Celtics",
		Side:                  models.SideNo,
		Status:                models.SignalActive,
		PolymarketConditionID: &cond,
	}}
	s := newService(repo, &stubQuotes{}, &stubOdds{configured: true}, nil)

	ask := 0.42
	s.refreshActiveSignals(context.Background(),
		map[string]clob.Quote{"tok-1": {Ask: &ask}}, detNow)

	ups := repo.updates[3]
	if len(ups) != 1 {
		t.Fatalf("updates: %+v", ups)
	}
	price, _ := ups[0]["polymarket_price"].(float64)
	if math.Abs(price-0.58) > 1e-9 {
		t.Fatalf("price=%v", price)
	}
}

func TestSavePassStateSkippedAfterDeadline(t *testing.T) {
	repo := newStubRepo()
	s := newService(repo, &stubQuotes{}, &stubOdds{configured: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.savePassState(ctx, PassResult{Success: true}, nil, detNow)
	if len(repo.syncStates) != 0 {
		t.Fatalf("state written after deadline: %+v", repo.syncStates)
	}
}

func TestPruneSnapshots(t *testing.T) {
	repo := newStubRepo()
	repo.snapshots = []models.SharpSnapshot{
		{EventKey: "a", CapturedAt: detNow.Add(-30 * time.Hour)},
		{EventKey: "b", CapturedAt: detNow.Add(-time.Hour)},
	}
	s := newService(repo, &stubQuotes{}, &stubOdds{configured: true}, nil)

	n, err := s.PruneSnapshots(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if len(repo.snapshots) != 1 || repo.snapshots[0].EventKey != "b" {
		t.Fatalf("snapshots: %+v", repo.snapshots)
	}
}
