package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
)

// QuoteStreamService follows the order-book websocket for the watch set's
// YES tokens and folds midpoints back into the cache. Between detection
// passes it is what keeps cached_yes_price fresh enough for the staleness
// rail to mean something.
type QuoteStreamService struct {
	Repo   repository.Repository
	Cfg    config.QuoteStreamConfig
	Logger *zap.Logger

	mu         sync.Mutex
	conditions map[string]string // yes token id -> condition id
	books      map[string]*bookHalves
}

type bookHalves struct {
	Bid float64
	Ask float64
}

// Run blocks until ctx is done. The asset provider re-reads the watch set on
// the stream's refresh interval, so newly synced markets join the
// subscription without a restart.
func (s *QuoteStreamService) Run(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.Logger.Info("quote stream starting",
		zap.String("url", s.Cfg.URL),
		zap.Duration("refresh_interval", s.Cfg.RefreshInterval),
		zap.Int("max_assets", s.Cfg.MaxAssets))

	stream := clob.NewMarketStream(clob.MarketStreamOptions{
		URL:             s.Cfg.URL,
		AssetIDProvider: s.watchSetTokens,
		RefreshInterval: s.Cfg.RefreshInterval,
		Logger:          s.Logger,
	})
	return stream.Run(ctx, func(env clob.MarketEnvelope, raw []byte) {
		s.handleMessage(ctx, env, raw)
	})
}

// watchSetTokens resolves the YES token ids currently worth streaming and
// refreshes the token -> condition index used to route events back to rows.
func (s *QuoteStreamService) watchSetTokens(ctx context.Context) ([]string, error) {
	maxAssets := s.Cfg.MaxAssets
	if maxAssets <= 0 {
		maxAssets = 200
	}
	now := time.Now().UTC()
	markets, err := s.Repo.ListWatchedMarkets(ctx, repository.ListWatchedMarketsParams{
		IncludeNullSource:  true,
		Status:             models.MarketActive,
		MonitoringStatuses: []string{models.MonitoringWatching, models.MonitoringTriggered},
		StartAfter:         &now,
		OrderByStartAsc:    true,
		Limit:              maxAssets,
	})
	if err != nil {
		s.Logger.Warn("stream watch set refresh failed", zap.Error(err))
		return nil, err
	}

	index := make(map[string]string, len(markets))
	ids := make([]string, 0, len(markets))
	for i := range markets {
		m := &markets[i]
		if m.YesTokenID == nil {
			continue
		}
		token := strings.TrimSpace(*m.YesTokenID)
		if token == "" {
			continue
		}
		if _, dup := index[token]; dup {
			continue
		}
		index[token] = m.ConditionID
		ids = append(ids, token)
		if len(ids) >= maxAssets {
			break
		}
	}

	s.mu.Lock()
	s.conditions = index
	s.mu.Unlock()

	s.Logger.Debug("stream asset ids refreshed", zap.Int("count", len(ids)))
	return ids, nil
}

func (s *QuoteStreamService) handleMessage(ctx context.Context, env clob.MarketEnvelope, raw []byte) {
	token := strings.TrimSpace(env.AssetID)
	if token == "" {
		return
	}
	conditionID := s.conditionFor(token, env.Market)
	if conditionID == "" {
		return
	}

	switch env.EventType {
	case "book":
		bid, ask, ok := parseBookTops(raw)
		if !ok {
			return
		}
		s.setBook(token, bid, ask)
		s.applyMid(ctx, conditionID, token, bid, ask)
	case "price_change":
		bid, ask, ok := s.applyPriceChanges(token, raw)
		if !ok {
			return
		}
		s.applyMid(ctx, conditionID, token, bid, ask)
	case clob.EventLastTradePrice:
		price, ok := env.Price.Float()
		if !ok || price >= 1 {
			return
		}
		s.storePrice(ctx, conditionID, token, price)
	}
}

func (s *QuoteStreamService) conditionFor(token, envMarket string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.conditions[token]; ok && id != "" {
		return id
	}
	// The envelope's market field carries the condition id on most events.
	return strings.TrimSpace(envMarket)
}

func (s *QuoteStreamService) setBook(token string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.books == nil {
		s.books = map[string]*bookHalves{}
	}
	s.books[token] = &bookHalves{Bid: bid, Ask: ask}
}

// applyPriceChanges folds level changes into the remembered book halves and
// returns the updated tops. Without a prior book snapshot the change alone
// is not enough to price the market, so it is dropped.
func (s *QuoteStreamService) applyPriceChanges(token string, raw []byte) (bid, ask float64, ok bool) {
	changes := parsePriceChanges(raw)
	if len(changes) == 0 {
		return 0, 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	book, exists := s.books[token]
	if !exists {
		return 0, 0, false
	}
	for _, ch := range changes {
		switch ch.Side {
		case "BUY":
			if ch.Price > book.Bid && ch.Size > 0 {
				book.Bid = ch.Price
			}
		case "SELL":
			if (ch.Price < book.Ask || book.Ask == 0) && ch.Size > 0 {
				book.Ask = ch.Price
			}
		}
	}
	return book.Bid, book.Ask, true
}

func (s *QuoteStreamService) applyMid(ctx context.Context, conditionID, token string, bid, ask float64) {
	if bid <= 0 || ask <= 0 || ask <= bid {
		return
	}
	mid := (bid + ask) / 2
	if mid <= 0 || mid >= 1 {
		return
	}
	s.storePrice(ctx, conditionID, token, mid)
}

func (s *QuoteStreamService) storePrice(ctx context.Context, conditionID, token string, price float64) {
	now := time.Now().UTC()
	if err := s.Repo.UpdateMarketQuote(ctx, conditionID, &price, nil, now); err != nil {
		s.Logger.Warn("stream quote write failed",
			zap.String("condition_id", conditionID),
			zap.String("token_id", token),
			zap.Error(err))
	}
}

type priceChange struct {
	Price float64
	Size  float64
	Side  string
}

// parsePriceChanges reads the changes array, tolerating string-encoded
// numbers and a payload nested under "changes" or at the top level.
func parsePriceChanges(raw []byte) []priceChange {
	var root struct {
		Changes []struct {
			Price json.RawMessage `json:"price"`
			Size  json.RawMessage `json:"size"`
			Side  string          `json:"side"`
		} `json:"changes"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}
	out := make([]priceChange, 0, len(root.Changes))
	for _, ch := range root.Changes {
		price, ok := flexFloat(ch.Price)
		if !ok || price <= 0 || price >= 1 {
			continue
		}
		size, _ := flexFloat(ch.Size)
		out = append(out, priceChange{
			Price: price,
			Size:  size,
			Side:  strings.ToUpper(strings.TrimSpace(ch.Side)),
		})
	}
	return out
}

// parseBookTops extracts the best bid and ask from a book snapshot. Bids and
// asks arrive sorted away from the touch, so the best level is the last one.
func parseBookTops(raw []byte) (bid, ask float64, ok bool) {
	var root struct {
		Bids []struct {
			Price json.RawMessage `json:"price"`
			Size  json.RawMessage `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price json.RawMessage `json:"price"`
			Size  json.RawMessage `json:"size"`
		} `json:"asks"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return 0, 0, false
	}
	for _, lvl := range root.Bids {
		if p, pok := flexFloat(lvl.Price); pok && p > bid {
			bid = p
		}
	}
	ask = 0
	for _, lvl := range root.Asks {
		if p, pok := flexFloat(lvl.Price); pok && p > 0 && (ask == 0 || p < ask) {
			ask = p
		}
	}
	if bid <= 0 || ask <= 0 {
		return 0, 0, false
	}
	return bid, ask, true
}

func flexFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
