package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
)

func (r *stubRepo) UpdateMarketQuote(_ context.Context, conditionID string, yesPrice *float64, _ *decimal.Decimal, _ time.Time) error {
	if r.quotes == nil {
		r.quotes = map[string]float64{}
	}
	if yesPrice != nil {
		r.quotes[conditionID] = *yesPrice
	}
	return nil
}

func TestParseBookTops(t *testing.T) {
	raw := []byte(`{
		"bids": [{"price": "0.42", "size": "100"}, {"price": "0.44", "size": "50"}],
		"asks": [{"price": 0.48, "size": 120}, {"price": "0.46", "size": "80"}]
	}`)
	bid, ask, ok := parseBookTops(raw)
	if !ok || bid != 0.44 || ask != 0.46 {
		t.Fatalf("bid=%v ask=%v ok=%v", bid, ask, ok)
	}

	if _, _, ok := parseBookTops([]byte(`{"bids": [], "asks": []}`)); ok {
		t.Fatalf("empty book must not price")
	}
}

func TestApplyPriceChanges(t *testing.T) {
	s := &QuoteStreamService{}
	s.setBook("T1", 0.44, 0.46)

	raw := []byte(`{"changes": [
		{"price": "0.45", "size": "10", "side": "BUY"},
		{"price": "0.455", "size": "5", "side": "SELL"}
	]}`)
	bid, ask, ok := s.applyPriceChanges("T1", raw)
	if !ok || bid != 0.45 || ask != 0.455 {
		t.Fatalf("bid=%v ask=%v ok=%v", bid, ask, ok)
	}

	// Without a prior book snapshot the change alone cannot price the market.
	if _, _, ok := s.applyPriceChanges("T2", raw); ok {
		t.Fatalf("unknown token must not price")
	}

	oob := []byte(`{"changes": [{"price": "1.2", "size": "10", "side": "BUY"}]}`)
	if _, _, ok := s.applyPriceChanges("T1", oob); ok {
		t.Fatalf("out-of-range prices must be dropped")
	}
}

func TestHandleMessageWritesMidpoint(t *testing.T) {
	repo := newStubRepo()
	s := &QuoteStreamService{Repo: repo, Logger: zap.NewNop()}

	book := []byte(`{
		"event_type": "book",
		"asset_id": "T1",
		"market": "cond-1",
		"bids": [{"price": "0.4375", "size": "50"}],
		"asks": [{"price": "0.5625", "size": "80"}]
	}`)
	s.handleMessage(context.Background(), clob.MarketEnvelope{
		EventType: "book",
		AssetID:   "T1",
		Market:    "cond-1",
	}, book)
	if got := repo.quotes["cond-1"]; got != 0.5 {
		t.Fatalf("mid=%v", got)
	}

	// A crossed book never reaches the cache.
	crossed := []byte(`{
		"bids": [{"price": "0.50", "size": "50"}],
		"asks": [{"price": "0.48", "size": "80"}]
	}`)
	delete(repo.quotes, "cond-1")
	s.handleMessage(context.Background(), clob.MarketEnvelope{
		EventType: "book",
		AssetID:   "T1",
		Market:    "cond-1",
	}, crossed)
	if _, ok := repo.quotes["cond-1"]; ok {
		t.Fatalf("crossed book must not write")
	}
}

func TestHandleMessageLastTrade(t *testing.T) {
	repo := newStubRepo()
	s := &QuoteStreamService{Repo: repo, Logger: zap.NewNop()}

	s.handleMessage(context.Background(), clob.MarketEnvelope{
		EventType: clob.EventLastTradePrice,
		AssetID:   "T1",
		Market:    "cond-1",
		Price:     clob.Decimal{Decimal: decimal.NewFromFloat(0.63)},
	}, nil)
	if got := repo.quotes["cond-1"]; got != 0.63 {
		t.Fatalf("price=%v", got)
	}

	// Settled prints at 1.0 carry no information for a binary quote.
	s.handleMessage(context.Background(), clob.MarketEnvelope{
		EventType: clob.EventLastTradePrice,
		AssetID:   "T1",
		Market:    "cond-2",
		Price:     clob.Decimal{Decimal: decimal.NewFromInt(1)},
	}, nil)
	if _, ok := repo.quotes["cond-2"]; ok {
		t.Fatalf("unit price must be ignored")
	}
}
