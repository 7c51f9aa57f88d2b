package polymarketgamma

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const marketPage = `[
  {
    "id": "253591",
    "question": "Will the Lakers beat the Celtics?",
    "conditionId": "0xdeadbeef",
    "slug": "nba-lal-bos",
    "active": true,
    "closed": false,
    "acceptingOrders": true,
    "clobTokenIds": "[\"11111\",\"22222\"]",
    "outcomes": "[\"Yes\",\"No\"]",
    "outcomePrices": "[\"0.45\",\"0.55\"]",
    "volume": "98765.43",
    "liquidity": 12000.5,
    "spread": 0.01,
    "endDate": "2026-01-16T02:30:00Z",
    "gameStartTime": "2026-01-16 00:30:00+00",
    "sportsMarketType": "moneyline",
    "events": [{"id": "9", "title": "Los Angeles Lakers vs Boston Celtics", "slug": "lal-bos"}]
  }
]`

func TestListMarketsDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("active") != "true" || q.Get("closed") != "false" {
			t.Fatalf("filters not forwarded: %v", q)
		}
		if q.Get("limit") != "100" {
			t.Fatalf("limit=%q", q.Get("limit"))
		}
		io.WriteString(w, marketPage)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	active, closed := true, false
	markets, err := c.ListMarkets(context.Background(), &MarketsFilter{
		Active: &active,
		Closed: &closed,
		Limit:  100,
	})
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("markets=%d", len(markets))
	}
	m := markets[0]
	if m.ConditionID != "0xdeadbeef" || !m.Tradeable() {
		t.Fatalf("got %+v", m)
	}
	if got := m.EventTitle(); got != "Los Angeles Lakers vs Boston Celtics" {
		t.Fatalf("title=%q", got)
	}
	if ids := m.ClobTokenIDs(); len(ids) != 2 || ids[0] != "11111" {
		t.Fatalf("token ids=%v", ids)
	}
	if outs := m.Outcomes(); len(outs) != 2 || outs[0] != "Yes" {
		t.Fatalf("outcomes=%v", outs)
	}
	if m.Volume.Float64() != 98765.43 || m.Liquidity.Float64() != 12000.5 {
		t.Fatalf("volume=%v liquidity=%v", m.Volume, m.Liquidity)
	}
	want := time.Date(2026, 1, 16, 0, 30, 0, 0, time.UTC)
	if !m.StartTime().Equal(want) {
		t.Fatalf("start=%v want %v", m.StartTime(), want)
	}
}

func TestEventTitleFallsBackToQuestion(t *testing.T) {
	m := Market{Question: "Will the total be over 220.5?"}
	if got := m.EventTitle(); got != m.Question {
		t.Fatalf("title=%q", got)
	}
}

func TestStartTimePrefersGameStart(t *testing.T) {
	end := FlexTime{Time: time.Date(2026, 1, 16, 2, 30, 0, 0, time.UTC)}
	m := Market{EndDate: end}
	if !m.StartTime().Equal(end.Time) {
		t.Fatalf("missing game start must fall back to end date")
	}
}

func TestListMarketsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if _, err := c.ListMarkets(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
