package oddsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.OddsAPIConfig{
		BaseURL:           srv.URL,
		Key:               "test-key",
		Regions:           "us,uk",
		Timeout:           2 * time.Second,
		RequestsPerMinute: 6000,
	}, nil)
	return c, srv
}

func TestEventsDecodesPanel(t *testing.T) {
	var gotPath, gotMarkets, gotKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMarkets = r.URL.Query().Get("markets")
		gotKey = r.URL.Query().Get("apiKey")
		w.Header().Set("X-Requests-Remaining", "482")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"id": "evt1",
				"sport_key": "basketball_nba",
				"commence_time": "2026-01-02T00:10:00Z",
				"home_team": "Boston Celtics",
				"away_team": "Los Angeles Lakers",
				"bookmakers": [
					{
						"key": "pinnacle",
						"title": "Pinnacle",
						"last_update": "2026-01-01T23:40:00Z",
						"markets": [
							{"key": "h2h", "outcomes": [
								{"name": "Los Angeles Lakers", "price": 1.8},
								{"name": "Boston Celtics", "price": 2.1}
							]}
						]
					}
				]
			}
		]`))
	})

	events, err := c.Events(context.Background(), "basketball_nba", []string{MarketH2H, MarketTotals})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if gotPath != "/sports/basketball_nba/odds" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotMarkets != "h2h,totals" || gotKey != "test-key" {
		t.Fatalf("markets=%q key=%q", gotMarkets, gotKey)
	}
	if len(events) != 1 {
		t.Fatalf("events=%d", len(events))
	}
	ev := events[0]
	if ev.HomeTeam != "Boston Celtics" || len(ev.Bookmakers) != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
	m, ok := ev.Bookmakers[0].FindMarket(MarketH2H)
	if !ok {
		t.Fatalf("missing h2h market")
	}
	o, ok := m.FindOutcome("Los Angeles Lakers")
	if !ok || o.Price != 1.8 {
		t.Fatalf("outcome=%+v ok=%v", o, ok)
	}
	if ev.CommenceTime.UTC().Hour() != 0 || ev.CommenceTime.UTC().Minute() != 10 {
		t.Fatalf("commence=%v", ev.CommenceTime)
	}
}

func TestEventsQuotaExhausted(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"quota"}`))
	})
	if _, err := c.Events(context.Background(), "baseball_mlb", nil); err == nil {
		t.Fatalf("expected quota error")
	}
}

func TestEventsMissingKey(t *testing.T) {
	c := New(config.OddsAPIConfig{BaseURL: "http://unused", Timeout: time.Second}, nil)
	if c.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := c.Events(context.Background(), "basketball_nba", nil); err == nil {
		t.Fatalf("expected error without key")
	}
}
