package clob

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPricesSideOrientation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/prices" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var reqs []map[string]string
		if err := json.Unmarshal(body, &reqs); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(reqs) != 2 {
			t.Fatalf("want both sides requested, got %d entries", len(reqs))
		}
		sides := map[string]bool{}
		for _, req := range reqs {
			if req["token_id"] != "T1" {
				t.Fatalf("token_id=%q", req["token_id"])
			}
			sides[req["side"]] = true
		}
		if !sides["BUY"] || !sides["SELL"] {
			t.Fatalf("sides=%v", sides)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"T1":{"BUY":"0.60","SELL":"0.58"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	quotes, err := c.Prices(context.Background(), []string{"T1"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	q, ok := quotes["T1"]
	if !ok {
		t.Fatalf("missing token quote")
	}
	if q.Ask == nil || *q.Ask != 0.60 {
		t.Fatalf("ask=%v want 0.60", q.Ask)
	}
	if q.Bid == nil || *q.Bid != 0.58 {
		t.Fatalf("bid=%v want 0.58", q.Bid)
	}
}

func TestPricesZeroMeansMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"T1":{"BUY":"0.60","SELL":"0"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	quotes, err := c.Prices(context.Background(), []string{"T1"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	q := quotes["T1"]
	if q.Ask == nil || *q.Ask != 0.60 {
		t.Fatalf("ask=%v want 0.60", q.Ask)
	}
	if q.Bid != nil {
		t.Fatalf("empty book side must read as missing, got %v", *q.Bid)
	}
}

func TestSpreads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spreads" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		io.WriteString(w, `{"T1":"0.012","T2":"0"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	spreads, err := c.Spreads(context.Background(), []string{"T1", "T2"})
	if err != nil {
		t.Fatalf("Spreads: %v", err)
	}
	if got := spreads["T1"]; got != 0.012 {
		t.Fatalf("spread=%v want 0.012", got)
	}
	if _, ok := spreads["T2"]; ok {
		t.Fatalf("zero spread must be dropped")
	}
}

func TestGetMarketTokenByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xabc" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		// NO token listed first: position must not matter.
		io.WriteString(w, `{
			"condition_id": "0xabc",
			"tokens": [
				{"token_id": "NO1", "price": "0.55", "outcome": "No"},
				{"token_id": "YES1", "price": "0.45", "outcome": "Yes"}
			],
			"volume": "123456.78"
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	detail, err := c.GetMarket(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	price, ok := detail.TokenPrice("YES1")
	if !ok || price != 0.45 {
		t.Fatalf("price=(%v,%v) want (0.45,true)", price, ok)
	}
	if _, ok := detail.TokenPrice("ABSENT"); ok {
		t.Fatalf("unknown token must not resolve")
	}
	if got := detail.VolumeDecimal().InexactFloat64(); got != 123456.78 {
		t.Fatalf("volume=%v", got)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "book unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.Prices(context.Background(), []string{"T1"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("want *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status=%d", apiErr.Status)
	}
}
