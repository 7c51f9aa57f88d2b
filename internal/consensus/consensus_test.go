package consensus

import (
	"math"
	"testing"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
)

func testConfig() config.ConsensusConfig {
	return config.ConsensusConfig{
		OutlierHigh:     0.92,
		OutlierLow:      0.08,
		SharpWeight:     1.5,
		MinBookmakers:   2,
		SumToleranceAbs: 0.05,
	}
}

func h2hBook(key string, prices map[string]float64) oddsapi.Bookmaker {
	m := oddsapi.Market{Key: oddsapi.MarketH2H}
	for name, price := range prices {
		m.Outcomes = append(m.Outcomes, oddsapi.Outcome{Name: name, Price: price})
	}
	return oddsapi.Bookmaker{Key: key, Markets: []oddsapi.Market{m}}
}

func TestFairProbabilityRemovesVig(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("draftkings", map[string]float64{"A": 1.8, "B": 2.1}),
	}}
	resA := e.FairProbability(game, oddsapi.MarketH2H, "A")
	resB := e.FairProbability(game, oddsapi.MarketH2H, "B")
	if resA == nil || resB == nil {
		t.Fatalf("expected results, got %v %v", resA, resB)
	}
	if math.Abs(resA.Fair+resB.Fair-1.0) > 1e-9 {
		t.Fatalf("fairs do not sum to 1: %v + %v", resA.Fair, resB.Fair)
	}
	wantA := (1 / 1.8) / (1/1.8 + 1/2.1)
	if math.Abs(resA.Fair-wantA) > 1e-9 {
		t.Fatalf("fairA=%v want %v", resA.Fair, wantA)
	}
}

func TestFairProbabilityExcludesDraw(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("bet365", map[string]float64{"Arsenal": 2.0, "Chelsea": 3.5, "Draw": 3.4}),
	}}
	res := e.FairProbability(game, oddsapi.MarketH2H, "Arsenal")
	if res == nil {
		t.Fatalf("expected result")
	}
	want := (1 / 2.0) / (1/2.0 + 1/3.5)
	if math.Abs(res.Fair-want) > 1e-9 {
		t.Fatalf("fair=%v want %v (draw must not enter normalization)", res.Fair, want)
	}
}

func TestFairProbabilityExcludesTie(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("bovada", map[string]float64{"Arsenal": 2.0, "Chelsea": 3.5, "Tie": 3.4}),
	}}
	res := e.FairProbability(game, oddsapi.MarketH2H, "Arsenal")
	if res == nil {
		t.Fatalf("expected result")
	}
	want := (1 / 2.0) / (1/2.0 + 1/3.5)
	if math.Abs(res.Fair-want) > 1e-9 {
		t.Fatalf("fair=%v want %v", res.Fair, want)
	}
}

func TestFairProbabilityLocatesBySubstring(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("draftkings", map[string]float64{"Lakers": 1.8, "Celtics": 2.1}),
	}}
	res := e.FairProbability(game, oddsapi.MarketH2H, "Los Angeles Lakers")
	if res == nil {
		t.Fatalf("expected shortened panel name to resolve")
	}
	want := (1 / 1.8) / (1/1.8 + 1/2.1)
	if math.Abs(res.Fair-want) > 1e-9 {
		t.Fatalf("fair=%v want %v", res.Fair, want)
	}
}

func TestFairProbabilitySharpWeighting(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("pinnacle", map[string]float64{"A": 1.6, "B": 2.6}),
		h2hBook("draftkings", map[string]float64{"A": 2.0, "B": 2.0}),
	}}
	res := e.FairProbability(game, oddsapi.MarketH2H, "A")
	if res == nil {
		t.Fatalf("expected result")
	}
	if res.Books != 2 || res.Sharps != 1 {
		t.Fatalf("books=%d sharps=%d", res.Books, res.Sharps)
	}
	pinnacle := (1 / 1.6) / (1/1.6 + 1/2.6)
	dk := 0.5
	want := (pinnacle*1.5 + dk*1.0) / 2.5
	if math.Abs(res.Fair-want) > 1e-9 {
		t.Fatalf("fair=%v want %v", res.Fair, want)
	}
	if res.Fair <= (pinnacle+dk)/2 {
		t.Fatalf("sharp book should pull the mean toward it: %v", res.Fair)
	}
}

func TestFairProbabilityDropsOutliers(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("draftkings", map[string]float64{"A": 1.05, "B": 15.0}),
		h2hBook("fanduel", map[string]float64{"A": 1.8, "B": 2.1}),
	}}
	res := e.FairProbability(game, oddsapi.MarketH2H, "A")
	if res == nil {
		t.Fatalf("expected result")
	}
	if res.Books != 1 {
		t.Fatalf("outlier book should be dropped, books=%d", res.Books)
	}
}

func TestFairProbabilityNoBooks(t *testing.T) {
	e := New(testConfig())
	game := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("draftkings", map[string]float64{"X": 1.9, "Y": 1.9}),
	}}
	if res := e.FairProbability(game, oddsapi.MarketH2H, "A"); res != nil {
		t.Fatalf("expected nil, got %+v", res)
	}
	game2 := oddsapi.Event{Bookmakers: []oddsapi.Bookmaker{
		h2hBook("draftkings", map[string]float64{"A": 0.5, "B": 2.0}),
	}}
	if res := e.FairProbability(game2, oddsapi.MarketH2H, "A"); res != nil {
		t.Fatalf("invalid odds must not contribute, got %+v", res)
	}
}

func TestImpliedProbability(t *testing.T) {
	p, ok := ImpliedProbability(2.0)
	if !ok || p != 0.5 {
		t.Fatalf("got=(%v,%v)", p, ok)
	}
	if _, ok := ImpliedProbability(1.0); ok {
		t.Fatalf("price 1.0 has no implied probability")
	}
}
