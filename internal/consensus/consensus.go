// Package consensus turns a game's bookmaker panel into a single fair
// probability per outcome. Each book's overround is removed by two-way
// normalization, outlier books are dropped, and sharp books carry extra
// weight in the mean.
package consensus

import (
	"strings"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

type Engine struct {
	cfg config.ConsensusConfig
}

func New(cfg config.ConsensusConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Result is the weighted consensus for one outcome.
type Result struct {
	Fair   float64
	Books  int
	Sharps int
}

// FairProbability computes the vig-free consensus probability that outcome
// wins, across every bookmaker carrying marketKey. Returns nil when no book
// contributed. Soccer draw outcomes are excluded before normalization, so
// h2h fairs are always two-way.
func (e *Engine) FairProbability(game oddsapi.Event, marketKey, outcome string) *Result {
	var sum, weightSum float64
	var books, sharps int
	for _, bm := range game.Bookmakers {
		fair, ok := e.bookFair(bm, marketKey, outcome)
		if !ok {
			continue
		}
		weight := 1.0
		if _, sharp := sports.SharpBook(bm.Key); sharp {
			weight = e.cfg.SharpWeight
			sharps++
		}
		sum += fair * weight
		weightSum += weight
		books++
	}
	if books == 0 || weightSum == 0 {
		return nil
	}
	return &Result{Fair: sum / weightSum, Books: books, Sharps: sharps}
}

// bookFair removes one book's vig for the target outcome. The book is
// skipped when the market or outcome is missing, a price is not a valid
// decimal odd, or its vig-free probability for the target is an outlier.
func (e *Engine) bookFair(bm oddsapi.Bookmaker, marketKey, outcome string) (float64, bool) {
	market, ok := bm.FindMarket(marketKey)
	if !ok {
		return 0, false
	}
	type priced struct {
		name  string
		price float64
	}
	kept := make([]priced, 0, len(market.Outcomes))
	var invSum float64
	for _, o := range market.Outcomes {
		name := sports.Normalize(o.Name)
		if name == "draw" || name == "tie" {
			continue
		}
		if o.Price <= 1.0 {
			return 0, false
		}
		kept = append(kept, priced{name: name, price: o.Price})
		invSum += 1.0 / o.Price
	}
	if len(kept) < 2 || invSum <= 0 {
		return 0, false
	}

	// Exact normalized name first, then containment for books that shorten
	// names ("Lakers" inside "Los Angeles Lakers").
	want := sports.Normalize(outcome)
	target := -1
	for i, k := range kept {
		if k.name == want {
			target = i
			break
		}
	}
	if target < 0 {
		for i, k := range kept {
			if strings.Contains(k.name, want) || strings.Contains(want, k.name) {
				target = i
				break
			}
		}
	}
	if target < 0 {
		return 0, false
	}
	fair := (1.0 / kept[target].price) / invSum
	if fair > e.cfg.OutlierHigh || fair < e.cfg.OutlierLow {
		return 0, false
	}
	return fair, true
}

// ImpliedProbability is the raw 1/odds probability, vig included. Snapshot
// rows store this form so movement is measured on what the book actually
// posted.
func ImpliedProbability(price float64) (float64, bool) {
	if price <= 1.0 {
		return 0, false
	}
	return 1.0 / price, true
}
