package oddsapi

import "time"

// Market keys on the /odds endpoint.
const (
	MarketH2H     = "h2h"
	MarketTotals  = "totals"
	MarketSpreads = "spreads"
)

// Event is one upcoming game with the bookmaker panel attached.
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome prices are decimal odds. Point is set for totals and spreads.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// FindMarket returns the bookmaker's market with the given key.
func (b Bookmaker) FindMarket(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

// FindOutcome returns the outcome with the given name.
func (m Market) FindOutcome(name string) (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}
