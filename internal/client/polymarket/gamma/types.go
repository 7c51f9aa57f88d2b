// Package polymarketgamma is a read-only client for the exchange's metadata
// API. The catalog sync uses it to discover sports markets worth watching;
// prices come from the order book API, not from here.
package polymarketgamma

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// JSONFloat tolerates the API's habit of sending numbers as strings.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

func (j JSONFloat) Float64() float64 {
	return float64(j)
}

// FlexTime parses the two timestamp layouts the API mixes: RFC 3339 and a
// space-separated variant with a numeric zone.
type FlexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05.999Z07:00",
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range flexLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// EventRef is the event container a market belongs to. Its title carries the
// matchup text ("Lakers vs Celtics").
type EventRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// Sports market subtypes as the metadata API reports them.
const (
	SportsMarketMoneyline = "moneyline"
	SportsMarketSpreads   = "spreads"
	SportsMarketTotals    = "totals"
)

// Market is one binary market's metadata. Outcome names, prices, and token
// ids arrive as JSON arrays encoded inside strings.
type Market struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	ConditionID     string `json:"conditionId"`
	Slug            string `json:"slug"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	Archived        bool   `json:"archived"`
	AcceptingOrders bool   `json:"acceptingOrders"`

	ClobTokenIDsRaw  string `json:"clobTokenIds"`
	OutcomesRaw      string `json:"outcomes"`
	OutcomePricesRaw string `json:"outcomePrices"`

	Volume    JSONFloat `json:"volume"`
	Liquidity JSONFloat `json:"liquidity"`
	Spread    JSONFloat `json:"spread"`

	StartDate     FlexTime `json:"startDate"`
	EndDate       FlexTime `json:"endDate"`
	GameStartTime FlexTime `json:"gameStartTime"`

	SportsMarketType string     `json:"sportsMarketType"`
	Events           []EventRef `json:"events,omitempty"`
}

// Tradeable reports whether the market can currently be traded.
func (m *Market) Tradeable() bool {
	return m.Active && !m.Closed && !m.Archived && m.AcceptingOrders
}

// EventTitle returns the owning event's title, falling back to the question.
func (m *Market) EventTitle() string {
	for _, ev := range m.Events {
		if strings.TrimSpace(ev.Title) != "" {
			return ev.Title
		}
	}
	return m.Question
}

// ClobTokenIDs returns the parsed token id array, YES side first by
// convention when outcomes are Yes/No.
func (m *Market) ClobTokenIDs() []string {
	return parseStringArray(m.ClobTokenIDsRaw)
}

// Outcomes returns the parsed outcome names.
func (m *Market) Outcomes() []string {
	return parseStringArray(m.OutcomesRaw)
}

// OutcomePrices returns the parsed outcome prices as strings.
func (m *Market) OutcomePrices() []string {
	return parseStringArray(m.OutcomePricesRaw)
}

// StartTime prefers the scheduled game start over the market close.
func (m *Market) StartTime() time.Time {
	if !m.GameStartTime.IsZero() {
		return m.GameStartTime.Time
	}
	return m.EndDate.Time
}

func parseStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// MarketsFilter narrows a markets listing.
type MarketsFilter struct {
	Active     *bool
	Closed     *bool
	TagID      string
	EndDateMin time.Time
	EndDateMax time.Time
	Limit      int
	Offset     int
	Order      string
	Ascending  bool
}
