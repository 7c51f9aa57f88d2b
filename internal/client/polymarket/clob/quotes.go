package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Order sides as the book names them. A BUY quote is the ask you would pay;
// a SELL quote is the bid you would receive.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Quote holds both sides of the book for one token. A nil side means the
// book had no resting orders there.
type Quote struct {
	Bid *float64
	Ask *float64
}

type priceRequest struct {
	TokenID string `json:"token_id"`
	Side    string `json:"side"`
}

// Prices fetches both sides of the book for every token in one request.
// Tokens missing from the response are simply absent from the map.
func (c *Client) Prices(ctx context.Context, tokenIDs []string) (map[string]Quote, error) {
	if len(tokenIDs) == 0 {
		return map[string]Quote{}, nil
	}
	reqs := make([]priceRequest, 0, len(tokenIDs)*2)
	for _, id := range tokenIDs {
		if id == "" {
			continue
		}
		reqs = append(reqs,
			priceRequest{TokenID: id, Side: SideBuy},
			priceRequest{TokenID: id, Side: SideSell},
		)
	}
	body, err := c.doPost(ctx, "/prices", reqs)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	out := make(map[string]Quote, len(raw))
	for id, sides := range raw {
		var q Quote
		for side, price := range sides {
			v, ok := price.Float()
			if !ok {
				continue
			}
			switch strings.ToUpper(side) {
			case SideBuy:
				q.Ask = &v
			case SideSell:
				q.Bid = &v
			}
		}
		out[id] = q
	}
	return out, nil
}

type spreadRequest struct {
	TokenID string `json:"token_id"`
}

// Spreads fetches the absolute bid/ask spread per token.
func (c *Client) Spreads(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	if len(tokenIDs) == 0 {
		return map[string]float64{}, nil
	}
	reqs := make([]spreadRequest, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == "" {
			continue
		}
		reqs = append(reqs, spreadRequest{TokenID: id})
	}
	body, err := c.doPost(ctx, "/spreads", reqs)
	if err != nil {
		return nil, err
	}
	var raw map[string]Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode spreads: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for id, d := range raw {
		if v, ok := d.Float(); ok {
			out[id] = v
		}
	}
	return out, nil
}

// Token is one half of a binary market.
type Token struct {
	TokenID string  `json:"token_id"`
	Price   Decimal `json:"price"`
	Outcome string  `json:"outcome"`
}

// MarketDetail is the single-market fallback response.
type MarketDetail struct {
	ConditionID string  `json:"condition_id"`
	Tokens      []Token `json:"tokens"`
	Volume      Decimal `json:"volume"`
}

// TokenPrice looks a token up by id. Callers must never index Tokens by
// position: the array order is not stable across markets.
func (m *MarketDetail) TokenPrice(tokenID string) (float64, bool) {
	if m == nil || tokenID == "" {
		return 0, false
	}
	for _, t := range m.Tokens {
		if t.TokenID == tokenID {
			return t.Price.Float()
		}
	}
	return 0, false
}

// VolumeDecimal returns the market's traded volume.
func (m *MarketDetail) VolumeDecimal() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m.Volume.Decimal
}

// GetMarket fetches one market by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*MarketDetail, error) {
	if conditionID == "" {
		return nil, fmt.Errorf("condition_id is required")
	}
	body, err := c.doGet(ctx, "/markets/"+conditionID, nil)
	if err != nil {
		return nil, err
	}
	var detail MarketDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &detail, nil
}
