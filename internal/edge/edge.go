// Package edge holds the signal builder's arithmetic: directional edge
// algebra on the binary contract, the cost model between raw and net edge,
// and tier, urgency and confidence grading. Everything here is pure; the
// detector owns the gating order.
package edge

import (
	"time"

	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

// Pair is the edge of buying each side at the current exchange quote.
type Pair struct {
	Yes float64
	No  float64
}

// Best returns the larger of the two edges.
func (p Pair) Best() float64 {
	if p.Yes >= p.No {
		return p.Yes
	}
	return p.No
}

// Compute prices both sides against fair value. YES is bought at the ask,
// NO at one minus the ask.
func Compute(yesFair, noFair, yesPrice float64) Pair {
	return Pair{
		Yes: yesFair - yesPrice,
		No:  noFair - (1 - yesPrice),
	}
}

// Swapped recomputes the edges under the assumption that the exchange price
// was assigned to the wrong side. The dual-mapping rail compares its best
// edge against the straight mapping's.
func Swapped(yesFair, noFair, yesPrice float64) Pair {
	return Pair{
		Yes: yesFair - (1 - yesPrice),
		No:  noFair - yesPrice,
	}
}

// Slippage bounds as fractions of price.
const (
	slippageMin = 0.002
	slippageMax = 0.03
)

// Spread fallback anchors: deep books cost half a point, thin books three.
const (
	spreadDeepVolume = 500_000.0
	spreadDeepCost   = 0.005
	spreadThinVolume = 10_000.0
	spreadThinCost   = 0.03
)

// Costs is the deduction breakdown between raw and net edge. It is embedded
// in the signal's factor blob, so fields carry JSON tags.
type Costs struct {
	Fee      float64 `json:"fee"`
	Spread   float64 `json:"spread_cost"`
	Slippage float64 `json:"slippage"`
}

func (c Costs) Total() float64 {
	return c.Fee + c.Spread + c.Slippage
}

// Fee is the platform's cut, charged on positive edge only.
func Fee(rawEdge, feeRate float64) float64 {
	if rawEdge <= 0 {
		return 0
	}
	return rawEdge * feeRate
}

// SpreadCost prefers the measured book spread. Without one it grades the
// estimate linearly on volume between the thin and deep anchors.
func SpreadCost(measured *float64, volume float64) float64 {
	if measured != nil && *measured > 0 {
		return *measured
	}
	switch {
	case volume >= spreadDeepVolume:
		return spreadDeepCost
	case volume <= spreadThinVolume:
		return spreadThinCost
	}
	frac := (volume - spreadThinVolume) / (spreadDeepVolume - spreadThinVolume)
	return spreadThinCost + frac*(spreadDeepCost-spreadThinCost)
}

// Slippage scales with the stake's share of pool volume, clamped to the
// configured band. An empty pool gets the worst case.
func Slippage(stakeUSD, volume float64) float64 {
	if volume <= 0 {
		return slippageMax
	}
	s := stakeUSD / volume * 3.0
	if s < slippageMin {
		return slippageMin
	}
	if s > slippageMax {
		return slippageMax
	}
	return s
}

// CostsFor assembles the full deduction set for one candidate signal.
func CostsFor(rawEdge, feeRate float64, measuredSpread *float64, volume, stakeUSD float64) Costs {
	return Costs{
		Fee:      Fee(rawEdge, feeRate),
		Spread:   SpreadCost(measuredSpread, volume),
		Slippage: Slippage(stakeUSD, volume),
	}
}

// Tier grades a signal from its raw edge and movement confirmation. Movement
// upgrades the tier; it never picks the side.
func Tier(rawEdge float64, movementTriggered bool) string {
	switch {
	case rawEdge >= 0.10:
		if movementTriggered {
			return models.TierElite
		}
		return models.TierStrong
	case movementTriggered && rawEdge >= 0.05:
		return models.TierElite
	case movementTriggered && rawEdge >= 0.03:
		return models.TierStrong
	}
	return models.TierStatic
}

// Urgency buckets time to event start.
func Urgency(untilStart time.Duration) string {
	switch {
	case untilStart < time.Hour:
		return models.UrgencyCritical
	case untilStart < 4*time.Hour:
		return models.UrgencyHigh
	case untilStart > 24*time.Hour:
		return models.UrgencyLow
	}
	return models.UrgencyNormal
}

// Confidence scores a signal for ranking, hard-capped at 95: an edge is a
// probability estimate, never a certainty.
func Confidence(rawEdge float64, books int, movementTriggered bool) float64 {
	score := 40.0 + rawEdge*150.0
	switch {
	case books >= 4:
		score += 10
	case books >= 3:
		score += 5
	}
	if movementTriggered {
		score += 15
	}
	if score > 95 {
		return 95
	}
	if score < 0 {
		return 0
	}
	return score
}
