// Package movement detects coordinated sharp-book line moves from stored
// probability snapshots. Only sharp books are snapshotted, so every row the
// detector sees carries signal weight. A move counts when at least two books
// shifted the same way, recently, and no sharp book leaned the other way.
package movement

import (
	"math"
	"sort"
	"time"

	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

// Direction of a confirmed move. Shortening means the implied probability
// rose: the books think the outcome got more likely.
const (
	DirectionShortening = "shortening"
	DirectionDrifting   = "drifting"
)

// Assessment summarizes sharp movement for one event outcome.
type Assessment struct {
	Triggered bool
	Direction string
	// Books that confirmed the move.
	Books int
	// Velocity is the mean absolute probability change across confirming
	// books over the window.
	Velocity float64
}

type Detector struct {
	cfg config.MovementConfig
}

func New(cfg config.MovementConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Threshold is the minimum absolute change a book must show to qualify,
// scaled to where the book started so long shots need proportionally more.
func (d *Detector) Threshold(oldest float64) float64 {
	if rel := d.cfg.RelativeFactor * oldest; rel > d.cfg.BaseThreshold {
		return rel
	}
	return d.cfg.BaseThreshold
}

type bookMove struct {
	book   string
	change float64
}

// Evaluate inspects the window's snapshots for one (event, outcome) and
// decides whether sharp books moved together. Snapshots may arrive in any
// order; books with a single row contribute a zero change.
func (d *Detector) Evaluate(snaps []models.SharpSnapshot, now time.Time) Assessment {
	if len(snaps) < 2 {
		return Assessment{}
	}
	byBook := make(map[string][]models.SharpSnapshot)
	for _, s := range snaps {
		byBook[s.Bookmaker] = append(byBook[s.Bookmaker], s)
	}

	recencyCut := now.Add(-d.cfg.RecencyWindow)
	all := make([]bookMove, 0, len(byBook))
	qualifying := make([]bookMove, 0, len(byBook))
	for book, series := range byBook {
		sort.Slice(series, func(i, j int) bool { return series[i].CapturedAt.Before(series[j].CapturedAt) })
		oldest, newest := series[0], series[len(series)-1]
		change := newest.ImpliedProbability - oldest.ImpliedProbability
		all = append(all, bookMove{book: book, change: change})
		if math.Abs(change) < d.Threshold(oldest.ImpliedProbability) {
			continue
		}
		// The move must be concentrated in the recency window: measure from
		// the last snapshot at or before the cutoff. When every snapshot is
		// newer than the cutoff the whole move is recent.
		baseline := oldest
		for _, s := range series {
			if s.CapturedAt.After(recencyCut) {
				break
			}
			baseline = s
		}
		recent := newest.ImpliedProbability - baseline.ImpliedProbability
		if recent/change < d.cfg.RecencyShare {
			continue
		}
		qualifying = append(qualifying, bookMove{book: book, change: change})
	}

	for _, sign := range []float64{1, -1} {
		confirming := confirmingMoves(qualifying, sign)
		if len(confirming) < d.cfg.MinBooks {
			continue
		}
		if countered(all, sign, d.cfg.CounterThreshold) {
			continue
		}
		var sum float64
		for _, mv := range confirming {
			sum += math.Abs(mv.change)
		}
		dir := DirectionShortening
		if sign < 0 {
			dir = DirectionDrifting
		}
		return Assessment{
			Triggered: true,
			Direction: dir,
			Books:     len(confirming),
			Velocity:  sum / float64(len(confirming)),
		}
	}
	return Assessment{}
}

func confirmingMoves(moves []bookMove, sign float64) []bookMove {
	out := make([]bookMove, 0, len(moves))
	for _, mv := range moves {
		if mv.change*sign > 0 {
			out = append(out, mv)
		}
	}
	return out
}

// countered reports whether any sharp book moved against the candidate
// direction by at least the counter threshold.
func countered(moves []bookMove, sign, threshold float64) bool {
	for _, mv := range moves {
		if mv.change*sign < 0 && math.Abs(mv.change) >= threshold {
			return true
		}
	}
	return false
}
