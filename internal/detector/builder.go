package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/consensus"
	"github.com/favron1/ev-ace-advisor-sub003/internal/edge"
	"github.com/favron1/ev-ace-advisor-sub003/internal/matching"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/movement"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// skipReason names why a matched market produced no signal.
type skipReason string

const (
	skipNone       skipReason = ""
	skipNoEdge     skipReason = "NO_POSITIVE_EDGE"
	skipSwapBlock  skipReason = "MAPPING_INVERSION_BLOCK"
	skipFlipDead   skipReason = "FLIPPED_SIDE_NO_EDGE"
	skipBelowFloor skipReason = "EDGE_BELOW_FLOOR"
	skipStale      skipReason = "STALE_HIGH_PROB_PRICE"
	skipNoTrigger  skipReason = "NO_TRIGGER"
	skipFinalGate  skipReason = "FINAL_GATE_INVERSION"
)

// buildInput is everything the rails need for one matched market.
type buildInput struct {
	market  *models.WatchedMarket
	match   *matching.Result
	yesFair float64
	noFair  float64
	// books contributing to the YES and NO consensus, in that order.
	books [2]int
	price *pricing
	now   time.Time
}

// signalFactors is the audit blob stored on the signal row.
type signalFactors struct {
	TriggerReason     string     `json:"trigger_reason"`
	RawEdge           float64    `json:"raw_edge"`
	NetEdge           float64    `json:"net_edge"`
	Costs             edge.Costs `json:"costs"`
	YesFair           float64    `json:"yes_fair"`
	NoFair            float64    `json:"no_fair"`
	LiveYesPrice      float64    `json:"live_yes_price"`
	Books             int        `json:"books"`
	MatchedBy         string     `json:"matched_by"`
	MarketKey         string     `json:"market_key"`
	MovementDirection string     `json:"movement_direction,omitempty"`
	MovementBooks     int        `json:"movement_books,omitempty"`
	EdgeCapped        bool       `json:"edge_capped,omitempty"`
	SwapSuspect       bool       `json:"swap_suspect,omitempty"`
	SideFlipped       bool       `json:"side_flipped,omitempty"`
}

// candidate is a signal that passed every rail and is ready to persist.
type candidate struct {
	side        string
	outcome     string
	rawEdge     float64
	fair        float64
	price       float64
	volume      decimal.Decimal
	refreshedAt *time.Time
	costs       edge.Costs
	netEdge     float64
	trigger     string
	tier        string
	urgency     string
	confidence  float64
	books       int
	movement    movement.Assessment
	movementOK  bool
	factors     signalFactors
}

// apply fills every side-dependent field; called again after a forced flip.
func (c *candidate) apply(in buildInput, pair edge.Pair) {
	if c.side == models.SideYes {
		c.outcome = in.match.YesName
		c.rawEdge = pair.Yes
		c.fair = in.yesFair
		c.price = in.price.yes
		c.books = in.books[0]
		return
	}
	c.outcome = in.match.NoName
	c.rawEdge = pair.No
	c.fair = in.noFair
	c.price = 1 - in.price.yes
	c.books = in.books[1]
}

// buildSignal runs the rails in order. A nil candidate with a reason means
// the market was evaluated and deliberately not signalled this pass.
func (s *Service) buildSignal(ctx context.Context, in buildInput) (*candidate, skipReason) {
	det := s.cfg.Detector
	pair := edge.Compute(in.yesFair, in.noFair, in.price.yes)

	c := &candidate{}
	switch {
	case pair.Yes <= 0 && pair.No <= 0:
		return nil, skipNoEdge
	case pair.Yes >= pair.No:
		c.side = models.SideYes
	default:
		c.side = models.SideNo
	}
	c.apply(in, pair)

	// Dual-mapping rail: a dead straight mapping next to a fat swapped one
	// means the YES price almost certainly belongs to the other token.
	swapped := edge.Swapped(in.yesFair, in.noFair, in.price.yes)
	bestA, bestB := pair.Best(), swapped.Best()
	if bestA < det.SwapMinRealEdge && bestB > det.SwapThreshold {
		s.logger.Warn("mapping inversion blocked",
			zap.String("event", in.market.EventTitle),
			zap.Float64("best_straight", bestA),
			zap.Float64("best_swapped", bestB))
		return nil, skipSwapBlock
	}
	if bestB > det.SwapThreshold {
		s.logger.Warn("MAPPING_ALLOWED_DESPITE_SWAP",
			zap.String("event", in.market.EventTitle),
			zap.Float64("best_straight", bestA),
			zap.Float64("best_swapped", bestB))
		c.factors.SwapSuspect = true
	}

	sportCode := ""
	if in.market.SportCode != nil {
		sportCode = *in.market.SportCode
	}
	yesTitle, noTitle, titleOK := matching.ParseTitle(in.market.EventTitle)

	// Outcome-side consistency rail: the recommended outcome must belong to
	// the side being bought. A disagreement flips the side rather than
	// skipping, then prices the flipped side.
	if titleOK {
		if inferred, ok := sideFromTitle(sportCode, c.outcome, yesTitle, noTitle); ok && inferred != c.side {
			s.logger.Warn("side inferred from outcome disagrees, flipping",
				zap.String("event", in.market.EventTitle),
				zap.String("outcome", c.outcome),
				zap.String("chosen", c.side),
				zap.String("inferred", inferred))
			c.side = inferred
			c.apply(in, pair)
			c.factors.SideFlipped = true
			if c.rawEdge <= 0 {
				return nil, skipFlipDead
			}
		}
	}

	if c.rawEdge < det.RawEdgeFloor {
		return nil, skipBelowFloor
	}

	// Staleness rail: a big edge on a near-certain outcome priced minutes
	// ago is an artefact of the price being old, not an opportunity.
	if c.fair >= det.StaleFairMin {
		if in.price.refreshedAt == nil || in.now.Sub(*in.price.refreshedAt) > det.StalenessLimit {
			return nil, skipStale
		}
	}

	if c.fair >= det.ExtremeFairMin && c.rawEdge > det.ExtremeEdgeCap {
		c.rawEdge = det.ExtremeEdgeCap
		c.factors.EdgeCapped = true
	}

	// Movement reads last pass's snapshots; this pass's panel is written
	// after the builder returns.
	c.movement = s.movementFor(ctx, in.market.EventTitle, c.outcome, in.now)
	c.movementOK = c.movement.Triggered && c.movement.Direction == movement.DirectionShortening

	edgeTrig := c.rawEdge >= det.EdgeThreshold
	switch {
	case edgeTrig && c.movementOK:
		c.trigger = models.TriggerBoth
	case edgeTrig:
		c.trigger = models.TriggerEdge
	case c.movementOK:
		c.trigger = models.TriggerMovement
	default:
		return nil, skipNoTrigger
	}

	// Final gate: one last inversion check before anything is written.
	if titleOK {
		if inferred, ok := sideFromTitle(sportCode, c.outcome, yesTitle, noTitle); ok && inferred != c.side {
			s.logger.Warn("final gate inversion",
				zap.String("event", in.market.EventTitle),
				zap.String("outcome", c.outcome),
				zap.String("side", c.side))
			return nil, skipFinalGate
		}
	}

	volume, _ := in.price.volume.Float64()
	c.costs = edge.CostsFor(c.rawEdge, det.FeeRate, in.price.spread, volume, det.DefaultStakeUSD)
	c.netEdge = c.rawEdge - c.costs.Total()
	c.tier = edge.Tier(c.rawEdge, c.movementOK)
	c.urgency = models.UrgencyNormal
	if in.market.EventStartTime != nil {
		c.urgency = edge.Urgency(in.market.EventStartTime.Sub(in.now))
	}
	c.confidence = edge.Confidence(c.rawEdge, c.books, c.movementOK)
	c.volume = in.price.volume
	c.refreshedAt = in.price.refreshedAt

	c.factors.TriggerReason = c.trigger
	c.factors.RawEdge = c.rawEdge
	c.factors.NetEdge = c.netEdge
	c.factors.Costs = c.costs
	c.factors.YesFair = in.yesFair
	c.factors.NoFair = in.noFair
	c.factors.LiveYesPrice = in.price.yes
	c.factors.Books = c.books
	c.factors.MatchedBy = in.match.MatchedBy
	c.factors.MarketKey = in.match.MarketKey
	if c.movement.Triggered {
		c.factors.MovementDirection = c.movement.Direction
		c.factors.MovementBooks = c.movement.Books
	}
	return c, skipNone
}

// sideFromTitle maps an outcome name onto the exchange title's halves. The
// halves are often abbreviated, so a miss retries with nickname-expanded
// names.
func sideFromTitle(sportCode, outcome, yesTeam, noTeam string) (string, bool) {
	if yes, ok := matching.SideForOutcome(outcome, yesTeam, noTeam); ok {
		if yes {
			return models.SideYes, true
		}
		return models.SideNo, true
	}
	yesFull, okY := sports.ExpandTeam(sportCode, yesTeam)
	noFull, okN := sports.ExpandTeam(sportCode, noTeam)
	if !okY && !okN {
		return "", false
	}
	if okY {
		yesTeam = yesFull
	}
	if okN {
		noTeam = noFull
	}
	if yes, ok := matching.SideForOutcome(outcome, yesTeam, noTeam); ok {
		if yes {
			return models.SideYes, true
		}
		return models.SideNo, true
	}
	return "", false
}

func (s *Service) movementFor(ctx context.Context, eventName, outcome string, now time.Time) movement.Assessment {
	window := s.cfg.Movement.Window
	if window <= 0 {
		window = 30 * time.Minute
	}
	snaps, err := s.repo.ListSharpSnapshots(ctx, sports.EventKey(eventName, outcome), outcome, now.Add(-window))
	if err != nil {
		s.logger.Warn("list sharp snapshots",
			zap.String("event", eventName), zap.String("outcome", outcome), zap.Error(err))
		return movement.Assessment{}
	}
	return s.movement.Evaluate(snaps, now)
}

// panelSnapshots turns the sharp slice of a bookmaker panel into snapshot
// rows, keyed to be idempotent on re-insert. Raw implied probabilities go in
// deliberately: movement compares a book against itself, where the vig
// cancels out.
func panelSnapshots(eventName string, game oddsapi.Event, marketKey string, outcomes []string, now time.Time) []models.SharpSnapshot {
	var rows []models.SharpSnapshot
	for _, bm := range game.Bookmakers {
		book, ok := sports.SharpBook(bm.Key)
		if !ok {
			continue
		}
		mkt, ok := bm.FindMarket(marketKey)
		if !ok {
			continue
		}
		capturedAt := bm.LastUpdate
		if capturedAt.IsZero() {
			capturedAt = now
		}
		for _, name := range outcomes {
			out, ok := mkt.FindOutcome(name)
			if !ok {
				continue
			}
			p, ok := consensus.ImpliedProbability(out.Price)
			if !ok {
				continue
			}
			rows = append(rows, models.SharpSnapshot{
				EventKey:           sports.EventKey(eventName, name),
				EventName:          eventName,
				Outcome:            name,
				Bookmaker:          book,
				ImpliedProbability: p,
				RawOdds:            out.Price,
				CapturedAt:         capturedAt.UTC(),
			})
		}
	}
	return rows
}

// persistSignal applies the one-per-event rule, then routes through the
// lifecycle of whatever row already exists for this (event, outcome).
func (s *Service) persistSignal(ctx context.Context, market *models.WatchedMarket, c *candidate) (bool, *models.SignalOpportunity, error) {
	eventName := market.EventTitle
	if n, err := s.repo.ExpireOtherActiveSignals(ctx, eventName, c.outcome); err != nil {
		return false, nil, fmt.Errorf("expire superseded signals: %w", err)
	} else if n > 0 {
		s.logger.Info("expired superseded signals",
			zap.String("event", eventName),
			zap.String("kept_outcome", c.outcome),
			zap.Int64("count", n))
	}

	existing, err := s.repo.LatestSignalByEventOutcome(ctx, eventName, c.outcome)
	if err != nil {
		return false, nil, fmt.Errorf("lookup existing signal: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case models.SignalDismissed:
			s.logger.Debug("signal dismissed by operator, not recreating",
				zap.String("event", eventName), zap.String("outcome", c.outcome))
			return false, nil, nil
		case models.SignalExecuted:
			return false, nil, nil
		case models.SignalActive:
			if err := s.repo.UpdateSignalFields(ctx, existing.ID, s.signalUpdates(market, c)); err != nil {
				return false, nil, fmt.Errorf("update signal: %w", err)
			}
			return false, existing, nil
		}
	}

	row := s.signalRow(market, c)
	if err := s.repo.InsertSignal(ctx, row); err != nil {
		return false, nil, fmt.Errorf("insert signal: %w", err)
	}
	return true, row, nil
}

func (s *Service) signalRow(market *models.WatchedMarket, c *candidate) *models.SignalOpportunity {
	factors, _ := json.Marshal(c.factors)
	row := &models.SignalOpportunity{
		EventName:             market.EventTitle,
		RecommendedOutcome:    c.outcome,
		Side:                  c.side,
		SportCode:             market.SportCode,
		PolymarketConditionID: &market.ConditionID,
		PolymarketPrice:       c.price,
		PolymarketVolume:      c.volume,
		BookmakerProbFair:     c.fair,
		EdgePercent:           c.rawEdge * 100,
		SignalStrength:        c.netEdge * 100,
		SignalTier:            c.tier,
		TriggerReason:         c.trigger,
		MovementConfirmed:     c.movementOK,
		ConfidenceScore:       c.confidence,
		Urgency:               c.urgency,
		Status:                models.SignalActive,
		ExpiresAt:             market.EventStartTime,
		SignalFactors:         datatypes.JSON(factors),
		PolymarketUpdatedAt:   c.refreshedAt,
	}
	if c.movementOK {
		v := c.movement.Velocity
		row.MovementVelocity = &v
	}
	return row
}

func (s *Service) signalUpdates(market *models.WatchedMarket, c *candidate) map[string]any {
	factors, _ := json.Marshal(c.factors)
	updates := map[string]any{
		"side":                c.side,
		"polymarket_price":    c.price,
		"polymarket_volume":   c.volume,
		"bookmaker_prob_fair": c.fair,
		"edge_percent":        c.rawEdge * 100,
		"signal_strength":     c.netEdge * 100,
		"signal_tier":         c.tier,
		"trigger_reason":      c.trigger,
		"movement_confirmed":  c.movementOK,
		"confidence_score":    c.confidence,
		"urgency":             c.urgency,
		"signal_factors":      datatypes.JSON(factors),
		"expires_at":          market.EventStartTime,
	}
	if c.movementOK {
		updates["movement_velocity"] = c.movement.Velocity
	} else {
		updates["movement_velocity"] = nil
	}
	if c.refreshedAt != nil {
		updates["polymarket_updated_at"] = *c.refreshedAt
	}
	return updates
}

// shouldAlert limits notifications to strong signals on games close enough
// to act on but not yet started.
func (s *Service) shouldAlert(sig *models.SignalOpportunity, now time.Time) bool {
	if sig.SignalTier != models.TierStrong && sig.SignalTier != models.TierElite {
		return false
	}
	if sig.ExpiresAt == nil {
		return false
	}
	maxLead := s.cfg.Detector.AlertMaxLead
	if maxLead <= 0 {
		maxLead = 24 * time.Hour
	}
	lead := sig.ExpiresAt.Sub(now)
	return lead > 0 && lead <= maxLead
}
