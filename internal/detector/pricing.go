package detector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

// pricing is the resolved exchange view of one market: the YES buy price,
// pool volume, the book spread when the venue reported one, and when the
// price was last observed.
type pricing struct {
	yes         float64
	volume      decimal.Decimal
	spread      *float64
	refreshedAt *time.Time
}

// resolvePrice walks the fallback chain: batch ask, single-market lookup,
// then the cached price from the catalog row. A market with no YES token id
// cannot be priced at all.
func (s *Service) resolvePrice(ctx context.Context, market *models.WatchedMarket, quotes map[string]clob.Quote, spreads map[string]float64, now time.Time) (*pricing, bool) {
	token := ""
	if market.YesTokenID != nil {
		token = strings.TrimSpace(*market.YesTokenID)
	}
	if token == "" {
		s.logger.Warn("NO_TOKEN_ID_SKIP",
			zap.String("condition_id", market.ConditionID),
			zap.String("event", market.EventTitle))
		return nil, false
	}

	p := &pricing{volume: market.CachedVolume}
	if sp, ok := spreads[token]; ok && sp > 0 {
		s2 := sp
		p.spread = &s2
	}

	if q, ok := quotes[token]; ok && q.Ask != nil && *q.Ask > 0 {
		p.yes = *q.Ask
		p.refreshedAt = &now
		if p.spread == nil && q.Bid != nil && *q.Bid > 0 {
			if mid := (*q.Ask + *q.Bid) / 2; mid > 0 {
				synth := (*q.Ask - *q.Bid) / mid
				p.spread = &synth
			}
		}
		s.storeQuote(ctx, market.ConditionID, p, now)
		return p, true
	}

	detail, err := s.quotes.GetMarket(ctx, market.ConditionID)
	if err != nil {
		s.logger.Debug("market detail fallback failed",
			zap.String("condition_id", market.ConditionID), zap.Error(err))
	} else if detail != nil {
		if price, ok := detail.TokenPrice(token); ok {
			p.yes = price
			p.refreshedAt = &now
			if v := detail.VolumeDecimal(); v.IsPositive() {
				p.volume = v
			}
			s.storeQuote(ctx, market.ConditionID, p, now)
			return p, true
		}
	}

	if market.CachedYesPrice != nil && *market.CachedYesPrice > 0 {
		p.yes = *market.CachedYesPrice
		p.refreshedAt = market.LastPolyRefresh
		return p, true
	}
	return nil, false
}

func (s *Service) storeQuote(ctx context.Context, conditionID string, p *pricing, now time.Time) {
	vol := p.volume
	if err := s.repo.UpdateMarketQuote(ctx, conditionID, &p.yes, &vol, now); err != nil {
		s.logger.Warn("cache market quote",
			zap.String("condition_id", conditionID), zap.Error(err))
	}
}

// refreshActiveSignals re-marks open signals at the latest exchange price so
// list endpoints show live numbers between passes. Best-effort per row.
func (s *Service) refreshActiveSignals(ctx context.Context, quotes map[string]clob.Quote, now time.Time) {
	signals, err := s.repo.ListActiveSignals(ctx)
	if err != nil {
		s.logger.Warn("list active signals", zap.Error(err))
		return
	}
	for i := range signals {
		sig := &signals[i]
		if sig.PolymarketConditionID == nil {
			continue
		}
		market, err := s.repo.GetWatchedMarket(ctx, *sig.PolymarketConditionID)
		if err != nil || market == nil {
			continue
		}
		var yes *float64
		if market.YesTokenID != nil {
			if q, ok := quotes[strings.TrimSpace(*market.YesTokenID)]; ok && q.Ask != nil && *q.Ask > 0 {
				yes = q.Ask
			}
		}
		if yes == nil {
			yes = market.CachedYesPrice
		}
		if yes == nil {
			continue
		}
		price := *yes
		if sig.Side == models.SideNo {
			price = 1 - *yes
		}
		updates := map[string]any{
			"polymarket_price":      price,
			"polymarket_volume":     market.CachedVolume,
			"polymarket_updated_at": now,
		}
		if err := s.repo.UpdateSignalFields(ctx, sig.ID, updates); err != nil {
			s.logger.Warn("refresh signal price",
				zap.Uint64("signal_id", sig.ID), zap.Error(err))
		}
	}
}
