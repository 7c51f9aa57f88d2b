package detector

import (
	"context"
	"sort"
	"time"

	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// loadWatchSet assembles the pass's market list: API-sourced rows filtered
// by volume under one cap, scraped rows under a separate cap, deduplicated
// by condition id with the API row winning, then ordered by event start so
// the soonest games survive a deadline cut.
func (s *Service) loadWatchSet(ctx context.Context, now time.Time) ([]models.WatchedMarket, error) {
	lookahead := s.cfg.Loader.Lookahead
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}
	horizon := now.Add(lookahead)

	base := repository.ListWatchedMarketsParams{
		MonitoringStatuses: []string{models.MonitoringWatching, models.MonitoringTriggered},
		Status:             models.MarketActive,
		StartAfter:         &now,
		StartByOrBefore:    &horizon,
		OrderByStartAsc:    true,
	}

	apiParams := base
	apiParams.Sources = []string{models.SourceAPI}
	apiParams.IncludeNullSource = true
	if s.cfg.Loader.APIVolumeMin > 0 {
		min := s.cfg.Loader.APIVolumeMin
		apiParams.MinVolume = &min
	}
	apiParams.Limit = s.cfg.Loader.APICap

	fcParams := base
	fcParams.Sources = []string{models.SourceFirecrawl}
	fcParams.Limit = s.cfg.Loader.FirecrawlCap

	apiRows, err := s.repo.ListWatchedMarkets(ctx, apiParams)
	if err != nil {
		return nil, err
	}
	fcRows, err := s.repo.ListWatchedMarkets(ctx, fcParams)
	if err != nil {
		return nil, err
	}

	out := make([]models.WatchedMarket, 0, len(apiRows)+len(fcRows))
	seen := make(map[string]bool, len(apiRows)+len(fcRows))
	for _, m := range apiRows {
		if seen[m.ConditionID] {
			continue
		}
		seen[m.ConditionID] = true
		out = append(out, m)
	}
	for _, m := range fcRows {
		if seen[m.ConditionID] {
			continue
		}
		seen[m.ConditionID] = true
		out = append(out, m)
	}

	// Backfill missing or unknown sport codes from the title text.
	for i := range out {
		if out[i].SportCode != nil && sports.Supported(*out[i].SportCode) {
			continue
		}
		if code := sports.Detect(out[i].EventTitle + " " + out[i].Question); code != sports.CodeUnknown {
			out[i].SportCode = &code
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].EventStartTime, out[j].EventStartTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}
