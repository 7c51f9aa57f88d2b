package matching

import (
	"strings"

	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// assignOutcome finds the index of the bookmaker outcome that names the given
// team. Three stages, strict to loose:
//
//  1. exact match on the normalized, affix-stripped names
//  2. bidirectional substring on the same forms
//  3. most shared tokens, two minimum
//
// exclude removes an index already claimed by the other side, so both halves
// can never land on the same outcome.
func assignOutcome(team string, outcomes []string, exclude int) int {
	norm := sports.StripAffixes(sports.Normalize(team))
	if norm == "" {
		return -1
	}
	for i, o := range outcomes {
		if i == exclude {
			continue
		}
		if sports.StripAffixes(sports.Normalize(o)) == norm {
			return i
		}
	}
	for i, o := range outcomes {
		if i == exclude {
			continue
		}
		on := sports.StripAffixes(sports.Normalize(o))
		if on == "" {
			continue
		}
		if strings.Contains(on, norm) || strings.Contains(norm, on) {
			return i
		}
	}
	best := -1
	bestScore := 0
	for i, o := range outcomes {
		if i == exclude {
			continue
		}
		if n := sharedTokens(team, o); n >= 2 && n > bestScore {
			best = i
			bestScore = n
		}
	}
	return best
}

// assignOutcomes maps the YES and NO team names onto a bookmaker outcome
// list. The YES side is assigned first; the NO side may not reuse its index.
func assignOutcomes(yesTeam, noTeam string, outcomes []string) (yesIdx, noIdx int, ok bool) {
	yesIdx = assignOutcome(yesTeam, outcomes, -1)
	if yesIdx < 0 {
		return -1, -1, false
	}
	noIdx = assignOutcome(noTeam, outcomes, yesIdx)
	if noIdx < 0 || noIdx == yesIdx {
		return -1, -1, false
	}
	return yesIdx, noIdx, true
}
