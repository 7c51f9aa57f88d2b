// Package matching pairs exchange markets with sportsbook games. A cascade
// of strategies is tried in order, strict to loose: direct word matching,
// nickname expansion, token-set similarity, and finally a language-model
// resolver under a per-pass budget. Every tier funnels into the same outcome
// assignment step, so a loose tier can never invent a pairing the strict
// assignment rules would reject.
package matching

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// Event is the exchange-side view of a market to be matched.
type Event struct {
	Title      string
	Question   string
	SportCode  string
	MarketType string
	StartTime  *time.Time
}

// Result pairs an exchange market with one bookmaker game. YesIndex and
// NoIndex point into the reference bookmaker's outcome list; YesName and
// NoName are that bookmaker's canonical outcome names.
type Result struct {
	Game      oddsapi.Event
	MarketKey string
	YesIndex  int
	NoIndex   int
	YesName   string
	NoName    string
	MatchedBy string
}

// Match tiers, reported for diagnostics.
const (
	MatchedDirect   = "direct"
	MatchedNickname = "nickname"
	MatchedFuzzy    = "fuzzy"
	MatchedLLM      = "llm"
)

const (
	// Exchange and sportsbook must agree on the event date.
	maxStartDelta = 24 * time.Hour
	// Candidate games must start inside the monitoring window around now.
	gameGraceBefore = 30 * time.Minute
	gameLookahead   = 24 * time.Hour

	jaccardMin = 0.5
)

// Matcher holds per-pass state: the language-model call budget and the
// resolution cache, negatives included. Construct a fresh one per pass.
type Matcher struct {
	resolver    EventResolver
	logger      *zap.Logger
	callTimeout time.Duration
	callBudget  int
	calls       int
	cache       map[string]*Resolution
}

func NewMatcher(resolver EventResolver, callBudget int, callTimeout time.Duration, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if callTimeout <= 0 {
		callTimeout = 8 * time.Second
	}
	return &Matcher{
		resolver:    resolver,
		logger:      logger,
		callTimeout: callTimeout,
		callBudget:  callBudget,
		cache:       make(map[string]*Resolution),
	}
}

// ResolverCalls returns how many language-model calls this pass has spent.
func (m *Matcher) ResolverCalls() int {
	return m.calls
}

// Match pairs one exchange event against the sport's candidate games.
// Returns nil when no tier produces a validated pairing.
func (m *Matcher) Match(ctx context.Context, ev Event, games []oddsapi.Event, now time.Time) *Result {
	yesTeam, noTeam, ok := ParseTitle(ev.Title)
	if !ok {
		m.logger.Debug("unparseable event title", zap.String("title", ev.Title))
		return nil
	}
	candidates := filterByDate(ev, games, now)
	if len(candidates) == 0 {
		return nil
	}
	marketKey := marketKeyFor(ev.MarketType)
	rawPair := [2]string{yesTeam, noTeam}

	// Tier 1: the exchange text already names both teams.
	if g := pickDirect(ev.Title, candidates, ev.StartTime); g != nil {
		return m.finish(ev, *g, marketKey, [][2]string{rawPair}, MatchedDirect)
	}

	// Tier 2: both halves resolve through the nickname index.
	expYes, okYes := sports.ExpandTeam(ev.SportCode, yesTeam)
	expNo, okNo := sports.ExpandTeam(ev.SportCode, noTeam)
	if okYes && okNo {
		filtered := make([]oddsapi.Event, 0, len(candidates))
		for _, g := range candidates {
			if gameContainsTeam(g, expYes) && gameContainsTeam(g, expNo) {
				filtered = append(filtered, g)
			}
		}
		expandedTitle := expYes + " vs " + expNo
		if g := pickDirect(expandedTitle, filtered, ev.StartTime); g != nil {
			return m.finish(ev, *g, marketKey, [][2]string{{expYes, expNo}, rawPair}, MatchedNickname)
		}
	}

	// Tier 3: token-set similarity with a nickname-in-text guard.
	if g := m.pickFuzzy(ev.Title, candidates); g != nil {
		pairs := [][2]string{rawPair}
		if okYes || okNo {
			y, n := yesTeam, noTeam
			if okYes {
				y = expYes
			}
			if okNo {
				n = expNo
			}
			pairs = append(pairs, [2]string{y, n})
		}
		return m.finish(ev, *g, marketKey, pairs, MatchedFuzzy)
	}

	// Tier 4: language-model resolution under the per-pass budget.
	if resYes, resNo, ok := m.resolve(ctx, ev.Title, ev.SportCode, yesTeam, noTeam); ok {
		filtered := make([]oddsapi.Event, 0, len(candidates))
		for _, g := range candidates {
			if gameContainsTeam(g, resYes) && gameContainsTeam(g, resNo) {
				filtered = append(filtered, g)
			}
		}
		resolvedTitle := resYes + " vs " + resNo
		if g := pickDirect(resolvedTitle, filtered, ev.StartTime); g != nil {
			return m.finish(ev, *g, marketKey, [][2]string{{resYes, resNo}, rawPair}, MatchedLLM)
		}
	}
	return nil
}

// finish runs outcome assignment against the selected game's reference
// market. Name pairs are tried in order until one assigns cleanly.
func (m *Matcher) finish(ev Event, game oddsapi.Event, marketKey string, pairs [][2]string, tier string) *Result {
	ref, ok := referenceMarket(game, marketKey)
	if !ok {
		m.logger.Debug("matched game carries no priceable market",
			zap.String("title", ev.Title), zap.String("market", marketKey))
		return nil
	}
	names := make([]string, len(ref.Outcomes))
	for i, o := range ref.Outcomes {
		names[i] = o.Name
	}

	if marketKey == oddsapi.MarketTotals {
		yesName, noName := totalsOrientation(ev.Question)
		yesIdx := indexOfName(names, yesName)
		noIdx := indexOfName(names, noName)
		if yesIdx < 0 || noIdx < 0 || yesIdx == noIdx {
			return nil
		}
		return &Result{Game: game, MarketKey: marketKey, YesIndex: yesIdx, NoIndex: noIdx,
			YesName: names[yesIdx], NoName: names[noIdx], MatchedBy: tier}
	}

	for _, p := range pairs {
		yesIdx, noIdx, ok := assignOutcomes(p[0], p[1], names)
		if !ok {
			continue
		}
		return &Result{Game: game, MarketKey: marketKey, YesIndex: yesIdx, NoIndex: noIdx,
			YesName: names[yesIdx], NoName: names[noIdx], MatchedBy: tier}
	}
	m.logger.Debug("outcome assignment failed",
		zap.String("title", ev.Title),
		zap.String("game", game.HomeTeam+" vs "+game.AwayTeam),
		zap.String("tier", tier))
	return nil
}

// resolve asks the language model to name the two teams, then orients the
// answer back to the title halves. An answer with no tie to the title text
// is discarded and cached as a negative: hallucinated pairings are worse
// than no pairing.
func (m *Matcher) resolve(ctx context.Context, title, sportCode, yesTeam, noTeam string) (string, string, bool) {
	if m.resolver == nil {
		return "", "", false
	}
	key := strings.ToUpper(sportCode) + "|" + sports.Normalize(title)
	res, cached := m.cache[key]
	if !cached {
		if m.calls >= m.callBudget {
			return "", "", false
		}
		m.calls++
		cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
		r, err := m.resolver.ResolveTeams(cctx, title, sportCode)
		cancel()
		if err != nil {
			m.logger.Warn("resolver call failed", zap.String("title", title), zap.Error(err))
			m.cache[key] = nil
			return "", "", false
		}
		if r != nil && strings.EqualFold(r.Confidence, "low") {
			r = nil
		}
		if r != nil && !resolutionNamesInTitle(title, r) {
			m.logger.Debug("resolver answer names teams absent from title",
				zap.String("title", title),
				zap.String("team_a", r.TeamA), zap.String("team_b", r.TeamB))
			r = nil
		}
		m.cache[key] = r
		res = r
	}
	if res == nil || res.TeamA == "" || res.TeamB == "" {
		return "", "", false
	}
	return orientResolution(sportCode, yesTeam, noTeam, res)
}

// resolutionNamesInTitle requires at least one resolved team's nickname (its
// last word) to appear in the exchange title.
func resolutionNamesInTitle(title string, r *Resolution) bool {
	text := tokenSet(title)
	for _, team := range []string{r.TeamA, r.TeamB} {
		if w := lastWord(team); len(w) > 2 && text[w] {
			return true
		}
	}
	return false
}

// orientResolution maps the resolved pair onto the YES/NO title halves by
// word overlap. Ambiguous orientations are rejected.
func orientResolution(sportCode, yesTeam, noTeam string, r *Resolution) (string, string, bool) {
	scoreAB := halfScore(sportCode, r.TeamA, yesTeam) + halfScore(sportCode, r.TeamB, noTeam)
	scoreBA := halfScore(sportCode, r.TeamA, noTeam) + halfScore(sportCode, r.TeamB, yesTeam)
	switch {
	case scoreAB > scoreBA:
		return r.TeamA, r.TeamB, true
	case scoreBA > scoreAB:
		return r.TeamB, r.TeamA, true
	}
	return "", "", false
}

func halfScore(sportCode, resolved, half string) int {
	score := sharedTokens(resolved, half)
	if full, ok := sports.ExpandTeam(sportCode, half); ok {
		if s := sharedTokens(resolved, full); s > score {
			score = s
		}
	}
	return score
}

// pickFuzzy scores every candidate by token-set similarity between the
// exchange title and "home vs away". The best game must clear the similarity
// bar and carry a team whose nickname appears verbatim in the title.
func (m *Matcher) pickFuzzy(title string, games []oddsapi.Event) *oddsapi.Event {
	var best *oddsapi.Event
	bestScore := 0.0
	for i := range games {
		g := &games[i]
		score := jaccard(title, g.HomeTeam+" vs "+g.AwayTeam)
		if score > bestScore {
			best, bestScore = g, score
		}
	}
	if best == nil || bestScore < jaccardMin {
		return nil
	}
	if !lastWordInText(title, *best) {
		m.logger.Debug("fuzzy match rejected by nickname guard",
			zap.String("title", title),
			zap.String("game", best.HomeTeam+" vs "+best.AwayTeam))
		return nil
	}
	return best
}

// lastWordInText reports whether either team's last word (its nickname)
// appears in the exchange text.
func lastWordInText(text string, g oddsapi.Event) bool {
	tokens := tokenSet(text)
	for _, team := range []string{g.HomeTeam, g.AwayTeam} {
		if w := lastWord(team); len(w) > 2 && tokens[w] {
			return true
		}
	}
	return false
}

func lastWord(name string) string {
	fields := strings.Fields(sports.StripAffixes(sports.Normalize(name)))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// pickDirect returns the qualifying game nearest to the exchange start time.
// A game qualifies when at least one non-trivial word from each of its two
// team names appears in the exchange text.
func pickDirect(text string, games []oddsapi.Event, start *time.Time) *oddsapi.Event {
	tokens := tokenSet(text)
	var best *oddsapi.Event
	var bestDelta time.Duration
	for i := range games {
		g := &games[i]
		if !teamInText(tokens, g.HomeTeam) || !teamInText(tokens, g.AwayTeam) {
			continue
		}
		if start == nil {
			return g
		}
		delta := absDuration(g.CommenceTime.Sub(*start))
		if best == nil || delta < bestDelta {
			best, bestDelta = g, delta
		}
	}
	return best
}

func teamInText(textTokens map[string]bool, team string) bool {
	for _, w := range strings.Fields(sports.StripAffixes(sports.Normalize(team))) {
		if len(w) > 2 && textTokens[w] {
			return true
		}
	}
	return false
}

// gameContainsTeam reports whether the full team name matches either side of
// the game by containment on the normalized forms.
func gameContainsTeam(g oddsapi.Event, team string) bool {
	t := sports.StripAffixes(sports.Normalize(team))
	if t == "" {
		return false
	}
	for _, side := range []string{g.HomeTeam, g.AwayTeam} {
		s := sports.StripAffixes(sports.Normalize(side))
		if s == "" {
			continue
		}
		if strings.Contains(s, t) || strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// filterByDate drops candidate games on the wrong date or outside the
// monitoring window.
func filterByDate(ev Event, games []oddsapi.Event, now time.Time) []oddsapi.Event {
	earliest := now.Add(-gameGraceBefore)
	latest := now.Add(gameLookahead)
	out := make([]oddsapi.Event, 0, len(games))
	for _, g := range games {
		if g.CommenceTime.Before(earliest) || g.CommenceTime.After(latest) {
			continue
		}
		if ev.StartTime != nil && absDuration(g.CommenceTime.Sub(*ev.StartTime)) > maxStartDelta {
			continue
		}
		out = append(out, g)
	}
	return out
}

func referenceMarket(game oddsapi.Event, marketKey string) (oddsapi.Market, bool) {
	for _, bm := range game.Bookmakers {
		if mk, ok := bm.FindMarket(marketKey); ok && len(mk.Outcomes) >= 2 {
			return mk, true
		}
	}
	return oddsapi.Market{}, false
}

func marketKeyFor(marketType string) string {
	switch strings.ToLower(strings.TrimSpace(marketType)) {
	case "total", "totals":
		return oddsapi.MarketTotals
	case "spread", "spreads":
		return oddsapi.MarketSpreads
	default:
		return oddsapi.MarketH2H
	}
}

// totalsOrientation decides which of Over/Under is the YES side from the
// exchange question text.
func totalsOrientation(question string) (yes, no string) {
	q := " " + sports.Normalize(question) + " "
	overIdx := strings.Index(q, " over ")
	underIdx := strings.Index(q, " under ")
	if underIdx >= 0 && (overIdx < 0 || underIdx < overIdx) {
		return "Under", "Over"
	}
	return "Over", "Under"
}

func indexOfName(names []string, want string) int {
	for i, n := range names {
		if strings.EqualFold(n, want) {
			return i
		}
	}
	return -1
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
