package sports

import (
	"regexp"
	"strings"
)

// Canonical sport codes used across the cache, the matcher, and the odds
// client. CodeUnknown routes a market into the bucket that skips the
// sportsbook leg entirely.
const (
	CodeNBA     = "NBA"
	CodeNHL     = "NHL"
	CodeNFL     = "NFL"
	CodeMLB     = "MLB"
	CodeEPL     = "EPL"
	CodeMLS     = "MLS"
	CodeUCL     = "UCL"
	CodeUnknown = ""
)

// oddsEndpointKeys maps a sport code to the aggregate odds API sport key.
var oddsEndpointKeys = map[string]string{
	CodeNBA: "basketball_nba",
	CodeNHL: "icehockey_nhl",
	CodeNFL: "americanfootball_nfl",
	CodeMLB: "baseball_mlb",
	CodeEPL: "soccer_epl",
	CodeMLS: "soccer_usa_mls",
	CodeUCL: "soccer_uefa_champs_league",
}

// OddsKey returns the odds API endpoint key for a sport code.
func OddsKey(code string) (string, bool) {
	key, ok := oddsEndpointKeys[strings.ToUpper(strings.TrimSpace(code))]
	return key, ok
}

// Supported reports whether the detector can price this sport against a
// sportsbook panel.
func Supported(code string) bool {
	_, ok := oddsEndpointKeys[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// SupportedCodes returns all codes with an odds API endpoint.
func SupportedCodes() []string {
	return []string{CodeNBA, CodeNHL, CodeNFL, CodeMLB, CodeEPL, CodeMLS, CodeUCL}
}

type detectRule struct {
	code    string
	pattern string

	compiled *regexp.Regexp
}

// detectRules is evaluated in order; first match wins. NHL is listed before
// NBA so "Blackhawks" is not caught by the NBA "hawks" pattern, and NBA is
// listed before EPL so "Timberwolves" is not caught by the EPL "wolves"
// pattern. Nicknames shared across leagues (rangers, panthers, jets, kings)
// only appear with their city qualifier.
var detectRules = []detectRule{
	{code: CodeNHL, pattern: `(?i)\b(nhl|stanley cup|blackhawks|canadiens|maple leafs|oilers|flames|canucks|avalanche|kraken|golden knights|red wings|sabres|senators|islanders|devils|flyers|penguins|capitals|hurricanes|predators|lightning|blue jackets|utah mammoth|new york rangers|florida panthers|winnipeg jets|los angeles kings|st\.? louis blues|minnesota wild|anaheim ducks|san jose sharks|dallas stars)\b`},
	{code: CodeNBA, pattern: `(?i)\b(nba|lakers|celtics|warriors|knicks|bucks|nuggets|suns|mavericks|mavs|76ers|sixers|heat|grizzlies|timberwolves|cavaliers|cavs|pistons|raptors|hawks|spurs|clippers|thunder|pelicans|hornets|wizards|trail blazers|blazers|rockets|jazz|magic|pacers|bulls|nets|sacramento kings)\b`},
	{code: CodeNFL, pattern: `(?i)\b(nfl|super bowl|chiefs|eagles|cowboys|packers|49ers|niners|ravens|steelers|bills|bengals|broncos|seahawks|buccaneers|vikings|patriots|dolphins|raiders|texans|colts|jaguars|titans|commanders|saints|falcons|lions|bears|browns|carolina panthers|new york jets|arizona cardinals|los angeles rams|new york giants)\b`},
	{code: CodeMLB, pattern: `(?i)\b(mlb|world series|yankees|red sox|dodgers|mets|cubs|braves|astros|phillies|padres|mariners|orioles|blue jays|guardians|diamondbacks|rockies|brewers|pirates|royals|rays|twins|white sox|reds|nationals|marlins|athletics|angels|tigers|texas rangers|st\.? louis cardinals|san francisco giants)\b`},
	{code: CodeEPL, pattern: `(?i)\b(premier league|epl|manchester united|man united|man utd|manchester city|man city|arsenal|chelsea|liverpool|tottenham|everton|newcastle|aston villa|west ham|brighton|wolves|wolverhampton|fulham|brentford|crystal palace|bournemouth|nottingham forest|leicester|leeds|southampton|sunderland|burnley)\b`},
	{code: CodeMLS, pattern: `(?i)\b(mls|inter miami|la galaxy|lafc|austin fc|seattle sounders|portland timbers|atlanta united|fc cincinnati|columbus crew|philadelphia union|st\.? louis city|real salt lake|sporting kansas city|san diego fc)\b`},
	{code: CodeUCL, pattern: `(?i)\b(champions league|uefa|real madrid|barcelona|bayern|psg|paris saint[- ]germain|juventus|inter milan|ac milan|atletico|borussia dortmund|benfica|porto|ajax)\b`},
}

func init() {
	for i := range detectRules {
		detectRules[i].compiled = regexp.MustCompile(detectRules[i].pattern)
	}
}

// Detect maps free text (event title plus question) to a canonical sport
// code. Returns CodeUnknown when no rule matches.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return CodeUnknown
	}
	for _, rule := range detectRules {
		if rule.compiled.MatchString(text) {
			return rule.code
		}
	}
	return CodeUnknown
}

// sharpBooks maps odds API bookmaker keys to the canonical short name of the
// sharp set. Books absent from this map carry consensus weight 1.0.
var sharpBooks = map[string]string{
	"pinnacle":       "pinnacle",
	"betfair_ex_uk":  "betfair",
	"betfair_ex_eu":  "betfair",
	"betfair_ex_au":  "betfair",
	"betfair_sb_uk":  "betfair",
	"betonlineag":    "betonline",
	"bookmaker":      "bookmaker",
	"bookmakereu":    "bookmaker",
	"circasports":    "circa",
	"lowvig":         "betonline",
}

// SharpBook returns the canonical short name for a sharp bookmaker key, or
// ("", false) for recreational books.
func SharpBook(bookmakerKey string) (string, bool) {
	name, ok := sharpBooks[strings.ToLower(strings.TrimSpace(bookmakerKey))]
	return name, ok
}
