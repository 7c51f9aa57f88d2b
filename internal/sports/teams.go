package sports

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics, removes punctuation and collapses
// whitespace. All name comparison in the matcher and the snapshot keys run on
// this form.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(accentStripper, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '-' || r == '.' || r == '_' || r == '/':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Generic club affixes that carry no identity. Stripped before exact name
// comparison so "Liverpool FC" equals "Liverpool".
var nameAffixes = map[string]bool{
	"fc":  true,
	"sc":  true,
	"afc": true,
	"cf":  true,
	"bc":  true,
	"the": true,
}

// StripAffixes removes generic affix tokens from a normalized name.
func StripAffixes(normalized string) string {
	fields := strings.Fields(normalized)
	kept := fields[:0]
	for _, f := range fields {
		if !nameAffixes[f] {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return normalized
	}
	return strings.Join(kept, " ")
}

// Tokens splits a name into normalized words.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// EventKey builds the stable snapshot key for an event/outcome pair.
func EventKey(eventName, outcome string) string {
	return strings.ReplaceAll(Normalize(eventName), " ", "_") + "::" + strings.ReplaceAll(Normalize(outcome), " ", "_")
}

// teamIndex maps normalized nicknames, abbreviations and unambiguous city
// names to the full team name the bookmakers use. Keyed by sport code so
// "rangers" can resolve differently for NHL and MLB.
var teamIndex = map[string]map[string]string{
	CodeNBA: {
		"hawks": "Atlanta Hawks", "atl": "Atlanta Hawks",
		"celtics": "Boston Celtics", "bos": "Boston Celtics",
		"nets": "Brooklyn Nets", "bkn": "Brooklyn Nets",
		"hornets": "Charlotte Hornets", "cha": "Charlotte Hornets",
		"bulls": "Chicago Bulls",
		"cavaliers": "Cleveland Cavaliers", "cavs": "Cleveland Cavaliers", "cle": "Cleveland Cavaliers",
		"mavericks": "Dallas Mavericks", "mavs": "Dallas Mavericks",
		"nuggets": "Denver Nuggets", "den": "Denver Nuggets",
		"pistons": "Detroit Pistons",
		"warriors": "Golden State Warriors", "gsw": "Golden State Warriors", "golden state": "Golden State Warriors",
		"rockets": "Houston Rockets",
		"pacers":  "Indiana Pacers",
		"clippers": "Los Angeles Clippers", "lac": "Los Angeles Clippers",
		"lakers": "Los Angeles Lakers", "lal": "Los Angeles Lakers",
		"grizzlies": "Memphis Grizzlies", "mem": "Memphis Grizzlies",
		"heat": "Miami Heat", "mia": "Miami Heat",
		"bucks": "Milwaukee Bucks", "mil": "Milwaukee Bucks",
		"timberwolves": "Minnesota Timberwolves", "wolves": "Minnesota Timberwolves", "min": "Minnesota Timberwolves",
		"pelicans": "New Orleans Pelicans", "nop": "New Orleans Pelicans",
		"knicks": "New York Knicks", "nyk": "New York Knicks",
		"thunder": "Oklahoma City Thunder", "okc": "Oklahoma City Thunder",
		"magic": "Orlando Magic", "orl": "Orlando Magic",
		"76ers": "Philadelphia 76ers", "sixers": "Philadelphia 76ers", "phi": "Philadelphia 76ers",
		"suns": "Phoenix Suns", "phx": "Phoenix Suns",
		"trail blazers": "Portland Trail Blazers", "blazers": "Portland Trail Blazers", "por": "Portland Trail Blazers",
		"kings": "Sacramento Kings", "sac": "Sacramento Kings",
		"spurs": "San Antonio Spurs", "sas": "San Antonio Spurs",
		"raptors": "Toronto Raptors", "tor": "Toronto Raptors",
		"jazz": "Utah Jazz", "uta": "Utah Jazz",
		"wizards": "Washington Wizards", "was": "Washington Wizards",
	},
	CodeNHL: {
		"ducks": "Anaheim Ducks", "ana": "Anaheim Ducks",
		"bruins":   "Boston Bruins",
		"sabres":   "Buffalo Sabres",
		"flames":   "Calgary Flames",
		"hurricanes": "Carolina Hurricanes", "canes": "Carolina Hurricanes", "car": "Carolina Hurricanes",
		"blackhawks": "Chicago Blackhawks", "chi": "Chicago Blackhawks",
		"avalanche": "Colorado Avalanche", "avs": "Colorado Avalanche", "col": "Colorado Avalanche",
		"blue jackets": "Columbus Blue Jackets", "cbj": "Columbus Blue Jackets",
		"stars": "Dallas Stars", "dal": "Dallas Stars",
		"red wings": "Detroit Red Wings", "det": "Detroit Red Wings",
		"oilers": "Edmonton Oilers", "edm": "Edmonton Oilers",
		"panthers": "Florida Panthers", "fla": "Florida Panthers",
		"kings": "Los Angeles Kings", "lak": "Los Angeles Kings",
		"wild": "Minnesota Wild", "mnw": "Minnesota Wild",
		"canadiens": "Montreal Canadiens", "habs": "Montreal Canadiens", "mtl": "Montreal Canadiens",
		"predators": "Nashville Predators", "preds": "Nashville Predators", "nsh": "Nashville Predators",
		"devils": "New Jersey Devils", "njd": "New Jersey Devils",
		"islanders": "New York Islanders", "isles": "New York Islanders", "nyi": "New York Islanders",
		"rangers": "New York Rangers", "nyr": "New York Rangers",
		"senators": "Ottawa Senators", "sens": "Ottawa Senators", "ott": "Ottawa Senators",
		"flyers":   "Philadelphia Flyers",
		"penguins": "Pittsburgh Penguins", "pens": "Pittsburgh Penguins", "pit": "Pittsburgh Penguins",
		"sharks": "San Jose Sharks", "sjs": "San Jose Sharks",
		"kraken": "Seattle Kraken", "sea": "Seattle Kraken",
		"blues": "St Louis Blues", "stl": "St Louis Blues",
		"lightning": "Tampa Bay Lightning", "bolts": "Tampa Bay Lightning", "tbl": "Tampa Bay Lightning",
		"maple leafs": "Toronto Maple Leafs", "leafs": "Toronto Maple Leafs",
		"mammoth": "Utah Mammoth", "utah": "Utah Mammoth",
		"canucks": "Vancouver Canucks", "van": "Vancouver Canucks",
		"golden knights": "Vegas Golden Knights", "knights": "Vegas Golden Knights", "vgk": "Vegas Golden Knights", "vegas": "Vegas Golden Knights",
		"capitals": "Washington Capitals", "caps": "Washington Capitals", "wsh": "Washington Capitals",
		"jets": "Winnipeg Jets", "wpg": "Winnipeg Jets",
	},
	CodeNFL: {
		"cardinals": "Arizona Cardinals", "ari": "Arizona Cardinals",
		"falcons": "Atlanta Falcons",
		"ravens": "Baltimore Ravens", "bal": "Baltimore Ravens",
		"bills": "Buffalo Bills", "buf": "Buffalo Bills",
		"panthers": "Carolina Panthers",
		"bears":    "Chicago Bears",
		"bengals":  "Cincinnati Bengals",
		"browns":   "Cleveland Browns",
		"cowboys":  "Dallas Cowboys",
		"broncos":  "Denver Broncos",
		"lions":    "Detroit Lions",
		"packers": "Green Bay Packers", "gb": "Green Bay Packers",
		"texans": "Houston Texans", "hou": "Houston Texans",
		"colts": "Indianapolis Colts", "ind": "Indianapolis Colts",
		"jaguars": "Jacksonville Jaguars", "jags": "Jacksonville Jaguars", "jax": "Jacksonville Jaguars",
		"chiefs": "Kansas City Chiefs", "kc": "Kansas City Chiefs",
		"raiders": "Las Vegas Raiders", "lv": "Las Vegas Raiders",
		"chargers": "Los Angeles Chargers",
		"rams":     "Los Angeles Rams",
		"dolphins": "Miami Dolphins", "fins": "Miami Dolphins",
		"vikings": "Minnesota Vikings", "vikes": "Minnesota Vikings",
		"patriots": "New England Patriots", "pats": "New England Patriots", "ne": "New England Patriots",
		"saints": "New Orleans Saints", "no": "New Orleans Saints",
		"giants": "New York Giants", "nyg": "New York Giants",
		"jets":   "New York Jets",
		"eagles": "Philadelphia Eagles",
		"steelers": "Pittsburgh Steelers",
		"49ers": "San Francisco 49ers", "niners": "San Francisco 49ers", "sf": "San Francisco 49ers",
		"seahawks": "Seattle Seahawks", "hawks": "Seattle Seahawks",
		"buccaneers": "Tampa Bay Buccaneers", "bucs": "Tampa Bay Buccaneers", "tb": "Tampa Bay Buccaneers",
		"titans": "Tennessee Titans", "ten": "Tennessee Titans",
		"commanders": "Washington Commanders",
	},
	CodeMLB: {
		"diamondbacks": "Arizona Diamondbacks", "dbacks": "Arizona Diamondbacks",
		"braves":  "Atlanta Braves",
		"orioles": "Baltimore Orioles", "os": "Baltimore Orioles",
		"red sox": "Boston Red Sox", "sox": "Boston Red Sox",
		"cubs":      "Chicago Cubs",
		"white sox": "Chicago White Sox",
		"reds":      "Cincinnati Reds",
		"guardians": "Cleveland Guardians",
		"rockies":   "Colorado Rockies",
		"tigers":    "Detroit Tigers",
		"astros":    "Houston Astros",
		"royals":    "Kansas City Royals",
		"angels":    "Los Angeles Angels",
		"dodgers": "Los Angeles Dodgers", "lad": "Los Angeles Dodgers",
		"marlins":   "Miami Marlins",
		"brewers":   "Milwaukee Brewers",
		"twins":     "Minnesota Twins",
		"mets":      "New York Mets",
		"yankees": "New York Yankees", "yanks": "New York Yankees",
		"athletics": "Athletics", "as": "Athletics",
		"phillies": "Philadelphia Phillies",
		"pirates":  "Pittsburgh Pirates",
		"padres": "San Diego Padres", "sd": "San Diego Padres",
		"giants":   "San Francisco Giants",
		"mariners": "Seattle Mariners", "ms": "Seattle Mariners",
		"cardinals": "St Louis Cardinals", "cards": "St Louis Cardinals",
		"rays":      "Tampa Bay Rays",
		"rangers":   "Texas Rangers",
		"blue jays": "Toronto Blue Jays", "jays": "Toronto Blue Jays",
		"nationals": "Washington Nationals", "nats": "Washington Nationals",
	},
	CodeEPL: {
		"arsenal": "Arsenal", "gunners": "Arsenal",
		"aston villa": "Aston Villa", "villa": "Aston Villa",
		"bournemouth": "Bournemouth",
		"brentford":   "Brentford",
		"brighton":    "Brighton and Hove Albion",
		"burnley":     "Burnley",
		"chelsea":     "Chelsea",
		"crystal palace": "Crystal Palace", "palace": "Crystal Palace",
		"everton": "Everton",
		"fulham":  "Fulham",
		"leeds": "Leeds United", "leeds united": "Leeds United",
		"liverpool": "Liverpool",
		"man city": "Manchester City", "manchester city": "Manchester City", "city": "Manchester City",
		"man united": "Manchester United", "man utd": "Manchester United", "manchester united": "Manchester United", "united": "Manchester United",
		"newcastle": "Newcastle United", "newcastle united": "Newcastle United", "magpies": "Newcastle United",
		"nottingham forest": "Nottingham Forest", "forest": "Nottingham Forest",
		"sunderland": "Sunderland",
		"tottenham": "Tottenham Hotspur", "spurs": "Tottenham Hotspur",
		"west ham": "West Ham United", "west ham united": "West Ham United", "hammers": "West Ham United",
		"wolves": "Wolverhampton Wanderers", "wolverhampton": "Wolverhampton Wanderers",
	},
}

// ExpandTeam resolves a nickname, abbreviation or city fragment to the full
// bookmaker team name for a sport. The input may be raw text.
func ExpandTeam(sportCode, name string) (string, bool) {
	idx, ok := teamIndex[strings.ToUpper(strings.TrimSpace(sportCode))]
	if !ok {
		return "", false
	}
	key := StripAffixes(Normalize(name))
	if full, ok := idx[key]; ok {
		return full, true
	}
	// A multi-word fragment like "los angeles lakers" still resolves through
	// its nickname token.
	fields := strings.Fields(key)
	for i := len(fields) - 1; i >= 0; i-- {
		if full, ok := idx[fields[i]]; ok {
			return full, true
		}
	}
	return "", false
}
