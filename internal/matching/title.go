package matching

import (
	"strings"

	"github.com/favron1/ev-ace-advisor-sub003/internal/sports"
)

// ParseTitle splits an exchange event title of the form
// "<yes team> vs <no team>" into its halves. Anything after " - " is
// ignored ("Lakers vs Celtics - NBA"). The first team is the YES side of
// the binary contract by exchange convention.
func ParseTitle(title string) (yes, no string, ok bool) {
	base := title
	if i := strings.Index(base, " - "); i > 0 {
		base = base[:i]
	}
	lower := strings.ToLower(base)
	for _, sep := range []string{" vs. ", " vs ", " v "} {
		if i := strings.Index(lower, sep); i > 0 {
			yes = strings.TrimSpace(base[:i])
			no = strings.TrimSpace(base[i+len(sep):])
			if yes != "" && no != "" {
				return yes, no, true
			}
		}
	}
	return "", "", false
}

func tokenSet(name string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(sports.StripAffixes(sports.Normalize(name))) {
		if tok == "vs" || tok == "v" {
			continue
		}
		set[tok] = true
	}
	return set
}

// sharedTokens counts whole-word overlap between two names. Matching on
// whole tokens is what keeps "76ers" from matching "49ers".
func sharedTokens(a, b string) int {
	as := tokenSet(a)
	bs := tokenSet(b)
	n := 0
	for tok := range as {
		if bs[tok] {
			n++
		}
	}
	return n
}

// jaccard is token-set similarity between two strings.
func jaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SideForOutcome decides which side of the binary contract an outcome name
// belongs to by word overlap against the two team names. Returns ok=false
// when the outcome matches neither side or both equally.
func SideForOutcome(outcome, yesName, noName string) (yes bool, ok bool) {
	ys := sharedTokens(outcome, yesName)
	ns := sharedTokens(outcome, noName)
	if ys == ns {
		return false, false
	}
	return ys > ns, true
}
