package sports

import "testing"

func TestDetectOrdering(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Blackhawks vs Red Wings", CodeNHL},
		{"Hawks vs Celtics", CodeNBA},
		{"Timberwolves vs Nuggets", CodeNBA},
		{"Wolves vs Chelsea", CodeEPL},
		{"New York Rangers vs Bruins", CodeNHL},
		{"Texas Rangers vs Astros", CodeMLB},
		{"Florida Panthers vs Oilers", CodeNHL},
		{"Will the Chiefs win the Super Bowl?", CodeNFL},
		{"Inter Miami vs LA Galaxy", CodeMLS},
		{"Real Madrid vs Bayern", CodeUCL},
		{"Who will win the 2026 election?", CodeUnknown},
		{"", CodeUnknown},
	}
	for _, tc := range cases {
		if got := Detect(tc.text); got != tc.want {
			t.Fatalf("Detect(%q)=%q want %q", tc.text, got, tc.want)
		}
	}
}

func TestOddsKey(t *testing.T) {
	key, ok := OddsKey("nba")
	if !ok || key != "basketball_nba" {
		t.Fatalf("got=%q ok=%v", key, ok)
	}
	if _, ok := OddsKey("CRICKET"); ok {
		t.Fatalf("expected unsupported sport")
	}
	for _, code := range SupportedCodes() {
		if !Supported(code) {
			t.Fatalf("code %q not supported", code)
		}
	}
}

func TestSharpBook(t *testing.T) {
	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"pinnacle", "pinnacle", true},
		{"betfair_ex_uk", "betfair", true},
		{"betfair_ex_eu", "betfair", true},
		{"circasports", "circa", true},
		{"draftkings", "", false},
		{"fanduel", "", false},
	}
	for _, tc := range cases {
		got, ok := SharpBook(tc.key)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("SharpBook(%q)=(%q,%v) want (%q,%v)", tc.key, got, ok, tc.want, tc.ok)
		}
	}
}
