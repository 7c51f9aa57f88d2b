package matching

import "context"

// Resolution is a language-model answer naming the two teams in an ambiguous
// exchange title. Confidence is the model's own self-assessment.
type Resolution struct {
	TeamA      string `json:"team_a"`
	TeamB      string `json:"team_b"`
	Confidence string `json:"confidence"`
}

// EventResolver resolves an exchange event title to two bookmaker-style team
// names. Implementations are expected to be slow and rate-limited; the
// matcher budgets and caches calls per pass.
type EventResolver interface {
	ResolveTeams(ctx context.Context, title, sportCode string) (*Resolution, error)
}
