package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
)

func testResolver(baseURL string) *Resolver {
	return NewResolver(config.LLMConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Second,
	}, nil)
}

func TestResolveTeams(t *testing.T) {
	var gotAuth, gotPath string
	var gotRaw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotRaw, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"team_a\":\"Golden State Warriors\",\"team_b\":\"Sacramento Kings\",\"confidence\":\"high\"}"}}]}`))
	}))
	defer srv.Close()

	res, err := testResolver(srv.URL).ResolveTeams(context.Background(), "Warriors vs Sactown", "basketball_nba")
	if err != nil {
		t.Fatalf("ResolveTeams: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth=%q want Bearer test-key", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path=%q want /chat/completions", gotPath)
	}
	var gotBody chatRequest
	if err := json.Unmarshal(gotRaw, &gotBody); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model=%q", gotBody.Model)
	}
	if gotBody.Temperature != 0 {
		t.Errorf("temperature=%v want 0", gotBody.Temperature)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[1].Role != "user" {
		t.Fatalf("messages=%+v", gotBody.Messages)
	}
	if !strings.Contains(gotBody.Messages[1].Content, "Warriors vs Sactown") {
		t.Errorf("user message missing title: %q", gotBody.Messages[1].Content)
	}
	if res.TeamA != "Golden State Warriors" || res.TeamB != "Sacramento Kings" || res.Confidence != "high" {
		t.Errorf("resolution=%+v", res)
	}
}

func TestResolveTeamsStripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n{\\\"team_a\\\":\\\"Boston Celtics\\\",\\\"team_b\\\":\\\"Miami Heat\\\",\\\"confidence\\\":\\\"medium\\\"}\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	res, err := testResolver(srv.URL).ResolveTeams(context.Background(), "Celtics vs Heat", "basketball_nba")
	if err != nil {
		t.Fatalf("ResolveTeams: %v", err)
	}
	if res.TeamA != "Boston Celtics" || res.Confidence != "medium" {
		t.Errorf("resolution=%+v", res)
	}
}

func TestResolveTeamsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := testResolver(srv.URL).ResolveTeams(context.Background(), "A vs B", "basketball_nba")
	if err == nil {
		t.Fatal("want error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("err=%v want status in message", err)
	}
}

func TestResolveTeamsMissingNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"team_a\":\"\",\"team_b\":\"\",\"confidence\":\"low\"}"}}]}`))
	}))
	defer srv.Close()

	_, err := testResolver(srv.URL).ResolveTeams(context.Background(), "??? vs ???", "basketball_nba")
	if err == nil {
		t.Fatal("want error when names empty")
	}
}

func TestConfigured(t *testing.T) {
	if NewResolver(config.LLMConfig{}, nil).Configured() {
		t.Error("resolver without key reports configured")
	}
	if !NewResolver(config.LLMConfig{APIKey: "k"}, nil).Configured() {
		t.Error("resolver with key reports unconfigured")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q)=%q want %q", c.in, got, c.want)
		}
	}
}
