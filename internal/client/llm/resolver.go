// Package llm resolves opaque exchange titles to canonical team names via an
// OpenAI-compatible chat completions endpoint. It is the matcher's last tier:
// optional, budgeted, and never trusted without validation upstream.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	"github.com/favron1/ev-ace-advisor-sub003/internal/matching"
)

const systemPrompt = `You identify the two sports teams referenced by a prediction market title.
Reply with strict JSON only, no prose: {"team_a": "...", "team_b": "...", "confidence": "high"|"medium"|"low"}.
team_a is the first team in the title, team_b the second. Use full official team names.
If you cannot identify both teams, set confidence to "low".`

type Resolver struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

func NewResolver(cfg config.LLMConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		logger:     logger,
	}
}

// Configured reports whether an API key is present. Without one the matcher
// runs with its last tier disabled.
func (r *Resolver) Configured() bool {
	return r != nil && r.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ResolveTeams asks the model to name both teams in the title.
func (r *Resolver) ResolveTeams(ctx context.Context, title, sportCode string) (*matching.Resolution, error) {
	if !r.Configured() {
		return nil, fmt.Errorf("llm resolver not configured")
	}
	req := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Sport: %s\nTitle: %s", sportCode, title)},
		},
		Temperature: 0,
		MaxTokens:   200,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm api error %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	content := stripCodeFence(chat.Choices[0].Message.Content)
	var res matching.Resolution
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		r.logger.Debug("unparseable resolver answer", zap.String("content", truncate(content, 200)))
		return nil, fmt.Errorf("parse resolution: %w", err)
	}
	if res.TeamA == "" || res.TeamB == "" {
		return nil, fmt.Errorf("resolution missing team names")
	}
	return &res, nil
}

// stripCodeFence unwraps answers the model insists on fencing.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
