// Package oddsapi wraps the aggregate sportsbook odds API. One request per
// sport returns every upcoming game with its full bookmaker panel, so the
// client is paced by a shared token bucket rather than per-call budgets.
package oddsapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
)

type Client struct {
	http    *resty.Client
	key     string
	regions string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg config.OddsAPIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait)
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		http:    rc,
		key:     strings.TrimSpace(cfg.Key),
		regions: cfg.Regions,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 2),
		logger:  logger,
	}
}

// Configured reports whether an API key is present. Without one the
// sportsbook leg of a pass is skipped entirely.
func (c *Client) Configured() bool {
	return c != nil && c.key != ""
}

// Events fetches upcoming games for one sport with the requested market keys
// attached to every bookmaker.
func (c *Client) Events(ctx context.Context, sportKey string, marketKeys []string) ([]Event, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("odds api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if len(marketKeys) == 0 {
		marketKeys = []string{MarketH2H}
	}
	var events []Event
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apiKey":     c.key,
			"regions":    c.regions,
			"markets":    strings.Join(marketKeys, ","),
			"oddsFormat": "decimal",
			"dateFormat": "iso",
		}).
		SetResult(&events).
		Get(fmt.Sprintf("/sports/%s/odds", sportKey))
	if err != nil {
		return nil, fmt.Errorf("odds request %s: %w", sportKey, err)
	}
	c.logQuota(sportKey, resp)
	if resp.StatusCode() == 429 {
		return nil, fmt.Errorf("odds api quota exhausted for %s", sportKey)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("odds api status %d for %s: %s", resp.StatusCode(), sportKey, truncate(resp.String(), 200))
	}
	return events, nil
}

// The API reports remaining quota on every response. Logged at debug so a
// burn-down is visible without a metrics stack.
func (c *Client) logQuota(sportKey string, resp *resty.Response) {
	remaining := resp.Header().Get("X-Requests-Remaining")
	used := resp.Header().Get("X-Requests-Used")
	if remaining == "" && used == "" {
		return
	}
	c.logger.Debug("odds api quota",
		zap.String("sport", sportKey),
		zap.String("remaining", remaining),
		zap.String("used", used),
	)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
