// Package notify pushes freshly created signals to the out-of-process SMS
// relay. Delivery is best-effort: an outage here must never abort a
// detection pass.
package notify

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
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
)

type Notifier struct {
	cfg        config.NotifyConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg config.NotifyConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports whether the relay is fully configured and switched on.
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled &&
		strings.TrimSpace(n.cfg.BaseURL) != "" &&
		strings.TrimSpace(n.cfg.ServiceKey) != "" &&
		strings.TrimSpace(n.cfg.To) != ""
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send posts one message to the relay function.
func (n *Notifier) Send(ctx context.Context, message string) error {
	base := strings.TrimRight(strings.TrimSpace(n.cfg.BaseURL), "/")
	body, err := json.Marshal(smsRequest{To: n.cfg.To, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/functions/send-sms-alert", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.ServiceKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("sms alert http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// AlertSignal formats and sends a new-signal alert. It returns whether the
// message actually went out so callers can count deliveries; errors are
// logged, not propagated.
func (n *Notifier) AlertSignal(ctx context.Context, sig *models.SignalOpportunity, now time.Time) bool {
	if !n.Enabled() {
		return false
	}
	if err := n.Send(ctx, SignalMessage(sig, now)); err != nil {
		n.logger.Warn("signal alert delivery failed",
			zap.String("event", sig.EventName),
			zap.Error(err))
		return false
	}
	return true
}

// SignalMessage renders the SMS body for one signal.
func SignalMessage(sig *models.SignalOpportunity, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: back %s (%s @ %.2f)",
		strings.ToUpper(sig.SignalTier), sig.EventName,
		sig.RecommendedOutcome, sig.Side, sig.PolymarketPrice)
	fmt.Fprintf(&b, " fair %.1f%%, edge %+.1f%%", sig.BookmakerProbFair*100, sig.EdgePercent)
	if sig.MovementConfirmed {
		b.WriteString(", sharp books moving")
	}
	if sig.ExpiresAt != nil {
		if lead := sig.ExpiresAt.Sub(now).Round(time.Minute); lead > 0 {
			fmt.Fprintf(&b, ", starts in %s", lead)
		}
	}
	return b.String()
}
