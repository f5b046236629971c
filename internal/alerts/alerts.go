// Package alerts ingests TradingView webhook alerts, normalizes them,
// and optionally forwards them to the trading bot.
package alerts

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"polybot-server/config"
	"polybot-server/internal/database"
	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/telemetry"
)

// Alert errors returned by Ingest
var (
	ErrInvalidSecret  = fmt.Errorf("invalid webhook secret")
	ErrMissingSymbol  = fmt.Errorf("alert is missing a symbol")
	ErrUnknownAction  = fmt.Errorf("alert action not recognized")
	ErrPayloadTooBig  = fmt.Errorf("alert payload too large")
	ErrMalformedAlert = fmt.Errorf("alert payload is not valid JSON")
)

// MaxPayloadBytes caps the accepted webhook body size
const MaxPayloadBytes = 64 * 1024

// IncomingAlert is the raw TradingView payload shape. TradingView sends
// whatever the user templated, so every field is optional and action
// spellings vary by strategy script.
type IncomingAlert struct {
	Secret   string   `json:"secret"`
	Strategy string   `json:"strategy"`
	Symbol   string   `json:"symbol"`
	Ticker   string   `json:"ticker"` // some templates use ticker instead of symbol
	Action   string   `json:"action"`
	Side     string   `json:"side"` // or side
	Price    *float64 `json:"price"`
}

// Service validates, persists, and forwards webhook alerts
type Service struct {
	cfg        config.WebhookConfig
	repo       *database.Repository
	bus        *events.EventBus
	httpClient *http.Client
	logger     *logging.Logger
}

// NewService creates the alert intake service
func NewService(cfg config.WebhookConfig, repo *database.Repository, bus *events.EventBus) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		bus:        bus,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.WithComponent("alerts"),
	}
}

// NormalizeAction maps the many TradingView action spellings onto the
// canonical buy/sell/close set.
func NormalizeAction(action string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "buy", "long", "entry_long", "open_long":
		return "buy", true
	case "sell", "short", "entry_short", "open_short":
		return "sell", true
	case "close", "exit", "flat", "close_all", "exit_long", "exit_short":
		return "close", true
	}
	return "", false
}

// Ingest validates and records a raw webhook body. On success the alert
// is persisted, published on the event bus, and forwarded to the bot
// when forwarding is enabled.
func (s *Service) Ingest(ctx context.Context, payload []byte) (*database.WebhookAlert, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, ErrPayloadTooBig
	}

	var incoming IncomingAlert
	if err := json.Unmarshal(payload, &incoming); err != nil {
		telemetry.RecordAlertRejected("malformed")
		return nil, ErrMalformedAlert
	}

	if s.cfg.SharedSecret != "" {
		if subtle.ConstantTimeCompare([]byte(incoming.Secret), []byte(s.cfg.SharedSecret)) != 1 {
			s.logger.Warn("Webhook alert rejected, bad secret")
			telemetry.RecordAlertRejected("bad_secret")
			return nil, ErrInvalidSecret
		}
	}

	symbol := strings.TrimSpace(incoming.Symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(incoming.Ticker)
	}
	if symbol == "" {
		return nil, ErrMissingSymbol
	}

	rawAction := incoming.Action
	if rawAction == "" {
		rawAction = incoming.Side
	}
	action, ok := NormalizeAction(rawAction)
	if !ok {
		telemetry.RecordAlertRejected("unknown_action")
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, rawAction)
	}

	alert := &database.WebhookAlert{
		Strategy:   strings.TrimSpace(incoming.Strategy),
		Symbol:     symbol,
		Action:     action,
		Price:      incoming.Price,
		RawPayload: payload,
		ReceivedAt: time.Now(),
	}

	if err := s.repo.RecordWebhookAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to record alert: %w", err)
	}

	s.logger.Info("Webhook alert received",
		"strategy", alert.Strategy,
		"symbol", alert.Symbol,
		"action", alert.Action)
	telemetry.RecordAlertAccepted(alert.Action)

	if s.bus != nil {
		s.bus.PublishWebhookReceived(alert.Strategy, alert.Symbol, alert.Action)
	}

	if s.cfg.ForwardEnabled && s.cfg.ForwardURL != "" {
		// Forward asynchronously, TradingView expects a fast 200
		go s.forward(alert)
	}

	return alert, nil
}

// Recent returns the most recent alerts, newest first
func (s *Service) Recent(ctx context.Context, limit int) ([]*database.WebhookAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.GetRecentWebhookAlerts(ctx, limit)
}

// forward delivers a normalized alert to the configured downstream URL
// and records the outcome on the stored alert.
func (s *Service) forward(alert *database.WebhookAlert) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{
		"strategy": alert.Strategy,
		"symbol":   alert.Symbol,
		"action":   alert.Action,
		"price":    alert.Price,
	})
	if err != nil {
		s.markForwarded(ctx, alert.ID, false, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ForwardURL, bytes.NewReader(body))
	if err != nil {
		s.markForwarded(ctx, alert.ID, false, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ForwardSecret != "" {
		req.Header.Set("X-Webhook-Secret", s.cfg.ForwardSecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Alert forward failed", "alert_id", alert.ID, "error", err.Error())
		telemetry.AlertsForwardedTotal.WithLabelValues("failed").Inc()
		s.markForwarded(ctx, alert.ID, false, err.Error())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		errMsg := fmt.Sprintf("downstream returned status %d", resp.StatusCode)
		s.logger.Warn("Alert forward rejected", "alert_id", alert.ID, "status", resp.StatusCode)
		telemetry.AlertsForwardedTotal.WithLabelValues("failed").Inc()
		s.markForwarded(ctx, alert.ID, false, errMsg)
		return
	}

	telemetry.AlertsForwardedTotal.WithLabelValues("ok").Inc()
	s.markForwarded(ctx, alert.ID, true, "")
}

func (s *Service) markForwarded(ctx context.Context, alertID string, forwarded bool, errMsg string) {
	if err := s.repo.MarkAlertForwarded(ctx, alertID, forwarded, errMsg); err != nil {
		s.logger.Error("Failed to update alert forward state", "alert_id", alertID, "error", err.Error())
	}
}
